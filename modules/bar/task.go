package bar

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/kickbus/internal/task"
)

// BarTask walks through a fixed number of steps, one per Interval.
type BarTask struct {
	Steps    int
	Interval time.Duration
}

func (t *BarTask) Name() string {
	return "Bar task"
}

func (t *BarTask) Run(ctx context.Context, report task.ReportFunc) error {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for step := 1; step <= t.Steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		report(step, fmt.Sprintf("Step %d of %d", step, t.Steps))
	}
	return nil
}
