// Package task runs long-running units of work owned by a kickstart module
// and exposes them on the bus.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Signal names emitted by a running task.
const (
	SignalStarted         = "Started"
	SignalProgressChanged = "ProgressChanged"
	SignalStopped         = "Stopped"
	SignalFailed          = "Failed"
)

// ErrAlreadyRunning is returned by Start while a previous run is in progress.
var ErrAlreadyRunning = errors.New("task is already running")

// Runnable is the work performed by a task.
type Runnable interface {
	Name() string

	// Run performs the work, reporting progress as it goes. It must return
	// promptly once ctx is cancelled.
	Run(ctx context.Context, report ReportFunc) error
}

// ReportFunc reports that the task reached the given step.
type ReportFunc func(step int, message string)

// Emitter sends a task signal to whoever observes the task.
type Emitter func(signal string, values ...interface{})

// Task wraps a Runnable with the state observed over the bus.
type Task struct {
	runnable Runnable
	logger   *slog.Logger
	emit     Emitter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	step    int
	message string

	wg sync.WaitGroup
}

// New creates a stopped task. emit may be nil.
func New(r Runnable, logger *slog.Logger, emit Emitter) *Task {
	if emit == nil {
		emit = func(string, ...interface{}) {}
	}
	return &Task{
		runnable: r,
		logger:   logger.With("task", r.Name()),
		emit:     emit,
	}
}

func (t *Task) Name() string {
	return t.runnable.Name()
}

// Progress returns the last reported step and message.
func (t *Task) Progress() (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step, t.message
}

func (t *Task) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start runs the task on its own goroutine. The run is cancelled when ctx is
// done or Cancel is called. A task cannot be started once ctx is done.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	// Checked under t.mu: whoever cancels ctx and then calls Cancel and Wait
	// either sees this run or makes it fail here.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("task cannot start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.running = true
	t.cancel = cancel
	t.step, t.message = 0, ""

	t.wg.Add(1)
	go t.run(runCtx)

	t.logger.Debug("Task started.")
	t.emit(SignalStarted)
	return nil
}

func (t *Task) run(ctx context.Context) {
	defer t.wg.Done()

	err := t.runnable.Run(ctx, t.report)

	t.mu.Lock()
	t.running = false
	t.cancel()
	t.mu.Unlock()

	switch {
	case err == nil:
		t.logger.Debug("Task finished.")
	case errors.Is(err, context.Canceled):
		t.logger.Info("Task cancelled.")
		t.emit(SignalFailed, err.Error())
	default:
		t.logger.Error("Task failed.", "error", err)
		t.emit(SignalFailed, err.Error())
	}
	t.emit(SignalStopped)
}

func (t *Task) report(step int, message string) {
	t.mu.Lock()
	t.step, t.message = step, message
	t.mu.Unlock()

	t.logger.Debug("Task progress.", "step", step, "message", message)
	t.emit(SignalProgressChanged, int32(step), message)
}

// Cancel asks a running task to stop. It does not wait for the run to end.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.cancel()
	}
}

// Wait blocks until the current run, if any, has ended.
func (t *Task) Wait() {
	t.wg.Wait()
}
