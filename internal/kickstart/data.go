package kickstart

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Data is the result of reading kickstart text. It is never modified after
// Parse returns it.
type Data struct {
	spec *Specification

	Commands map[string]cty.Value
	Sections map[string]map[string]cty.Value
	Addons   map[string]map[string]cty.Value
}

func newData(spec *Specification) *Data {
	return &Data{
		spec:     spec,
		Commands: make(map[string]cty.Value),
		Sections: make(map[string]map[string]cty.Value),
		Addons:   make(map[string]map[string]cty.Value),
	}
}

// Generate writes the data back as kickstart text: commands first, then
// sections, then addons, each in specification order.
func (d *Data) Generate() string {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for _, name := range d.spec.Commands {
		if val, ok := d.Commands[name]; ok {
			body.SetAttributeValue(name, val)
		}
	}

	appendBlock := func(blockType string, labels []string, attrs map[string]cty.Value) {
		if len(body.Attributes()) > 0 || len(body.Blocks()) > 0 {
			body.AppendNewline()
		}
		writeAttributes(body.AppendNewBlock(blockType, labels).Body(), attrs)
	}

	for _, name := range d.spec.Sections {
		if attrs, ok := d.Sections[name]; ok {
			appendBlock(name, nil, attrs)
		}
	}
	for _, name := range d.spec.Addons {
		if attrs, ok := d.Addons[name]; ok {
			appendBlock(AddonBlock, []string{name}, attrs)
		}
	}

	return string(hclwrite.Format(f.Bytes()))
}

func writeAttributes(body *hclwrite.Body, attrs map[string]cty.Value) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body.SetAttributeValue(name, attrs[name])
	}
}

// Equal reports whether both values hold the same commands, sections and
// addons with equal values.
func (d *Data) Equal(other *Data) bool {
	if d == nil || other == nil {
		return d == other
	}
	if !valuesEqual(d.Commands, other.Commands) {
		return false
	}
	return blocksEqual(d.Sections, other.Sections) && blocksEqual(d.Addons, other.Addons)
}

func blocksEqual(a, b map[string]map[string]cty.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for name, attrs := range a {
		other, ok := b[name]
		if !ok || !valuesEqual(attrs, other) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b map[string]cty.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for name, val := range a {
		other, ok := b[name]
		if !ok || !val.RawEquals(other) {
			return false
		}
	}
	return true
}

// DecodeCommand decodes the value of the named command into target, which
// must be a non-nil pointer. It reports false when the command is not set.
func (d *Data) DecodeCommand(name string, target interface{}) (bool, error) {
	val, ok := d.Commands[name]
	if !ok || val.IsNull() {
		return false, nil
	}

	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return false, fmt.Errorf("target for command %q must be a non-nil pointer, got %T", name, target)
	}

	impliedType, err := gocty.ImpliedType(ptr.Elem().Interface())
	if err != nil {
		return true, gocty.FromCtyValue(val, target)
	}

	converted, err := convert.Convert(val, impliedType)
	if err != nil {
		return true, fmt.Errorf("cannot convert command %q from %s to %s: %w",
			name, val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	return true, gocty.FromCtyValue(converted, target)
}

// LogValue implements slog.LogValuer.
func (d *Data) LogValue() slog.Value {
	names := func(m map[string]map[string]cty.Value) []string {
		out := make([]string, 0, len(m))
		for name := range m {
			out = append(out, name)
		}
		sort.Strings(out)
		return out
	}

	commands := make([]string, 0, len(d.Commands))
	for name := range d.Commands {
		commands = append(commands, name)
	}
	sort.Strings(commands)

	return slog.GroupValue(
		slog.Any("commands", commands),
		slog.Any("sections", names(d.Sections)),
		slog.Any("addons", names(d.Addons)),
	)
}
