package kickstart

import (
	"fmt"
	"slices"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// AddonBlock is the block type that carries addons.
const AddonBlock = "addon"

// Specification describes the kickstart commands, sections and addons a
// module handles.
type Specification struct {
	Commands []string
	Sections []string
	Addons   []string
}

// CommandNames returns the names of the handled commands.
func (s *Specification) CommandNames() []string {
	return slices.Clone(s.Commands)
}

// SectionNames returns the names of the handled sections.
func (s *Specification) SectionNames() []string {
	return slices.Clone(s.Sections)
}

// AddonNames returns the names of the handled addons.
func (s *Specification) AddonNames() []string {
	return slices.Clone(s.Addons)
}

func (s *Specification) schema() *hcl.BodySchema {
	schema := &hcl.BodySchema{}
	for _, name := range s.Commands {
		schema.Attributes = append(schema.Attributes, hcl.AttributeSchema{Name: name})
	}
	for _, name := range s.Sections {
		schema.Blocks = append(schema.Blocks, hcl.BlockHeaderSchema{Type: name})
	}
	if len(s.Addons) > 0 {
		schema.Blocks = append(schema.Blocks, hcl.BlockHeaderSchema{Type: AddonBlock, LabelNames: []string{"name"}})
	}
	return schema
}

// Parse reads kickstart text. The filename is only used in error messages.
// On failure the returned error is a *ParseError.
func (s *Specification) Parse(filename string, src []byte) (*Data, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, newParseError(diags)
	}

	content, diags := file.Body.Content(s.schema())
	if diags.HasErrors() {
		return nil, newParseError(diags)
	}

	data := newData(s)

	commands, diags := evalAttributes(content.Attributes)
	if diags.HasErrors() {
		return nil, newParseError(diags)
	}
	data.Commands = commands

	for _, block := range content.Blocks {
		target, key := data.Sections, block.Type
		if block.Type == AddonBlock {
			target, key = data.Addons, block.Labels[0]
			if !slices.Contains(s.Addons, key) {
				return nil, newParseError(hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Unsupported addon",
					Detail:   fmt.Sprintf("The addon %q is not handled by this module.", key),
					Subject:  &block.LabelRanges[0],
				}})
			}
		}

		if _, exists := target[key]; exists {
			return nil, newParseError(hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  fmt.Sprintf("Duplicate %q block", key),
				Detail:   fmt.Sprintf("Only one %q block is allowed.", key),
				Subject:  &block.DefRange,
			}})
		}

		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, newParseError(diags)
		}
		values, diags := evalAttributes(attrs)
		if diags.HasErrors() {
			return nil, newParseError(diags)
		}
		target[key] = values
	}

	return data, nil
}

// evalAttributes evaluates literal attribute values. Attributes are visited
// in source order so the first reported error is the first in the text.
func evalAttributes(attrs hcl.Attributes) (map[string]cty.Value, hcl.Diagnostics) {
	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	values := make(map[string]cty.Value, len(attrs))
	for _, attr := range ordered {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		values[attr.Name] = val
	}
	return values, nil
}
