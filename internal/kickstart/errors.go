package kickstart

import (
	"github.com/hashicorp/hcl/v2"
)

// DefaultLine is reported when the parser cannot attribute an error to a
// position in the text.
const DefaultLine = 1

// ParseError is returned when kickstart text cannot be read.
type ParseError struct {
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	return e.Message
}

// newParseError converts the first error in diags into a *ParseError.
func newParseError(diags hcl.Diagnostics) *ParseError {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}

		msg := diag.Summary
		if diag.Detail != "" {
			msg += "; " + diag.Detail
		}

		line := DefaultLine
		if diag.Subject != nil && diag.Subject.Start.Line > 0 {
			line = diag.Subject.Start.Line
		}
		return &ParseError{Message: msg, Line: line}
	}

	return &ParseError{Message: diags.Error(), Line: DefaultLine}
}
