package entity

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Fields a parameter record must carry.
const (
	FieldValue    = "value"
	FieldUnit     = "unit"
	FieldCitation = "sources"
)

// ParseError reports a malformed entity file. Parameter and Field are set when
// the problem is a specific parameter record missing (or mis-stating) one of
// its fields.
type ParseError struct {
	File      string
	Line      int
	Entity    string
	Parameter string
	Field     string
	Detail    string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("parse error")
	if e.File != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
		}
	}
	if e.Entity != "" {
		fmt.Fprintf(&sb, ": entity %q", e.Entity)
	}
	if e.Parameter != "" {
		fmt.Fprintf(&sb, ": parameter %q", e.Parameter)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, ": field %q", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Detail)
	return sb.String()
}

// fromDiagnostics converts HCL diagnostics into parse errors.
func fromDiagnostics(file, entityID string, diags hcl.Diagnostics) []error {
	var errs []error
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		pe := &ParseError{File: file, Entity: entityID, Detail: d.Summary}
		if d.Detail != "" {
			pe.Detail += ": " + d.Detail
		}
		if d.Subject != nil {
			pe.Line = d.Subject.Start.Line
		}
		errs = append(errs, pe)
	}
	return errs
}
