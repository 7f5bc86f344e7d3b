package compiler

import (
	"fmt"
	"strings"
)

// CompileError reports a problem that prevents building a Configuration.
type CompileError struct {
	Entity    string
	Parameter string
	Detail    string
	Err       error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("compile error")
	if e.Entity != "" {
		fmt.Fprintf(&b, ": entity %q", e.Entity)
	}
	if e.Parameter != "" {
		fmt.Fprintf(&b, ": parameter %q", e.Parameter)
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }
