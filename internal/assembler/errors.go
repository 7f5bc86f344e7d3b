package assembler

import "fmt"

// AssemblyError reports an element the assembler could not turn into
// variables, rows, or objective terms.
type AssemblyError struct {
	Element  string
	Template string // empty outside template instantiation
	Detail   string
	Err      error
}

func (e *AssemblyError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("assembly failed on %q (template %q): %s", e.Element, e.Template, e.Detail)
	}
	return fmt.Sprintf("assembly failed on %q: %s", e.Element, e.Detail)
}

func (e *AssemblyError) Unwrap() error { return e.Err }
