package registry

import "fmt"

// ModuleConflictError reports a sector module that modified, removed, or
// duplicated an element it did not own.
type ModuleConflictError struct {
	Module  string
	Element string
	Reason  string
	Err     error
}

func (e *ModuleConflictError) Error() string {
	return fmt.Sprintf("sector module %q conflicts on %q: %s", e.Module, e.Element, e.Reason)
}

func (e *ModuleConflictError) Unwrap() error { return e.Err }
