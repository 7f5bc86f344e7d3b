package solver

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome class of a solve.
type Status string

const (
	StatusOptimal     Status = "optimal"
	StatusInfeasible  Status = "infeasible"
	StatusUnbounded   Status = "unbounded"
	StatusNumerical   Status = "numerical"
	StatusUnsupported Status = "unsupported"
)

// Error is a solve that ended without an optimal solution.
type Error struct {
	Backend     string
	Status      Status
	Detail      string
	Constraints int
	Variables   int
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("solver %q: %s (%d constraints, %d variables): %s", e.Backend, e.Status, e.Constraints, e.Variables, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeoutError is a solve abandoned at its deadline.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("solver %q did not finish within %s", e.Backend, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }
