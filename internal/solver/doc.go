// Package solver is the boundary between an assembled problem and the
// program that optimizes it.
//
// A Backend solves a problem and reports a Solution or an *Error carrying
// the failure status. Solve is the one blocking call the application makes:
// it runs the backend in its own goroutine and returns a *TimeoutError once
// the deadline passes, abandoning the backend.
//
// The simplex backend is a reference implementation on gonum's LP simplex. It
// handles continuous problems of modest size and rejects integer variables.
package solver
