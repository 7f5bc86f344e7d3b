// Package problem is the solver-ready linear program: bounded decision
// variables, named linear constraints and a minimization objective. It is a
// plain data contract; writers render it as CPLEX LP text or JSON for
// whichever solver consumes it.
package problem
