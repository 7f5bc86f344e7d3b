// Package constraint holds the constraint library: templates that turn one
// graph element and the model's time slices into linear rows.
//
// Templates are pure. Instantiating a template twice on the same element
// and slices yields equal instances, so the assembler can run them in any
// order and the resulting problem depends only on the graph and the
// Configuration.
//
// Core templates apply to every element their ApplicableTo accepts. Attach-only
// templates run only where a sector module bound them to an element.
package constraint
