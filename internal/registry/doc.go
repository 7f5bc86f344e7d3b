// Package registry provides the central "glue" for sector modules.
//
// A sector module is compiled-in Go code that extends the core graph of a
// run: it may add nodes and flows (a curtailment sink, say) and attach
// opt-in constraint templates to existing elements. Modules declare which
// other modules must run before them; the registry turns those declarations
// into one deterministic sequence.
//
// During startup every module registers itself, then ValidateRegistry checks
// the declarations as a whole, so a dependency on a missing module, a cycle,
// or two modules claiming the same template name fails before any entity
// file is read.
//
// Extension is append-only. Each module runs on a clone of the graph, and
// the registry verifies afterwards that every element that existed before
// is still present and unchanged. A module that breaks this rule fails the
// run with a ModuleConflictError naming the module and the element.
package registry
