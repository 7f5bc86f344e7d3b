// Package graph holds the directed commodity-flow multigraph the model is
// assembled from.
//
// # Elements
//
// Nodes are technologies, commodity pools, locations (storage sites and other
// places named by node entities) and sinks added by sector modules. Flows are
// directed edges carrying one commodity between two nodes; several flows may
// join the same pair, each with its own efficiency and capacity. Bindings
// attach an opt-in constraint template to a node or flow.
//
// # Why the graph is append-only
//
// Sector modules extend the graph one after another, and each later module
// may rely on what earlier ones added. The Graph API therefore offers no way
// to remove or replace an element: AddNode, AddFlow and Attach fail on
// duplicates or missing endpoints, and every reader receives a copy. The
// module registry additionally runs each module on a Clone and compares the
// result with the original, so even a module that works around the API is
// caught.
//
// # Lifecycle
//
//  1. Build creates the core graph from a Configuration.
//  2. The Extender (the sector module registry) adds module elements.
//  3. Check verifies that every flow endpoint exists and that no commodity
//     pool is dead.
//  4. The model assembler reads the graph to create variables and constraints.
package graph
