// Package dag is a small dependency graph over string IDs. The sector module
// registry uses it to reject dependency cycles between modules and to derive
// the fixed order in which modules extend the model graph.
package dag
