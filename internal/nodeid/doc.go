// internal/nodeid/doc.go

/*
Package nodeid provides the structured identifiers of graph elements.

A node address is `<kind>.<entity>`, e.g. `technology.generator` or
`sink.electricity_curtailment`. A flow address joins the two endpoint
addresses under the `flow` prefix, e.g.
`flow.node.fuel_storage.technology.generator`; parallel flows between the
same endpoints carry an index on the last segment, e.g. `...generator[1]`.

The same identifiers name decision variables and constraints in the
assembled problem, so every formatting and parsing rule lives here.
*/
package nodeid
