// internal/nodeid/types.go
package nodeid

// Kind is the first segment of a graph element address.
type Kind string

const (
	KindTechnology Kind = "technology"
	KindCommodity  Kind = "commodity"
	KindLocation   Kind = "node"
	KindSink       Kind = "sink"
	KindFlow       Kind = "flow"
)

// nodeKinds are the kinds a node address may carry.
var nodeKinds = map[Kind]bool{
	KindTechnology: true,
	KindCommodity:  true,
	KindLocation:   true,
	KindSink:       true,
}

// PathSegment represents a single component of an address path, e.g., `name[index]`.
type PathSegment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewPathSegment creates a new path segment without an index.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name, Index: -1}
}

// NewPathSegmentWithIndex creates a new path segment that includes an index.
func NewPathSegmentWithIndex(name string, index int) PathSegment {
	return PathSegment{Name: name, Index: index}
}

// HasIndex returns true if the path segment has an explicit index.
func (ps PathSegment) HasIndex() bool {
	return ps.Index != -1
}

// Address is the structured representation of a graph element identifier.
type Address struct {
	Path []PathSegment
}

// Node builds the address of a node.
func Node(kind Kind, name string) *Address {
	return &Address{Path: []PathSegment{NewPathSegment(string(kind)), NewPathSegment(name)}}
}

// Flow builds the address of a flow between two node addresses. Index 0 is
// the first flow between the pair and is written without an index.
func Flow(from, to *Address, index int) *Address {
	path := make([]PathSegment, 0, 1+len(from.Path)+len(to.Path))
	path = append(path, NewPathSegment(string(KindFlow)))
	path = append(path, from.Path...)
	path = append(path, to.Path...)
	if index > 0 {
		path[len(path)-1].Index = index
	}
	return &Address{Path: path}
}
