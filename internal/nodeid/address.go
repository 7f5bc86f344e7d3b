// internal/nodeid/address.go
package nodeid

import (
	"fmt"
	"strings"
)

// String serializes the Address into its canonical path string representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	for i, segment := range a.Path {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.Index != -1 {
			sb.WriteString(fmt.Sprintf("[%d]", segment.Index))
		}
	}

	return sb.String()
}

// Kind returns the first segment of the address.
func (a *Address) Kind() Kind {
	if a == nil || len(a.Path) == 0 {
		return ""
	}
	return Kind(a.Path[0].Name)
}

// IsNode reports whether a has the shape `<kind>.<name>`.
func (a *Address) IsNode() bool {
	return a != nil && len(a.Path) == 2 && nodeKinds[a.Kind()] &&
		!a.Path[0].HasIndex() && !a.Path[1].HasIndex()
}

// IsFlow reports whether a has the shape of a flow address.
func (a *Address) IsFlow() bool {
	_, _, ok := a.Endpoints()
	return ok
}

// Endpoints splits a flow address into its endpoint node addresses.
func (a *Address) Endpoints() (from, to *Address, ok bool) {
	if a == nil || len(a.Path) != 5 || a.Kind() != KindFlow || a.Path[0].HasIndex() {
		return nil, nil, false
	}
	from = &Address{Path: []PathSegment{a.Path[1], a.Path[2]}}
	last := a.Path[4]
	last.Index = -1
	to = &Address{Path: []PathSegment{a.Path[3], last}}
	if !from.IsNode() || !to.IsNode() {
		return nil, nil, false
	}
	return from, to, true
}
