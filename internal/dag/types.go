package dag

import "sync"

// Graph holds IDs and the ordering edges between them. It is safe for
// concurrent use.
type Graph struct {
	mutex    sync.RWMutex
	vertices map[string]*vertex
}

// vertex is one ID. Callers only see IDs.
type vertex struct {
	id        string
	prereqs   map[string]*vertex // must come first
	followers map[string]*vertex // wait for this vertex
}
