package dag

import (
	"fmt"
	"sort"
	"strings"
)

// New returns an empty Graph.
func New() *Graph {
	return &Graph{vertices: make(map[string]*vertex)}
}

// AddNode adds id to the graph. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.vertices[id]; ok {
		return
	}
	g.vertices[id] = &vertex{
		id:        id,
		prereqs:   make(map[string]*vertex),
		followers: make(map[string]*vertex),
	}
}

// AddEdge records that toID must come after fromID. Both IDs must exist and
// differ.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.vertices[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.vertices[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	to.prereqs[fromID] = from
	from.followers[toID] = to
	return nil
}

// Dependencies returns the sorted IDs that must come before id.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(v.prereqs), nil
}

// Dependents returns the sorted IDs that must come after id.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(v.followers), nil
}

// DetectCycles returns an error naming the first cycle found. Vertices are
// visited in ID order, so the report is stable.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	done := make(map[string]bool)
	onPath := make(map[string]bool)
	var path []string

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		if done[v.id] {
			return nil
		}
		if onPath[v.id] {
			start := 0
			for i, id := range path {
				if id == v.id {
					start = i
				}
			}
			cycle := append(append([]string(nil), path[start:]...), v.id)
			return fmt.Errorf("cycle detected involving node '%s': %s", v.id, strings.Join(cycle, " -> "))
		}

		onPath[v.id] = true
		path = append(path, v.id)
		for _, id := range sortedIDs(v.followers) {
			if err := visit(v.followers[id]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(onPath, v.id)
		done[v.id] = true
		return nil
	}

	for _, id := range sortedIDs(g.vertices) {
		if err := visit(g.vertices[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every ID after all of its dependencies. Among
// the IDs that are ready at the same time, less decides; a nil less orders
// them by ID. A cyclic graph is an error.
func (g *Graph) TopologicalOrder(less func(a, b string) bool) ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	if less == nil {
		less = func(a, b string) bool { return a < b }
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	waiting := make(map[string]int, len(g.vertices))
	var ready []string
	for id, v := range g.vertices {
		waiting[id] = len(v.prereqs)
		if len(v.prereqs) == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.vertices))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range sortedIDs(g.vertices[id].followers) {
			waiting[next]--
			if waiting[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order, nil
}

func sortedIDs(vertices map[string]*vertex) []string {
	ids := make([]string, 0, len(vertices))
	for id := range vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
