package graph

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/specialistvlad/restore/internal/nodeid"
	"github.com/specialistvlad/restore/internal/units"
)

// NodeKind classifies a node.
type NodeKind string

const (
	KindTechnology NodeKind = "technology"
	KindCommodity  NodeKind = "commodity"
	KindLocation   NodeKind = "location"
	KindSink       NodeKind = "sink"
)

var addressKinds = map[NodeKind]nodeid.Kind{
	KindTechnology: nodeid.KindTechnology,
	KindCommodity:  nodeid.KindCommodity,
	KindLocation:   nodeid.KindLocation,
	KindSink:       nodeid.KindSink,
}

// OriginCore marks elements created by Build.
const OriginCore = "core"

// NodeID returns the canonical identifier of a node.
func NodeID(kind NodeKind, name string) string {
	return nodeid.Node(addressKinds[kind], name).String()
}

// Bound is a capacity limit in base units.
type Bound struct {
	Value     float64
	Dimension units.Dimension
}

// Node is a graph vertex.
type Node struct {
	ID          string
	Entity      string // source entity; empty for module-created nodes
	Kind        NodeKind
	Sector      string
	Capacity    *Bound   // energy for storage, power for technologies
	PowerLimit  *float64 // MW; bounds the inflows of a location
	Storage     bool
	Commodities []string // allowed incident commodities; empty means any
	Origin      string
}

func (n Node) clone() Node {
	out := n
	if n.Capacity != nil {
		c := *n.Capacity
		out.Capacity = &c
	}
	if n.PowerLimit != nil {
		p := *n.PowerLimit
		out.PowerLimit = &p
	}
	out.Commodities = slices.Clone(n.Commodities)
	return out
}

// Flow is a directed edge carrying one commodity.
type Flow struct {
	ID         string
	From       string
	To         string
	Commodity  string
	Efficiency float64
	Capacity   *float64 // MW
	Origin     string
}

func (f Flow) clone() Flow {
	out := f
	if f.Capacity != nil {
		c := *f.Capacity
		out.Capacity = &c
	}
	return out
}

// DuplicateError reports an element that is already in the graph.
type DuplicateError struct {
	Kind string // node or flow
	ID   string
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("%s %q already exists", e.Kind, e.ID) }

// Binding attaches an opt-in constraint template to a node or flow.
type Binding struct {
	Template string
	Element  string
	Origin   string
}

func (b Binding) key() string { return b.Template + "@" + b.Element }

// Graph is an append-only multigraph. It is safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]Node
	flows    map[string]Flow
	out      map[string][]string // node ID -> outgoing flow IDs
	in       map[string][]string // node ID -> incoming flow IDs
	bindings map[string]Binding
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]Node),
		flows:    make(map[string]Flow),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
		bindings: make(map[string]Binding),
	}
}

// AddNode inserts a node. The ID must be a node address matching the kind.
func (g *Graph) AddNode(n Node) error {
	addr, err := nodeid.ParseNode(n.ID)
	if err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}
	if want, ok := addressKinds[n.Kind]; !ok || addr.Kind() != want {
		return fmt.Errorf("node %q: kind %q does not match its identifier", n.ID, n.Kind)
	}
	if n.Origin == "" {
		return fmt.Errorf("node %q has no origin", n.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.ID]; exists {
		return &DuplicateError{Kind: "node", ID: n.ID}
	}
	n = n.clone()
	sort.Strings(n.Commodities)
	n.Commodities = slices.Compact(n.Commodities)
	g.nodes[n.ID] = n
	return nil
}

// AddFlow inserts a flow between two existing nodes and returns it with its
// assigned identifier. Parallel flows between the same pair are numbered in
// insertion order.
func (g *Graph) AddFlow(f Flow) (Flow, error) {
	if f.Origin == "" {
		return Flow{}, fmt.Errorf("flow %s -> %s has no origin", f.From, f.To)
	}
	if f.Commodity == "" {
		return Flow{}, fmt.Errorf("flow %s -> %s carries no commodity", f.From, f.To)
	}
	if f.Efficiency <= 0 {
		return Flow{}, fmt.Errorf("flow %s -> %s: efficiency must be positive, got %v", f.From, f.To, f.Efficiency)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[f.From]; !ok {
		return Flow{}, fmt.Errorf("flow source %q not found in graph", f.From)
	}
	if _, ok := g.nodes[f.To]; !ok {
		return Flow{}, fmt.Errorf("flow target %q not found in graph", f.To)
	}

	from, _ := nodeid.ParseNode(f.From)
	to, _ := nodeid.ParseNode(f.To)
	index := 0
	for _, id := range g.out[f.From] {
		if g.flows[id].To == f.To {
			index++
		}
	}
	f = f.clone()
	f.ID = nodeid.Flow(from, to, index).String()
	if _, exists := g.flows[f.ID]; exists {
		return Flow{}, &DuplicateError{Kind: "flow", ID: f.ID}
	}
	g.flows[f.ID] = f
	g.out[f.From] = append(g.out[f.From], f.ID)
	g.in[f.To] = append(g.in[f.To], f.ID)
	return f.clone(), nil
}

// Attach binds a template to an existing node or flow.
func (g *Graph) Attach(b Binding) error {
	if b.Template == "" || b.Origin == "" {
		return fmt.Errorf("binding of %q needs a template name and an origin", b.Element)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, isNode := g.nodes[b.Element]
	_, isFlow := g.flows[b.Element]
	if !isNode && !isFlow {
		return fmt.Errorf("cannot bind template %q: element %q not found in graph", b.Template, b.Element)
	}
	if _, exists := g.bindings[b.key()]; exists {
		return fmt.Errorf("template %q is already bound to %q", b.Template, b.Element)
	}
	g.bindings[b.key()] = b
	return nil
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n.clone(), ok
}

// Nodes returns copies of all nodes sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flow returns a copy of the flow with the given ID.
func (g *Graph) Flow(id string) (Flow, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok := g.flows[id]
	return f.clone(), ok
}

// Flows returns copies of all flows sorted by ID.
func (g *Graph) Flows() []Flow {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Flow, 0, len(g.flows))
	for _, f := range g.flows {
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Inflows returns the flows entering a node, in insertion order.
func (g *Graph) Inflows(id string) []Flow {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.in[id])
}

// Outflows returns the flows leaving a node, in insertion order.
func (g *Graph) Outflows(id string) []Flow {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.out[id])
}

func (g *Graph) collect(ids []string) []Flow {
	out := make([]Flow, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.flows[id].clone())
	}
	return out
}

// Bindings returns all bindings sorted by template, then element.
func (g *Graph) Bindings() []Binding {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Binding, 0, len(g.bindings))
	for _, b := range g.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Template != out[j].Template {
			return out[i].Template < out[j].Template
		}
		return out[i].Element < out[j].Element
	})
	return out
}

// Clone returns an independent deep copy.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := New()
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for id, f := range g.flows {
		c.flows[id] = f.clone()
	}
	for id, ids := range g.out {
		c.out[id] = slices.Clone(ids)
	}
	for id, ids := range g.in {
		c.in[id] = slices.Clone(ids)
	}
	for k, b := range g.bindings {
		c.bindings[k] = b
	}
	return c
}

// Stats summarizes the graph size.
type Stats struct {
	Nodes    int `json:"nodes"`
	Flows    int `json:"flows"`
	Bindings int `json:"bindings"`
}

// Stats returns the element counts.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{Nodes: len(g.nodes), Flows: len(g.flows), Bindings: len(g.bindings)}
}
