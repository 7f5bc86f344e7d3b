package constraint

import (
	"fmt"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/nodeid"
)

// Element is the graph element a template is instantiated on, together with
// the context templates read from. Exactly one of Node and Flow is set.
type Element struct {
	ID     string
	Node   *graph.Node
	Flow   *graph.Flow
	In     []graph.Flow // flows entering Node
	Out    []graph.Flow // flows leaving Node
	Graph  *graph.Graph
	Config *config.Configuration
}

// NodeElement wraps a node of g.
func NodeElement(g *graph.Graph, cfg *config.Configuration, n graph.Node) Element {
	return Element{
		ID:     n.ID,
		Node:   &n,
		In:     g.Inflows(n.ID),
		Out:    g.Outflows(n.ID),
		Graph:  g,
		Config: cfg,
	}
}

// FlowElement wraps a flow of g.
func FlowElement(g *graph.Graph, cfg *config.Configuration, f graph.Flow) Element {
	return Element{ID: f.ID, Flow: &f, Graph: g, Config: cfg}
}

// ElementFor looks up a node or flow by identifier.
func ElementFor(g *graph.Graph, cfg *config.Configuration, id string) (Element, error) {
	addr, err := nodeid.Parse(id)
	if err != nil {
		return Element{}, err
	}
	if addr.IsFlow() {
		f, ok := g.Flow(id)
		if !ok {
			return Element{}, fmt.Errorf("flow %q not found in graph", id)
		}
		return FlowElement(g, cfg, f), nil
	}
	n, ok := g.Node(id)
	if !ok {
		return Element{}, fmt.Errorf("node %q not found in graph", id)
	}
	return NodeElement(g, cfg, n), nil
}

// Entity returns the configuration entity behind a node element. Nodes
// created by sector modules have none.
func (el Element) Entity() (config.Entity, bool) {
	if el.Node == nil || el.Node.Entity == "" || el.Config == nil {
		return config.Entity{}, false
	}
	return el.Config.Entity(el.Node.Entity)
}

// Param returns a parameter of the element's entity.
func (el Element) Param(name string) (config.Param, bool) {
	e, ok := el.Entity()
	if !ok {
		return config.Param{}, false
	}
	return e.Param(name)
}

// IsTechnology reports whether the element is a technology node.
func (el Element) IsTechnology() bool {
	return el.Node != nil && el.Node.Kind == graph.KindTechnology
}

// Investable reports whether the capacity of a technology is a decision: it
// declares a lifetime, so capacity is built and retired over the horizon.
func Investable(el Element) bool {
	if !el.IsTechnology() {
		return false
	}
	_, ok := el.Param("lifetime")
	return ok
}

// Capacity is the installed capacity of a technology in one model year: a
// fixed value in MW, or the capacity variable when Var is set.
type Capacity struct {
	Fixed float64
	Var   string
}

// InstalledCapacity returns the capacity of a technology in year. It reports
// false for technologies without any capacity data.
func InstalledCapacity(el Element, year int) (Capacity, bool) {
	if !el.IsTechnology() {
		return Capacity{}, false
	}
	if Investable(el) {
		return Capacity{Var: CapVar(el.ID, year)}, true
	}
	if p, ok := el.Param("output_capacity"); ok {
		return Capacity{Fixed: p.At(year)}, true
	}
	if el.Node.Capacity != nil {
		return Capacity{Fixed: el.Node.Capacity.Value}, true
	}
	return Capacity{}, false
}

// delivered returns the flows whose arriving energy counts as a
// technology's activity: its outputs, or its inputs when it has none.
func (el Element) delivered() []graph.Flow {
	if len(el.Out) > 0 {
		return el.Out
	}
	return el.In
}
