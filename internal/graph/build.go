package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/units"
)

// Extender adds elements to a built graph. The sector module registry is the
// production implementation.
type Extender interface {
	Extend(ctx context.Context, g *Graph, cfg *config.Configuration) (*Graph, error)
}

var nodeKinds = map[entity.Kind]NodeKind{
	entity.KindTechnology: KindTechnology,
	entity.KindCommodity:  KindCommodity,
	entity.KindNode:       KindLocation,
}

// Build creates the core graph for cfg, lets ext extend it, and checks the
// result. ext may be nil.
func Build(ctx context.Context, cfg *config.Configuration, ext Extender) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := buildCore(cfg)
	if err != nil {
		return nil, err
	}
	core := g.Stats()
	logger.Debug("Core graph built.", "nodes", core.Nodes, "flows", core.Flows)

	// Extensions may only add to a sound core; a sink must not revive a dead pool.
	if err := Check(g); err != nil {
		return nil, err
	}

	if ext != nil {
		if g, err = ext.Extend(ctx, g, cfg); err != nil {
			return nil, err
		}
	}
	if err := Check(g); err != nil {
		return nil, err
	}

	stats := g.Stats()
	logger.Info("Graph built.", "nodes", stats.Nodes, "flows", stats.Flows, "bindings", stats.Bindings)
	return g, nil
}

type builder struct {
	cfg      *config.Configuration
	base     int
	g        *Graph
	problems []string
}

func (b *builder) fail(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

func buildCore(cfg *config.Configuration) (*Graph, error) {
	if cfg == nil {
		return nil, &GraphError{Problems: []string{"no configuration"}}
	}
	b := &builder{cfg: cfg, base: cfg.Time().BaseYear(), g: New()}

	entities := cfg.Entities()
	for _, e := range entities {
		if kind, ok := nodeKinds[e.Kind]; ok {
			b.addNode(kind, e)
		}
	}
	for _, e := range entities {
		if e.Kind != entity.KindTechnology {
			continue
		}
		tech := NodeID(KindTechnology, e.ID)
		for _, l := range e.Inputs {
			b.addFlow(e, l, b.endpoint(e.ID, l.Target), tech, false)
		}
		for _, l := range e.Outputs {
			b.addFlow(e, l, tech, b.endpoint(e.ID, l.Target), true)
		}
	}

	if len(b.problems) > 0 {
		return nil, &GraphError{Problems: b.problems}
	}
	return b.g, nil
}

func (b *builder) addNode(kind NodeKind, e config.Entity) {
	n := Node{
		ID:     NodeID(kind, e.ID),
		Entity: e.ID,
		Kind:   kind,
		Sector: e.Sector,
		Origin: OriginCore,
	}

	switch kind {
	case KindTechnology:
		if p, ok := e.Param("output_capacity"); ok {
			if p.Dimension != units.Power {
				b.fail("technology %q: output_capacity must be a power, got %s", e.ID, p.Dimension)
			}
			n.Capacity = &Bound{Value: p.At(b.base), Dimension: p.Dimension}
		}
	case KindCommodity:
		n.Commodities = []string{e.ID}
	case KindLocation:
		if e.Commodity != "" {
			n.Commodities = []string{e.Commodity}
		}
		if p, ok := e.Param("capacity"); ok {
			if p.Dimension != units.Energy {
				b.fail("node %q: capacity must be an energy, got %s", e.ID, p.Dimension)
			}
			n.Capacity = &Bound{Value: p.At(b.base), Dimension: p.Dimension}
			n.Storage = true
		}
		if p, ok := e.Param("power_capacity"); ok {
			if p.Dimension != units.Power {
				b.fail("node %q: power_capacity must be a power, got %s", e.ID, p.Dimension)
			}
			v := p.At(b.base)
			n.PowerLimit = &v
		}
	}

	if err := b.g.AddNode(n); err != nil {
		b.fail("%v", err)
	}
}

// endpoint resolves a link target to its node ID.
func (b *builder) endpoint(owner, target string) string {
	e, ok := b.cfg.Entity(target)
	if !ok {
		b.fail("technology %q links to unknown entity %q", owner, target)
		return ""
	}
	kind, ok := nodeKinds[e.Kind]
	if !ok {
		b.fail("technology %q links to %s entity %q, which is not a graph node", owner, e.Kind, target)
		return ""
	}
	return NodeID(kind, target)
}

func (b *builder) addFlow(tech config.Entity, l config.Link, from, to string, output bool) {
	if from == "" || to == "" {
		return
	}
	f := Flow{From: from, To: to, Commodity: l.Commodity, Efficiency: 1, Origin: OriginCore}

	if p, ok := l.Param("efficiency"); ok {
		f.Efficiency = p.At(b.base)
	} else if p, ok := tech.Param("efficiency"); ok && output {
		f.Efficiency = p.At(b.base)
	}
	if p, ok := l.Param("capacity"); ok {
		if p.Dimension != units.Power {
			b.fail("technology %q: capacity of the link to %q must be a power, got %s", tech.ID, l.Target, p.Dimension)
		}
		v := p.At(b.base)
		f.Capacity = &v
	}

	if _, err := b.g.AddFlow(f); err != nil {
		b.fail("technology %q: %v", tech.ID, err)
	}
}

// Check verifies the structural invariants of a graph: every flow endpoint
// exists, every flow carries a commodity its endpoints accept, and every
// commodity pool has at least one incident flow.
func Check(g *Graph) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var problems []string
	flowIDs := make([]string, 0, len(g.flows))
	for id := range g.flows {
		flowIDs = append(flowIDs, id)
	}
	sort.Strings(flowIDs)
	for _, id := range flowIDs {
		f := g.flows[id]
		for _, end := range []string{f.From, f.To} {
			n, ok := g.nodes[end]
			if !ok {
				problems = append(problems, fmt.Sprintf("flow %q has dangling endpoint %q", id, end))
				continue
			}
			if len(n.Commodities) > 0 && !slices.Contains(n.Commodities, f.Commodity) {
				problems = append(problems, fmt.Sprintf("flow %q carries %q but node %q only accepts %v", id, f.Commodity, end, n.Commodities))
			}
		}
	}

	nodeIDs := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	for _, id := range nodeIDs {
		if g.nodes[id].Kind == KindCommodity && len(g.in[id])+len(g.out[id]) == 0 {
			problems = append(problems, fmt.Sprintf("commodity pool %q is dead: no flow enters or leaves it", id))
		}
	}

	if len(problems) > 0 {
		return &GraphError{Problems: problems}
	}
	return nil
}
