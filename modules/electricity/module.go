// Package electricity is the sector module for power systems. It gives every
// electricity pool a curtailment sink, so surplus generation can be spilled,
// and binds the reserve_margin template when a policy sets one.
package electricity

import (
	"context"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/registry"
)

// Name is the sector name and the origin of every element this module adds.
const Name = "electricity"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sector with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSector(registry.Sector{Name: Name, Order: 10, Extend: Extend})
}

// IsPool reports whether n is an electricity commodity pool.
func IsPool(n graph.Node) bool {
	return n.Kind == graph.KindCommodity && (n.Sector == Name || n.Entity == Name)
}

// CurtailmentID returns the sink node of a pool.
func CurtailmentID(pool graph.Node) string {
	return graph.NodeID(graph.KindSink, "curtailment_"+pool.Entity)
}

// Extend adds the curtailment sinks and reserve-margin bindings.
func Extend(ctx context.Context, g *graph.Graph, cfg *config.Configuration) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	_, hasReserve := cfg.Policy(Name, "reserve_margin")
	if !hasReserve {
		_, hasReserve = cfg.Policy("", "reserve_margin")
	}

	for _, pool := range g.Nodes() {
		if !IsPool(pool) {
			continue
		}
		sink := graph.Node{
			ID:          CurtailmentID(pool),
			Kind:        graph.KindSink,
			Sector:      Name,
			Commodities: pool.Commodities,
			Origin:      Name,
		}
		if err := g.AddNode(sink); err != nil {
			return nil, err
		}
		if _, err := g.AddFlow(graph.Flow{
			From:       pool.ID,
			To:         sink.ID,
			Commodity:  pool.Entity,
			Efficiency: 1,
			Origin:     Name,
		}); err != nil {
			return nil, err
		}
		logger.Debug("Curtailment sink added.", "pool", pool.ID, "sink", sink.ID)

		if !hasReserve {
			continue
		}
		reserve := constraint.ReserveMargin{}
		if !reserve.ApplicableTo(constraint.NodeElement(g, cfg, pool)) {
			logger.Warn("Reserve margin policy set, but the pool has no demand or no supplying technology.", "pool", pool.ID)
			continue
		}
		if err := g.Attach(graph.Binding{Template: reserve.Name(), Element: pool.ID, Origin: Name}); err != nil {
			return nil, err
		}
	}
	return g, nil
}
