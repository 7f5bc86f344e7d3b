// Package passenger is the sector module for passenger transport. Transport
// technologies are identified by the conv_pass_ prefix or the passenger
// sector tag; those with capacity-factor or annual-activity data get the
// activity_factor template.
package passenger

import (
	"context"
	"strings"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/registry"
)

// Name is the sector name and the origin of every binding this module adds.
const Name = "passenger"

// GroupPrefix marks passenger transport technologies by entity ID.
const GroupPrefix = "conv_pass_"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sector with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSector(registry.Sector{Name: Name, Order: 20, Extend: Extend})
}

// IsTransport reports whether n is a passenger transport technology.
func IsTransport(n graph.Node) bool {
	return n.Kind == graph.KindTechnology && (n.Sector == Name || strings.HasPrefix(n.Entity, GroupPrefix))
}

// Extend binds activity_factor to every transport technology it applies to.
func Extend(ctx context.Context, g *graph.Graph, cfg *config.Configuration) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	activity := constraint.ActivityFactor{}

	bound := 0
	for _, n := range g.Nodes() {
		if !IsTransport(n) || !activity.ApplicableTo(constraint.NodeElement(g, cfg, n)) {
			continue
		}
		if err := g.Attach(graph.Binding{Template: activity.Name(), Element: n.ID, Origin: Name}); err != nil {
			return nil, err
		}
		bound++
	}
	logger.Debug("Passenger transport bindings added.", "count", bound)
	return g, nil
}
