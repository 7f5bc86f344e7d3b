package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/dag"
)

// ValidateRegistry checks the registered modules as a whole: every
// dependency names a registered module, dependencies are acyclic, and no
// two templates share a name.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string
	unresolved := false

	r.mu.RLock()
	for _, name := range r.sortedNames() {
		s := r.sectors[name]
		if s.Extend == nil {
			errs = append(errs, fmt.Sprintf("sector '%s': no extend function", name))
		}
		for _, dep := range s.After {
			if _, ok := r.sectors[dep]; !ok {
				errs = append(errs, fmt.Sprintf("sector '%s': depends on unknown sector '%s'", name, dep))
				unresolved = true
			}
		}
	}

	owners := make(map[string]string)
	for _, name := range constraint.NewLibrary(nil).Names() {
		owners[name] = "built-in"
	}
	for _, t := range r.templates {
		name := t.Template.Name()
		if name == "" {
			errs = append(errs, fmt.Sprintf("sector '%s': template has no name", t.Sector))
			continue
		}
		if owner, taken := owners[name]; taken {
			errs = append(errs, fmt.Sprintf("sector '%s': template '%s' is already provided by %s", t.Sector, name, owner))
			continue
		}
		owners[name] = fmt.Sprintf("sector '%s'", t.Sector)
	}
	r.mu.RUnlock()

	// Cycles are only meaningful once every dependency resolves.
	if !unresolved {
		g, err := r.dependencyGraph()
		if err == nil {
			err = g.DetectCycles()
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validated.", "sectors", len(r.Names()), "templates", len(r.Templates()))
	return nil
}

// dependencyGraph builds the module DAG: an edge dep -> name for every
// declared dependency.
func (r *Registry) dependencyGraph() (*dag.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := dag.New()
	for name := range r.sectors {
		g.AddNode(name)
	}
	for _, name := range r.sortedNames() {
		for _, dep := range r.sectors[name].After {
			if err := g.AddEdge(dep, name); err != nil {
				return nil, fmt.Errorf("sector '%s': %w", name, err)
			}
		}
	}
	return g, nil
}

// Sequence returns the order in which modules extend the graph: every module
// after its dependencies, ties broken by Order and then by name.
func (r *Registry) Sequence() ([]string, error) {
	g, err := r.dependencyGraph()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	order := make(map[string]int, len(r.sectors))
	for name, s := range r.sectors {
		order[name] = s.Order
	}
	r.mu.RUnlock()

	return g.TopologicalOrder(func(a, b string) bool {
		if order[a] != order[b] {
			return order[a] < order[b]
		}
		return a < b
	})
}
