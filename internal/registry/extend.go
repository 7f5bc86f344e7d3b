package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/graph"
)

// Extend runs every sector module in sequence. Each module gets a clone of
// the graph so far; its result replaces the graph only after the
// append-only check passes. It implements graph.Extender.
func (r *Registry) Extend(ctx context.Context, g *graph.Graph, cfg *config.Configuration) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)

	seq, err := r.Sequence()
	if err != nil {
		return nil, fmt.Errorf("failed to order sector modules: %w", err)
	}

	for _, name := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, _ := r.Sector(name)
		logger.Debug("Running sector module.", "module", name)

		before := snapshot(g)
		next, err := s.Extend(ctx, g.Clone(), cfg)
		if err != nil {
			var dup *graph.DuplicateError
			if errors.As(err, &dup) {
				return nil, &ModuleConflictError{Module: name, Element: dup.ID, Reason: "element already exists", Err: err}
			}
			return nil, fmt.Errorf("sector module %q failed: %w", name, err)
		}
		if next == nil {
			return nil, fmt.Errorf("sector module %q returned no graph", name)
		}
		if err := verify(name, before, snapshot(next)); err != nil {
			return nil, err
		}

		added := next.Stats()
		logger.Debug("Sector module applied.", "module", name,
			"nodes", added.Nodes-len(before.nodes), "flows", added.Flows-len(before.flows), "bindings", added.Bindings-len(before.bindings))
		g = next
	}

	logger.Info("Sector modules applied.", "modules", len(seq))
	return g, nil
}

type state struct {
	nodes    map[string]graph.Node
	flows    map[string]graph.Flow
	bindings map[string]graph.Binding
}

func snapshot(g *graph.Graph) state {
	s := state{
		nodes:    make(map[string]graph.Node),
		flows:    make(map[string]graph.Flow),
		bindings: make(map[string]graph.Binding),
	}
	for _, n := range g.Nodes() {
		s.nodes[n.ID] = n
	}
	for _, f := range g.Flows() {
		s.flows[f.ID] = f
	}
	for _, b := range g.Bindings() {
		s.bindings[b.Template+"@"+b.Element] = b
	}
	return s
}

// verify checks that after contains every element of before unchanged, and
// that every new element is owned by module.
func verify(module string, before, after state) error {
	for _, id := range sortedKeys(before.nodes) {
		if err := compare(module, id, before.nodes[id], after.nodes, func(n graph.Node) string { return n.Origin }); err != nil {
			return err
		}
	}
	for _, id := range sortedKeys(before.flows) {
		if err := compare(module, id, before.flows[id], after.flows, func(f graph.Flow) string { return f.Origin }); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(before.bindings) {
		if _, ok := after.bindings[key]; !ok {
			b := before.bindings[key]
			return &ModuleConflictError{Module: module, Element: b.Element, Reason: fmt.Sprintf("removed binding of template %q", b.Template)}
		}
	}

	for _, id := range sortedKeys(after.nodes) {
		if _, existed := before.nodes[id]; !existed && after.nodes[id].Origin != module {
			return &ModuleConflictError{Module: module, Element: id, Reason: fmt.Sprintf("added with origin %q", after.nodes[id].Origin)}
		}
	}
	for _, id := range sortedKeys(after.flows) {
		if _, existed := before.flows[id]; !existed && after.flows[id].Origin != module {
			return &ModuleConflictError{Module: module, Element: id, Reason: fmt.Sprintf("added with origin %q", after.flows[id].Origin)}
		}
	}
	for _, key := range sortedKeys(after.bindings) {
		b := after.bindings[key]
		if _, existed := before.bindings[key]; !existed && b.Origin != module {
			return &ModuleConflictError{Module: module, Element: b.Element, Reason: fmt.Sprintf("bound template %q with origin %q", b.Template, b.Origin)}
		}
	}
	return nil
}

func compare[T any](module, id string, old T, after map[string]T, origin func(T) string) error {
	now, ok := after[id]
	if !ok {
		return &ModuleConflictError{Module: module, Element: id, Reason: "removed element owned by " + origin(old)}
	}
	if !reflect.DeepEqual(old, now) {
		return &ModuleConflictError{Module: module, Element: id, Reason: "changed element owned by " + origin(old)}
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	return slices.Sorted(maps.Keys(m))
}
