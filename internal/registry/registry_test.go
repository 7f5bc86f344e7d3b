package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
	return g, nil
}

type moduleFunc func(r *Registry)

func (f moduleFunc) Register(r *Registry) { f(r) }

type namedTemplate struct{ constraint.Balance }

func (namedTemplate) Name() string { return "ramp" }

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cfg, err := config.New(config.DefaultTimeStructure(2030), []config.Entity{
		{ID: "store", Kind: entity.KindNode, Params: map[string]config.Param{"capacity": config.Scalar(units.Energy, "MWh", 5)}},
		{ID: "gen", Kind: entity.KindTechnology, Inputs: []config.Link{{Target: "store", Commodity: "fuel"}}},
	}, nil)
	require.NoError(t, err)
	return cfg
}

func TestSequence(t *testing.T) {
	r := New()
	r.Load(
		moduleFunc(func(r *Registry) { r.RegisterSector(Sector{Name: "heat", Order: 1, After: []string{"electricity"}, Extend: noop}) }),
		moduleFunc(func(r *Registry) { r.RegisterSector(Sector{Name: "electricity", Order: 5, Extend: noop}) }),
		moduleFunc(func(r *Registry) { r.RegisterSector(Sector{Name: "passenger", Order: 2, Extend: noop}) }),
		moduleFunc(func(r *Registry) { r.RegisterSector(Sector{Name: "freight", Order: 2, Extend: noop}) }),
	)
	require.NoError(t, r.ValidateRegistry(context.Background()))

	seq, err := r.Sequence()
	require.NoError(t, err)
	assert.Equal(t, []string{"freight", "passenger", "electricity", "heat"}, seq)
	assert.Equal(t, []string{"electricity", "freight", "heat", "passenger"}, r.Names())
}

func TestValidateRegistry(t *testing.T) {
	testCases := []struct {
		name    string
		sectors []Sector
		tmpl    []string
		want    []string
	}{
		{
			name:    "unknown dependency",
			sectors: []Sector{{Name: "heat", After: []string{"gas"}, Extend: noop}},
			want:    []string{"sector 'heat': depends on unknown sector 'gas'"},
		},
		{
			name: "cycle",
			sectors: []Sector{
				{Name: "a", After: []string{"b"}, Extend: noop},
				{Name: "b", After: []string{"a"}, Extend: noop},
			},
			want: []string{"cycle detected", "a -> b -> a"},
		},
		{
			name:    "missing extend",
			sectors: []Sector{{Name: "a"}},
			want:    []string{"sector 'a': no extend function"},
		},
		{
			name:    "template clashes with a built-in",
			sectors: []Sector{{Name: "a", Extend: noop}},
			tmpl:    []string{"builtin"},
			want:    []string{"template 'balance' is already provided by built-in"},
		},
		{
			name:    "two modules claim one template",
			sectors: []Sector{{Name: "a", Extend: noop}, {Name: "b", Extend: noop}},
			tmpl:    []string{"a", "b"},
			want:    []string{"sector 'b': template 'ramp' is already provided by sector 'a'"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			for _, s := range tc.sectors {
				r.RegisterSector(s)
			}
			for _, owner := range tc.tmpl {
				if owner == "builtin" {
					r.RegisterTemplate("a", constraint.Balance{}, false)
					continue
				}
				r.RegisterTemplate(owner, namedTemplate{}, true)
			}

			err := r.ValidateRegistry(context.Background())
			require.Error(t, err)
			assert.ErrorContains(t, err, "registry validation failed:\n- ")
			for _, want := range tc.want {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestRegisterSectorPanicsOnDuplicate(t *testing.T) {
	r := New()
	r.RegisterSector(Sector{Name: "a", Extend: noop})
	assert.PanicsWithValue(t, "sector module with name 'a' already registered", func() {
		r.RegisterSector(Sector{Name: "a", Extend: noop})
	})
}

func TestLibrary(t *testing.T) {
	r := New()
	r.RegisterSector(Sector{Name: "a", Extend: noop})
	r.RegisterTemplate("a", namedTemplate{}, true)

	lib, err := r.Library(nil)
	require.NoError(t, err)
	_, ok := lib.Lookup("ramp")
	assert.True(t, ok)
	assert.Len(t, lib.Core(), 5, "attach-only module templates do not join the core")

	r.RegisterTemplate("a", constraint.Balance{}, false)
	_, err = r.Library(nil)
	assert.ErrorContains(t, err, `sector module "a"`)
}

func TestExtend(t *testing.T) {
	cfg := testConfig(t)
	core, err := graph.Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	t.Run("modules append in sequence", func(t *testing.T) {
		var seen []string
		r := New()
		r.RegisterSector(Sector{Name: "first", Extend: func(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
			seen = append(seen, "first")
			return g, g.AddNode(graph.Node{ID: "sink.spill", Kind: graph.KindSink, Origin: "first"})
		}})
		r.RegisterSector(Sector{Name: "second", After: []string{"first"}, Extend: func(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
			seen = append(seen, "second")
			_, ok := g.Node("sink.spill")
			assert.True(t, ok, "later modules see earlier additions")
			return g, g.Attach(graph.Binding{Template: "activity_factor", Element: "technology.gen", Origin: "second"})
		}})

		out, err := r.Extend(context.Background(), core, cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, seen)
		assert.Equal(t, graph.Stats{Nodes: 3, Flows: 1, Bindings: 1}, out.Stats())
		assert.Equal(t, graph.Stats{Nodes: 2, Flows: 1}, core.Stats(), "the input graph is not modified")
	})

	testCases := []struct {
		name    string
		extend  ExtendFunc
		element string
		reason  string
	}{
		{
			name: "removes an element",
			extend: func(context.Context, *graph.Graph, *config.Configuration) (*graph.Graph, error) {
				return graph.New(), nil
			},
			element: "node.store",
			reason:  "removed element owned by core",
		},
		{
			name: "changes an element",
			extend: func(context.Context, *graph.Graph, *config.Configuration) (*graph.Graph, error) {
				g := graph.New()
				for _, n := range core.Nodes() {
					if n.ID == "node.store" {
						n.Capacity = &graph.Bound{Value: 999, Dimension: units.Energy}
					}
					if err := g.AddNode(n); err != nil {
						return nil, err
					}
				}
				return g, nil
			},
			element: "node.store",
			reason:  "changed element owned by core",
		},
		{
			name: "adds a duplicate",
			extend: func(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
				return nil, g.AddNode(graph.Node{ID: "node.store", Kind: graph.KindLocation, Origin: "rogue"})
			},
			element: "node.store",
			reason:  "element already exists",
		},
		{
			name: "adds under a foreign origin",
			extend: func(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
				return g, g.AddNode(graph.Node{ID: "sink.spill", Kind: graph.KindSink, Origin: "someone_else"})
			},
			element: "sink.spill",
			reason:  `added with origin "someone_else"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			r.RegisterSector(Sector{Name: "rogue", Extend: tc.extend})

			_, err := r.Extend(context.Background(), core, cfg)
			var conflict *ModuleConflictError
			require.True(t, errors.As(err, &conflict), "expected ModuleConflictError, got %v", err)
			assert.Equal(t, "rogue", conflict.Module)
			assert.Equal(t, tc.element, conflict.Element)
			assert.Contains(t, conflict.Reason, tc.reason)
		})
	}

	t.Run("error cases", func(t *testing.T) {
		boom := errors.New("boom")
		r := New()
		r.RegisterSector(Sector{Name: "bad", Extend: func(context.Context, *graph.Graph, *config.Configuration) (*graph.Graph, error) {
			return nil, boom
		}})
		_, err := r.Extend(context.Background(), core, cfg)
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, `sector module "bad" failed`)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = r.Extend(ctx, core, cfg)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
