package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalar(dim units.Dimension, unit string, v float64) config.Param {
	return config.Scalar(dim, unit, v)
}

// exampleConfig is the fuel storage feeding a generator, plus an electricity
// pool the generator supplies.
func exampleConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cfg, err := config.New(config.DefaultTimeStructure(2030), []config.Entity{
		{
			ID: "fuel_storage", Kind: entity.KindNode,
			Params: map[string]config.Param{"capacity": scalar(units.Energy, "MWh", 100)},
		},
		{
			ID: "generator", Kind: entity.KindTechnology, Sector: "electricity",
			Inputs: []config.Link{{Target: "fuel_storage", Commodity: "fuel_storage"}},
			Outputs: []config.Link{{
				Target: "electricity", Commodity: "electricity",
				Params: map[string]config.Param{"efficiency": scalar(units.Dimensionless, "1", 0.38)},
			}},
			Params: map[string]config.Param{
				"output_capacity":  scalar(units.Power, "MW", 10),
				"cost_variable_om": scalar("currency/energy", "USD/MWh", 5),
			},
		},
		{ID: "electricity", Kind: entity.KindCommodity},
	}, nil)
	require.NoError(t, err)
	return cfg
}

func TestBuild(t *testing.T) {
	g, err := Build(context.Background(), exampleConfig(t), nil)
	require.NoError(t, err)

	assert.Equal(t, Stats{Nodes: 3, Flows: 2}, g.Stats())

	storage, ok := g.Node("node.fuel_storage")
	require.True(t, ok)
	assert.Equal(t, KindLocation, storage.Kind)
	assert.True(t, storage.Storage)
	assert.Equal(t, &Bound{Value: 100, Dimension: units.Energy}, storage.Capacity)
	assert.Equal(t, OriginCore, storage.Origin)

	gen, ok := g.Node("technology.generator")
	require.True(t, ok)
	assert.Equal(t, &Bound{Value: 10, Dimension: units.Power}, gen.Capacity)
	assert.Equal(t, "electricity", gen.Sector)

	pool, _ := g.Node("commodity.electricity")
	assert.Equal(t, []string{"electricity"}, pool.Commodities)

	in := g.Inflows("technology.generator")
	require.Len(t, in, 1, "exactly one flow from the fuel storage to the generator")
	assert.Equal(t, Flow{
		ID:         "flow.node.fuel_storage.technology.generator",
		From:       "node.fuel_storage",
		To:         "technology.generator",
		Commodity:  "fuel_storage",
		Efficiency: 1,
		Origin:     OriginCore,
	}, in[0])

	out := g.Outflows("technology.generator")
	require.Len(t, out, 1)
	assert.Equal(t, "commodity.electricity", out[0].To)
	assert.Equal(t, 0.38, out[0].Efficiency)
}

func TestBuildEfficiencyFallbacks(t *testing.T) {
	cfg, err := config.New(config.DefaultTimeStructure(0), []config.Entity{
		{ID: "heat", Kind: entity.KindCommodity},
		{ID: "gas", Kind: entity.KindCommodity},
		{
			ID: "boiler", Kind: entity.KindTechnology,
			Inputs:  []config.Link{{Target: "gas", Commodity: "gas"}},
			Outputs: []config.Link{{Target: "heat", Commodity: "heat", Params: map[string]config.Param{"capacity": scalar(units.Power, "MW", 3)}}},
			Params:  map[string]config.Param{"efficiency": scalar(units.Dimensionless, "1", 0.9)},
		},
	}, nil)
	require.NoError(t, err)

	g, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	in := g.Inflows("technology.boiler")
	require.Len(t, in, 1)
	assert.Equal(t, 1.0, in[0].Efficiency, "technology efficiency applies to outputs only")

	out := g.Outflows("technology.boiler")
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Efficiency)
	require.NotNil(t, out[0].Capacity)
	assert.Equal(t, 3.0, *out[0].Capacity)
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		name     string
		entities []config.Entity
		want     string
	}{
		{
			name:     "dead commodity pool",
			entities: []config.Entity{{ID: "hydrogen", Kind: entity.KindCommodity}},
			want:     `commodity pool "commodity.hydrogen" is dead`,
		},
		{
			name: "storage capacity in power units",
			entities: []config.Entity{{
				ID: "tank", Kind: entity.KindNode,
				Params: map[string]config.Param{"capacity": scalar(units.Power, "MW", 1)},
			}},
			want: "capacity must be an energy",
		},
		{
			name: "flow commodity rejected by node",
			entities: []config.Entity{
				{ID: "tank", Kind: entity.KindNode, Commodity: "gas"},
				{ID: "gas", Kind: entity.KindCommodity},
				{ID: "pump", Kind: entity.KindTechnology, Outputs: []config.Link{{Target: "tank", Commodity: "water"}}, Inputs: []config.Link{{Target: "gas", Commodity: "gas"}}},
			},
			want: `carries "water" but node "node.tank" only accepts [gas]`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.New(config.DefaultTimeStructure(0), tc.entities, nil)
			require.NoError(t, err)
			_, err = Build(context.Background(), cfg, nil)
			var ge *GraphError
			require.True(t, errors.As(err, &ge), "expected GraphError, got %v", err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

type extenderFunc func(ctx context.Context, g *Graph, cfg *config.Configuration) (*Graph, error)

func (f extenderFunc) Extend(ctx context.Context, g *Graph, cfg *config.Configuration) (*Graph, error) {
	return f(ctx, g, cfg)
}

func TestBuildRunsExtenderBeforeCheck(t *testing.T) {
	cfg := exampleConfig(t)

	t.Run("extension is kept", func(t *testing.T) {
		ext := extenderFunc(func(_ context.Context, g *Graph, _ *config.Configuration) (*Graph, error) {
			require.NoError(t, g.AddNode(Node{ID: "sink.curtailment", Kind: KindSink, Origin: "test"}))
			_, err := g.AddFlow(Flow{From: "commodity.electricity", To: "sink.curtailment", Commodity: "electricity", Efficiency: 1, Origin: "test"})
			return g, err
		})
		g, err := Build(context.Background(), cfg, ext)
		require.NoError(t, err)
		assert.Equal(t, 4, g.Stats().Nodes)
	})

	t.Run("extension cannot revive a dead pool", func(t *testing.T) {
		cfg, err := config.New(config.DefaultTimeStructure(2030), []config.Entity{
			{ID: "electricity", Kind: entity.KindCommodity},
		}, nil)
		require.NoError(t, err)

		called := false
		ext := extenderFunc(func(_ context.Context, g *Graph, _ *config.Configuration) (*Graph, error) {
			called = true
			require.NoError(t, g.AddNode(Node{ID: "sink.curtailment_electricity", Kind: KindSink, Origin: "test"}))
			_, err := g.AddFlow(Flow{From: "commodity.electricity", To: "sink.curtailment_electricity", Commodity: "electricity", Efficiency: 1, Origin: "test"})
			return g, err
		})
		_, err = Build(context.Background(), cfg, ext)
		var ge *GraphError
		require.True(t, errors.As(err, &ge), "expected GraphError, got %v", err)
		assert.ErrorContains(t, err, `commodity pool "commodity.electricity" is dead`)
		assert.False(t, called, "the extender never sees a broken core")
	})

	t.Run("extender errors stop the build", func(t *testing.T) {
		boom := errors.New("boom")
		ext := extenderFunc(func(context.Context, *Graph, *config.Configuration) (*Graph, error) { return nil, boom })
		_, err := Build(context.Background(), cfg, ext)
		assert.ErrorIs(t, err, boom)
	})
}

func TestGraphAppendOnly(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "node.a", Kind: KindLocation, Origin: OriginCore}))
	require.NoError(t, g.AddNode(Node{ID: "technology.b", Kind: KindTechnology, Origin: OriginCore}))

	first, err := g.AddFlow(Flow{From: "node.a", To: "technology.b", Commodity: "x", Efficiency: 1, Origin: OriginCore})
	require.NoError(t, err)
	second, err := g.AddFlow(Flow{From: "node.a", To: "technology.b", Commodity: "y", Efficiency: 1, Origin: OriginCore})
	require.NoError(t, err)
	assert.Equal(t, "flow.node.a.technology.b", first.ID)
	assert.Equal(t, "flow.node.a.technology.b[1]", second.ID)

	require.NoError(t, g.Attach(Binding{Template: "activity_factor", Element: "technology.b", Origin: "test"}))

	t.Run("error cases", func(t *testing.T) {
		assert.ErrorContains(t, g.AddNode(Node{ID: "node.a", Kind: KindLocation, Origin: OriginCore}), "already exists")
		assert.ErrorContains(t, g.AddNode(Node{ID: "node.c", Kind: KindTechnology, Origin: OriginCore}), "does not match")
		assert.ErrorContains(t, g.AddNode(Node{ID: "c", Kind: KindLocation, Origin: OriginCore}), "not a node address")
		assert.ErrorContains(t, g.AddNode(Node{ID: "node.c", Kind: KindLocation}), "no origin")

		_, err := g.AddFlow(Flow{From: "node.a", To: "node.missing", Commodity: "x", Efficiency: 1, Origin: OriginCore})
		assert.ErrorContains(t, err, `flow target "node.missing" not found`)
		_, err = g.AddFlow(Flow{From: "node.a", To: "technology.b", Efficiency: 1, Origin: OriginCore})
		assert.ErrorContains(t, err, "carries no commodity")
		_, err = g.AddFlow(Flow{From: "node.a", To: "technology.b", Commodity: "x", Origin: OriginCore})
		assert.ErrorContains(t, err, "efficiency must be positive")

		assert.ErrorContains(t, g.Attach(Binding{Template: "activity_factor", Element: "technology.b", Origin: "test"}), "already bound")
		assert.ErrorContains(t, g.Attach(Binding{Template: "activity_factor", Element: "technology.z", Origin: "test"}), "not found")
	})
}

func TestGraphReadersGetCopies(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{
		ID: "node.a", Kind: KindLocation, Origin: OriginCore,
		Capacity: &Bound{Value: 1, Dimension: units.Energy}, Commodities: []string{"x"},
	}))

	n, _ := g.Node("node.a")
	n.Capacity.Value = 99
	n.Commodities[0] = "tampered"
	nodes := g.Nodes()
	nodes[0].Origin = "tampered"

	again, _ := g.Node("node.a")
	assert.Equal(t, 1.0, again.Capacity.Value)
	assert.Equal(t, []string{"x"}, again.Commodities)
	assert.Equal(t, OriginCore, again.Origin)
}

func TestGraphClone(t *testing.T) {
	g, err := Build(context.Background(), exampleConfig(t), nil)
	require.NoError(t, err)

	c := g.Clone()
	require.NoError(t, c.AddNode(Node{ID: "sink.extra", Kind: KindSink, Origin: "test"}))
	assert.Equal(t, 3, g.Stats().Nodes)
	assert.Equal(t, 4, c.Stats().Nodes)
	assert.Equal(t, g.Flows(), c.Flows())
}

func TestCheckDanglingFlow(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "node.a", Kind: KindLocation, Origin: OriginCore}))
	g.flows["flow.node.a.node.gone"] = Flow{ID: "flow.node.a.node.gone", From: "node.a", To: "node.gone", Commodity: "x", Efficiency: 1}

	err := Check(g)
	assert.ErrorContains(t, err, `dangling endpoint "node.gone"`)
}

func TestGraphConcurrentReads(t *testing.T) {
	g, err := Build(context.Background(), exampleConfig(t), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, g.Flows(), 2)
			assert.Len(t, g.Nodes(), 3)
		}()
	}
	wg.Wait()
}

func TestDuplicateError(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "sink.x", Kind: KindSink, Origin: "test"}))

	err := g.AddNode(Node{ID: "sink.x", Kind: KindSink, Origin: "test"})
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, &DuplicateError{Kind: "node", ID: "sink.x"}, dup)
}
