package constraint

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/problem"
	"github.com/specialistvlad/restore/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalar(dim units.Dimension, unit string, v float64) config.Param {
	return config.Scalar(dim, unit, v)
}

func build(t *testing.T, ts config.TimeStructure, entities ...config.Entity) (*graph.Graph, *config.Configuration) {
	t.Helper()
	cfg, err := config.New(ts, entities, nil)
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	return g, cfg
}

func element(t *testing.T, g *graph.Graph, cfg *config.Configuration, id string) Element {
	t.Helper()
	el, err := ElementFor(g, cfg, id)
	require.NoError(t, err)
	return el
}

func fuelStorage() config.Entity {
	return config.Entity{
		ID: "fuel_storage", Kind: entity.KindNode,
		Params: map[string]config.Param{"capacity": scalar(units.Energy, "MWh", 100)},
	}
}

func generator(params map[string]config.Param) config.Entity {
	p := map[string]config.Param{
		"output_capacity":  scalar(units.Power, "MW", 10),
		"cost_variable_om": scalar("currency/energy", "USD/MWh", 5),
	}
	for k, v := range params {
		p[k] = v
	}
	return config.Entity{
		ID: "generator", Kind: entity.KindTechnology, Sector: "electricity",
		Inputs: []config.Link{{Target: "fuel_storage", Commodity: "fuel_storage"}},
		Params: p,
	}
}

const storageFlow = "flow.node.fuel_storage.technology.generator"

func TestFuelStorageGenerator(t *testing.T) {
	g, cfg := build(t, config.DefaultTimeStructure(2030), fuelStorage(), generator(nil))
	slices := cfg.Slices()
	require.Len(t, slices, 1)
	label := slices[0].Label

	storage := element(t, g, cfg, "node.fuel_storage")
	gen := element(t, g, cfg, "technology.generator")

	t.Run("balance", func(t *testing.T) {
		require.True(t, Balance{}.ApplicableTo(storage))
		assert.False(t, Balance{}.ApplicableTo(gen), "a technology without outputs does not convert")

		inst, err := Balance{}.Instantiate(storage, slices)
		require.NoError(t, err)
		assert.Equal(t, Instance{
			Template: "balance",
			Element:  "node.fuel_storage",
			Rows: []problem.Constraint{{
				Name:  "balance(node.fuel_storage,y2030d0h00)",
				Terms: []problem.Term{{Var: FlowVar(storageFlow, label), Coef: -1}},
				Sense: problem.Equal,
			}},
		}, inst)
	})

	t.Run("capacity", func(t *testing.T) {
		require.True(t, CapacityBound{}.ApplicableTo(gen))
		assert.False(t, CapacityBound{}.ApplicableTo(storage))

		inst, err := CapacityBound{}.Instantiate(gen, slices)
		require.NoError(t, err)
		require.Len(t, inst.Rows, 1)
		assert.Equal(t, problem.Constraint{
			Name:  "capacity(technology.generator,y2030d0h00)",
			Terms: []problem.Term{{Var: FlowVar(storageFlow, label), Coef: 1}},
			Sense: problem.LessEqual,
			RHS:   240,
		}, inst.Rows[0])
	})

	t.Run("storage", func(t *testing.T) {
		inst, err := StorageBound{}.Instantiate(storage, slices)
		require.NoError(t, err)
		require.Len(t, inst.Rows, 1)
		assert.Equal(t, []problem.Term{{Var: "level(node.fuel_storage,y2030d0h00)", Coef: 1}}, inst.Rows[0].Terms)
		assert.Equal(t, 100.0, inst.Rows[0].RHS)
	})

	t.Run("fixed capacity is not investable", func(t *testing.T) {
		assert.False(t, Investable(gen))
		assert.False(t, Retirement{}.ApplicableTo(gen))
		assert.False(t, BuildRate{}.ApplicableTo(gen))
	})
}

func TestBalanceCyclesStorageWithinDay(t *testing.T) {
	ts, err := config.NewTimeStructure("ts", []int{2030}, []string{"a", "b"}, 2)
	require.NoError(t, err)
	pump := config.Entity{
		ID: "pump", Kind: entity.KindTechnology,
		Outputs: []config.Link{{Target: "fuel_storage", Commodity: "fuel_storage"}},
		Params:  map[string]config.Param{"output_capacity": scalar(units.Power, "MW", 1)},
	}
	g, cfg := build(t, ts, fuelStorage(), generator(nil), pump)

	inst, err := Balance{}.Instantiate(element(t, g, cfg, "node.fuel_storage"), cfg.Slices())
	require.NoError(t, err)
	require.Len(t, inst.Rows, 4)

	first := inst.Rows[0]
	assert.Equal(t, "balance(node.fuel_storage,y2030dah00)", first.Name)
	assert.Equal(t, []problem.Term{
		{Var: "flow(flow.technology.pump.node.fuel_storage,y2030dah00)", Coef: 1},
		{Var: "flow(" + storageFlow + ",y2030dah00)", Coef: -1},
		{Var: "level(node.fuel_storage,y2030dah01)", Coef: 1},
		{Var: "level(node.fuel_storage,y2030dah00)", Coef: -1},
	}, first.Terms)

	third := inst.Rows[2]
	assert.Equal(t, "balance(node.fuel_storage,y2030dbh00)", third.Name)
	assert.Contains(t, third.Terms, problem.Term{Var: "level(node.fuel_storage,y2030dbh01)", Coef: 1})
}

func TestBalanceDemand(t *testing.T) {
	ts, err := config.NewTimeStructure("ts", []int{2030}, []string{"0"}, 2)
	require.NoError(t, err)
	heat := config.Entity{
		ID: "heat", Kind: entity.KindCommodity,
		Params: map[string]config.Param{"demand": {Dimension: units.Energy, Unit: "MWh", Series: []float64{5, 7}}},
	}
	boiler := config.Entity{
		ID: "boiler", Kind: entity.KindTechnology,
		Inputs:  []config.Link{{Target: "gas", Commodity: "gas"}},
		Outputs: []config.Link{{Target: "heat", Commodity: "heat", Params: map[string]config.Param{"efficiency": scalar(units.Dimensionless, "1", 0.9)}}},
	}
	gas := config.Entity{ID: "gas", Kind: entity.KindCommodity}
	importer := config.Entity{ID: "import", Kind: entity.KindTechnology, Outputs: []config.Link{{Target: "gas", Commodity: "gas"}}}
	g, cfg := build(t, ts, heat, boiler, gas, importer)

	inst, err := Balance{}.Instantiate(element(t, g, cfg, "commodity.heat"), cfg.Slices())
	require.NoError(t, err)
	require.Len(t, inst.Rows, 2)
	assert.Equal(t, []problem.Term{{Var: "flow(flow.technology.boiler.commodity.heat,y2030d0h01)", Coef: 0.9}}, inst.Rows[1].Terms)
	assert.Equal(t, 7.0, inst.Rows[1].RHS)

	conv := element(t, g, cfg, "technology.boiler")
	require.True(t, Balance{}.ApplicableTo(conv))
	inst, err = Balance{}.Instantiate(conv, cfg.Slices())
	require.NoError(t, err)
	assert.Equal(t, []problem.Term{
		{Var: "flow(flow.commodity.gas.technology.boiler,y2030d0h00)", Coef: 1},
		{Var: "flow(flow.technology.boiler.commodity.heat,y2030d0h00)", Coef: -1},
	}, inst.Rows[0].Terms)

	t.Run("error cases", func(t *testing.T) {
		orphan := Element{
			ID:     "commodity.heat",
			Node:   &graph.Node{ID: "commodity.heat", Entity: "heat", Kind: graph.KindCommodity},
			Config: cfg,
		}
		_, err := Balance{}.Instantiate(orphan, cfg.Slices())
		var te *TemplateError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "balance", te.Template)
		assert.ErrorContains(t, err, "cannot be met")
	})
}

func TestCapacityAvailabilityAndPowerLimit(t *testing.T) {
	ts, err := config.NewTimeStructure("ts", []int{2030}, []string{"0"}, 2)
	require.NoError(t, err)
	storage := fuelStorage()
	storage.Params["power_capacity"] = scalar(units.Power, "MW", 2)
	pump := config.Entity{
		ID: "pump", Kind: entity.KindTechnology,
		Outputs: []config.Link{{Target: "fuel_storage", Commodity: "fuel_storage", Params: map[string]config.Param{"efficiency": scalar(units.Dimensionless, "1", 0.5)}}},
		Params: map[string]config.Param{
			"output_capacity": scalar(units.Power, "MW", 4),
			"availability":    {Dimension: units.Dimensionless, Unit: "1", Series: []float64{1, 0.25}},
		},
	}
	g, cfg := build(t, ts, storage, generator(nil), pump)

	inst, err := CapacityBound{}.Instantiate(element(t, g, cfg, "technology.pump"), cfg.Slices())
	require.NoError(t, err)
	require.Len(t, inst.Rows, 2)
	assert.Equal(t, 48.0, inst.Rows[0].RHS)
	assert.Equal(t, 12.0, inst.Rows[1].RHS)
	assert.Equal(t, 0.5, inst.Rows[1].Terms[0].Coef)

	limit := element(t, g, cfg, "node.fuel_storage")
	require.True(t, CapacityBound{}.ApplicableTo(limit))
	inst, err = CapacityBound{}.Instantiate(limit, cfg.Slices())
	require.NoError(t, err)
	require.Len(t, inst.Rows, 2)
	assert.Equal(t, "capacity(node.fuel_storage,y2030d0h00)", inst.Rows[0].Name)
	assert.Equal(t, 24.0, inst.Rows[0].RHS)
}

func horizon(t *testing.T) config.TimeStructure {
	t.Helper()
	ts, err := config.NewTimeStructure("ts", []int{2030, 2040, 2050}, []string{"0"}, 1)
	require.NoError(t, err)
	return ts
}

func investable(extra map[string]config.Param) config.Entity {
	p := map[string]config.Param{"lifetime": scalar(units.Time, "h", 15*config.HoursPerYear)}
	for k, v := range extra {
		p[k] = v
	}
	return generator(p)
}

func TestRetirement(t *testing.T) {
	g, cfg := build(t, horizon(t), fuelStorage(), investable(nil))
	gen := element(t, g, cfg, "technology.generator")
	require.True(t, Investable(gen))

	t.Run("step", func(t *testing.T) {
		inst, err := Retirement{Decay: StepDecay}.Instantiate(gen, cfg.Slices())
		require.NoError(t, err)
		require.Len(t, inst.Rows, 3)

		id := "technology.generator"
		assert.Equal(t, problem.Constraint{
			Name: "retirement(technology.generator,y2030)",
			Terms: []problem.Term{
				{Var: CapVar(id, 2030), Coef: 1},
				{Var: NewCapVar(id, 2030), Coef: -1},
			},
			Sense: problem.Equal,
			RHS:   10,
		}, inst.Rows[0])
		assert.Equal(t, 10.0, inst.Rows[1].RHS)
		assert.Equal(t, []problem.Term{
			{Var: CapVar(id, 2050), Coef: 1},
			{Var: NewCapVar(id, 2040), Coef: -1},
			{Var: NewCapVar(id, 2050), Coef: -1},
		}, inst.Rows[2].Terms, "builds older than the lifetime are retired")
		assert.Equal(t, 0.0, inst.Rows[2].RHS)
	})

	t.Run("sigmoid", func(t *testing.T) {
		inst, err := Retirement{Decay: SigmoidDecay(1)}.Instantiate(gen, cfg.Slices())
		require.NoError(t, err)
		last := inst.Rows[2]
		require.Len(t, last.Terms, 4)
		assert.InDelta(t, -SigmoidDecay(1)(20, 15), last.Terms[1].Coef, 1e-12)
		assert.Greater(t, last.RHS, 0.0)
		assert.Less(t, last.RHS, 1.0)
	})

	t.Run("age shortens the initial fleet", func(t *testing.T) {
		g, cfg := build(t, horizon(t), fuelStorage(), investable(map[string]config.Param{"age": scalar(units.Time, "h", 10*config.HoursPerYear)}))
		inst, err := Retirement{}.Instantiate(element(t, g, cfg, "technology.generator"), cfg.Slices())
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 0, 0}, []float64{inst.Rows[0].RHS, inst.Rows[1].RHS, inst.Rows[2].RHS})
	})
}

func TestBuildRate(t *testing.T) {
	rate := config.Param{Dimension: "power/time", Unit: "MW/h", Value: ptr(2 / config.HoursPerYear)}
	g, cfg := build(t, horizon(t), fuelStorage(), investable(map[string]config.Param{"max_build_rate": rate}))
	gen := element(t, g, cfg, "technology.generator")
	require.True(t, BuildRate{}.ApplicableTo(gen))

	inst, err := BuildRate{}.Instantiate(gen, cfg.Slices())
	require.NoError(t, err)
	require.Len(t, inst.Rows, 3)
	for _, row := range inst.Rows {
		assert.InDelta(t, 20, row.RHS, 1e-9, row.Name)
	}
	assert.Equal(t, []problem.Term{{Var: "capnew(technology.generator,y2040)", Coef: 1}}, inst.Rows[1].Terms)
}

func ptr(v float64) *float64 { return &v }

func TestInvestmentDimensions(t *testing.T) {
	testCases := []struct {
		name     string
		template Template
		params   map[string]config.Param
		want     string
	}{
		{
			name:     "lifetime in energy",
			template: Retirement{},
			params:   map[string]config.Param{"lifetime": scalar(units.Energy, "MWh", 15*config.HoursPerYear)},
			want:     "lifetime must be a time quantity, got energy (MWh)",
		},
		{
			name:     "age as a fraction",
			template: Retirement{},
			params:   map[string]config.Param{"age": scalar(units.Dimensionless, "1", 0.5)},
			want:     "age must be a time quantity",
		},
		{
			name:     "build rate in power",
			template: BuildRate{},
			params:   map[string]config.Param{"max_build_rate": scalar(units.Power, "MW", 2)},
			want:     "max_build_rate must be a power/time quantity, got power (MW)",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, cfg := build(t, horizon(t), fuelStorage(), investable(tc.params))
			gen := element(t, g, cfg, "technology.generator")
			require.True(t, tc.template.ApplicableTo(gen))

			_, err := tc.template.Instantiate(gen, cfg.Slices())
			var tmplErr *TemplateError
			require.ErrorAs(t, err, &tmplErr)
			assert.Equal(t, tc.template.Name(), tmplErr.Template)
			assert.Equal(t, "technology.generator", tmplErr.Element)
			assert.Contains(t, tmplErr.Detail, tc.want)
		})
	}
}

func TestActivityFactor(t *testing.T) {
	params := map[string]config.Param{
		"cf_min":              scalar(units.Dimensionless, "1", 0.2),
		"cf_max":              scalar(units.Dimensionless, "1", 0.9),
		"max_annual_activity": scalar(units.Energy, "MWh", 50000),
	}

	t.Run("fixed capacity", func(t *testing.T) {
		g, cfg := build(t, config.DefaultTimeStructure(2030), fuelStorage(), generator(params))
		gen := element(t, g, cfg, "technology.generator")
		require.True(t, ActivityFactor{}.ApplicableTo(gen))

		inst, err := ActivityFactor{}.Instantiate(gen, cfg.Slices())
		require.NoError(t, err)
		require.Len(t, inst.Rows, 3)
		assert.Equal(t, "activity_factor_min(technology.generator,y2030)", inst.Rows[0].Name)
		assert.Equal(t, problem.GreaterEqual, inst.Rows[0].Sense)
		assert.InDelta(t, 0.2*10*8760, inst.Rows[0].RHS, 1e-6)
		assert.Equal(t, []problem.Term{{Var: FlowVar(storageFlow, "y2030d0h00"), Coef: 365}}, inst.Rows[0].Terms)
		assert.Equal(t, "activity_factor_max(technology.generator,y2030)", inst.Rows[1].Name)
		assert.Equal(t, "activity_max_annual(technology.generator,y2030)", inst.Rows[2].Name)
		assert.Equal(t, 50000.0, inst.Rows[2].RHS)
	})

	t.Run("investable capacity", func(t *testing.T) {
		g, cfg := build(t, config.DefaultTimeStructure(2030), fuelStorage(), investable(map[string]config.Param{"cf_max": params["cf_max"]}))
		inst, err := ActivityFactor{}.Instantiate(element(t, g, cfg, "technology.generator"), cfg.Slices())
		require.NoError(t, err)
		require.Len(t, inst.Rows, 1)
		capTerm := inst.Rows[0].Terms[1]
		assert.Equal(t, "cap(technology.generator,y2030)", capTerm.Var)
		assert.InDelta(t, -0.9*8760, capTerm.Coef, 1e-9)
		assert.Zero(t, inst.Rows[0].RHS)
	})

	t.Run("not applicable without activity data", func(t *testing.T) {
		g, cfg := build(t, config.DefaultTimeStructure(2030), fuelStorage(), generator(nil))
		assert.False(t, ActivityFactor{}.ApplicableTo(element(t, g, cfg, "technology.generator")))
	})
}

func reserveConfig(gen config.Entity) []config.Entity {
	gen.Outputs = []config.Link{{Target: "electricity", Commodity: "electricity"}}
	return []config.Entity{
		fuelStorage(),
		gen,
		{
			ID: "electricity", Kind: entity.KindCommodity, Sector: "electricity",
			Params: map[string]config.Param{"demand": scalar(units.Energy, "MWh", 2400)},
		},
		{
			ID: "power_policy", Kind: entity.KindPolicy, Sector: "electricity",
			Params: map[string]config.Param{"reserve_margin": scalar(units.Dimensionless, "1", 0.1)},
		},
	}
}

func TestReserveMargin(t *testing.T) {
	t.Run("investable suppliers get a row", func(t *testing.T) {
		g, cfg := build(t, config.DefaultTimeStructure(2030), reserveConfig(investable(nil))...)
		pool := element(t, g, cfg, "commodity.electricity")
		require.True(t, ReserveMargin{}.ApplicableTo(pool))

		inst, err := ReserveMargin{}.Instantiate(pool, cfg.Slices())
		require.NoError(t, err)
		require.Len(t, inst.Rows, 1)
		assert.Equal(t, "reserve_margin(commodity.electricity,y2030)", inst.Rows[0].Name)
		assert.Equal(t, []problem.Term{{Var: "cap(technology.generator,y2030)", Coef: 1}}, inst.Rows[0].Terms)
		assert.InDelta(t, 110, inst.Rows[0].RHS, 1e-9)
	})

	t.Run("error cases", func(t *testing.T) {
		g, cfg := build(t, config.DefaultTimeStructure(2030), reserveConfig(generator(nil))...)
		_, err := ReserveMargin{}.Instantiate(element(t, g, cfg, "commodity.electricity"), cfg.Slices())
		assert.ErrorContains(t, err, "fixed capacity of 10 MW in 2030 is below the required")

		entities := reserveConfig(investable(nil))[:3]
		g, cfg = build(t, config.DefaultTimeStructure(2030), entities...)
		_, err = ReserveMargin{}.Instantiate(element(t, g, cfg, "commodity.electricity"), cfg.Slices())
		assert.ErrorContains(t, err, `no reserve_margin policy for sector "electricity"`)
	})
}

func TestTemplatesAreDeterministic(t *testing.T) {
	g, cfg := build(t, horizon(t), reserveConfig(investable(map[string]config.Param{
		"cf_min":         scalar(units.Dimensionless, "1", 0.1),
		"max_build_rate": {Dimension: "power/time", Unit: "MW/h", Value: ptr(0.001)},
	}))...)
	lib := NewLibrary(nil)

	for _, name := range lib.Names() {
		tmpl, ok := lib.Lookup(name)
		require.True(t, ok)
		for _, n := range g.Nodes() {
			el := NodeElement(g, cfg, n)
			if !tmpl.ApplicableTo(el) {
				continue
			}
			first, err := tmpl.Instantiate(el, cfg.Slices())
			require.NoError(t, err)
			second, err := tmpl.Instantiate(NodeElement(g, cfg, n), cfg.Slices())
			require.NoError(t, err)
			assert.Equal(t, first, second, "%s on %s", name, n.ID)
		}
	}
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary(nil)
	assert.Equal(t, []string{"balance", "capacity", "storage", "retirement", "build_rate", "activity_factor", "reserve_margin"}, lib.Names())

	var core []string
	for _, tmpl := range lib.Core() {
		core = append(core, tmpl.Name())
	}
	assert.Equal(t, []string{"balance", "capacity", "storage", "retirement", "build_rate"}, core)

	r, ok := lib.Lookup("retirement")
	require.True(t, ok)
	assert.NotNil(t, r.(Retirement).Decay)

	t.Run("error cases", func(t *testing.T) {
		assert.ErrorContains(t, lib.Register(Balance{}, false), `"balance" already registered`)
		_, ok := lib.Lookup("missing")
		assert.False(t, ok)
	})
}

func TestDecay(t *testing.T) {
	assert.Equal(t, 1.0, StepDecay(14.9, 15))
	assert.Equal(t, 0.0, StepDecay(15, 15))
	assert.InDelta(t, 0.5, SigmoidDecay(2)(15, 15), 1e-12)
	assert.Greater(t, SigmoidDecay(2)(0, 15), 0.99)

	f, err := DecayByName("sigmoid")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f(3, 3), 1e-12)

	_, err = DecayByName("linear")
	assert.ErrorContains(t, err, `unknown retirement policy "linear"`)
}

func TestElementFor(t *testing.T) {
	g, cfg := build(t, config.DefaultTimeStructure(2030), fuelStorage(), generator(nil))

	el := element(t, g, cfg, storageFlow)
	require.NotNil(t, el.Flow)
	assert.Nil(t, el.Node)
	assert.Equal(t, "node.fuel_storage", el.Flow.From)

	el = element(t, g, cfg, "technology.generator")
	e, ok := el.Entity()
	require.True(t, ok)
	assert.Equal(t, "generator", e.ID)

	_, err := ElementFor(g, cfg, "node.missing")
	assert.ErrorContains(t, err, "not found")
	_, err = ElementFor(g, cfg, "not an id")
	assert.Error(t, err)
}
