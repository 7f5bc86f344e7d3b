package assembler

import (
	"context"
	"fmt"
	"math"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/problem"
	"github.com/specialistvlad/restore/internal/units"
)

// Cost dimensions.
const (
	VariableCost   units.Dimension = "currency/energy"
	FixedCost      units.Dimension = "currency/power/time"
	InvestmentCost units.Dimension = "currency/power"
)

// StandardCosts are the cost parameters used when a technology has no
// explicit costs list.
var StandardCosts = []string{"cost_variable_om", "cost_fixed_om", "cost_investment"}

type assembler struct {
	g      *graph.Graph
	cfg    *config.Configuration
	lib    *constraint.Library
	ts     config.TimeStructure
	slices []config.TimeSlice
	rate   float64
	p      *problem.Problem
}

// Assemble builds the problem for g. Every template row must reference
// variables the assembler declared.
func Assemble(ctx context.Context, g *graph.Graph, cfg *config.Configuration, lib *constraint.Library) (*problem.Problem, error) {
	logger := ctxlog.FromContext(ctx)
	if g == nil || cfg == nil || lib == nil {
		return nil, &AssemblyError{Element: "problem", Detail: "graph, configuration and constraint library are required"}
	}

	a := &assembler{
		g:      g,
		cfg:    cfg,
		lib:    lib,
		ts:     cfg.Time(),
		slices: cfg.Slices(),
		p:      problem.New("restore_" + cfg.Fingerprint()),
	}
	if r, ok := cfg.Policy("", "discount_rate"); ok {
		a.rate = r.At(a.ts.BaseYear())
	}

	if err := a.variables(); err != nil {
		return nil, err
	}
	logger.Debug("Variables declared.", "count", len(a.p.Variables))

	if err := a.coreConstraints(ctx); err != nil {
		return nil, err
	}
	if err := a.boundConstraints(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Constraints instantiated.", "count", len(a.p.Constraints))

	if err := a.objective(); err != nil {
		return nil, err
	}

	stats := a.p.Stats()
	logger.Info("Problem assembled.", "variables", stats.Variables, "constraints", stats.Constraints, "nonZeros", stats.NonZeros)
	return a.p, nil
}

func (a *assembler) years() []int { return a.ts.Years }

// discount returns the present-value factor of model year y.
func (a *assembler) discount(y int) float64 {
	return 1 / math.Pow(1+a.rate, float64(y-a.ts.BaseYear()))
}

func (a *assembler) variables() error {
	for _, f := range a.g.Flows() {
		for _, s := range a.slices {
			v := problem.Variable{Name: constraint.FlowVar(f.ID, s.Label)}
			if f.Capacity != nil {
				upper := *f.Capacity * s.Duration
				v.Upper = &upper
			}
			if err := a.p.AddVariable(v); err != nil {
				return &AssemblyError{Element: f.ID, Detail: "cannot declare flow variable", Err: err}
			}
		}
	}

	for _, n := range a.g.Nodes() {
		if n.Storage {
			for _, s := range a.slices {
				if err := a.p.AddVariable(problem.Variable{Name: constraint.LevelVar(n.ID, s.Label)}); err != nil {
					return &AssemblyError{Element: n.ID, Detail: "cannot declare storage level", Err: err}
				}
			}
		}

		el := constraint.NodeElement(a.g, a.cfg, n)
		if !constraint.Investable(el) {
			continue
		}
		maxCap, hasMax := el.Param("max_capacity")
		if hasMax && maxCap.Dimension != units.Power {
			return &AssemblyError{Element: n.ID, Detail: fmt.Sprintf("max_capacity must be a power, got %s", maxCap.Dimension)}
		}
		for _, y := range a.years() {
			installed := problem.Variable{Name: constraint.CapVar(n.ID, y)}
			if hasMax {
				upper := maxCap.At(y)
				installed.Upper = &upper
			}
			for _, v := range []problem.Variable{installed, {Name: constraint.NewCapVar(n.ID, y)}} {
				if err := a.p.AddVariable(v); err != nil {
					return &AssemblyError{Element: n.ID, Detail: "cannot declare capacity variable", Err: err}
				}
			}
		}
	}
	return nil
}

func (a *assembler) elements() []constraint.Element {
	var out []constraint.Element
	for _, n := range a.g.Nodes() {
		out = append(out, constraint.NodeElement(a.g, a.cfg, n))
	}
	for _, f := range a.g.Flows() {
		out = append(out, constraint.FlowElement(a.g, a.cfg, f))
	}
	return out
}

func (a *assembler) coreConstraints(ctx context.Context) error {
	elements := a.elements()
	for _, t := range a.lib.Core() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, el := range elements {
			if !t.ApplicableTo(el) {
				continue
			}
			if err := a.instantiate(t, el); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) boundConstraints(ctx context.Context) error {
	for _, b := range a.g.Bindings() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, ok := a.lib.Lookup(b.Template)
		if !ok {
			return &AssemblyError{Element: b.Element, Template: b.Template, Detail: fmt.Sprintf("template is not registered (bound by %s)", b.Origin)}
		}
		el, err := constraint.ElementFor(a.g, a.cfg, b.Element)
		if err != nil {
			return &AssemblyError{Element: b.Element, Template: b.Template, Detail: "bound element cannot be resolved", Err: err}
		}
		if !t.ApplicableTo(el) {
			return &AssemblyError{Element: b.Element, Template: b.Template, Detail: fmt.Sprintf("template does not apply to the element (bound by %s)", b.Origin)}
		}
		if err := a.instantiate(t, el); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) instantiate(t constraint.Template, el constraint.Element) error {
	inst, err := t.Instantiate(el, a.slices)
	if err != nil {
		return &AssemblyError{Element: el.ID, Template: t.Name(), Detail: "instantiation failed", Err: err}
	}
	for _, row := range inst.Rows {
		if err := a.p.AddConstraint(row); err != nil {
			return &AssemblyError{Element: el.ID, Template: t.Name(), Detail: err.Error(), Err: err}
		}
	}
	return nil
}
