package assembler

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/problem"
)

// costNames returns the cost parameters of a technology: its costs list, or
// the standard cost parameters it declares.
func costNames(e config.Entity) []string {
	if len(e.Costs) > 0 {
		return e.Costs
	}
	var out []string
	for _, name := range StandardCosts {
		if _, ok := e.Param(name); ok {
			out = append(out, name)
		}
	}
	return out
}

func (a *assembler) objective() error {
	var obj problem.Expr
	var constant float64

	for _, n := range a.g.Nodes() {
		el := constraint.NodeElement(a.g, a.cfg, n)
		e, ok := el.Entity()
		if !ok || !el.IsTechnology() {
			continue
		}
		for _, name := range costNames(e) {
			p, ok := e.Param(name)
			if !ok {
				return &AssemblyError{Element: n.ID, Detail: fmt.Sprintf("cost parameter %q is not in the configuration", name)}
			}
			c, err := a.cost(el, name, p, &obj)
			if err != nil {
				return err
			}
			constant += c
		}
	}

	if err := a.p.AddObjective(obj.Terms(), constant); err != nil {
		return &AssemblyError{Element: "objective", Detail: err.Error(), Err: err}
	}
	return nil
}

// cost adds the terms of one cost parameter to obj and returns its constant
// part, which fixed capacity contributes.
func (a *assembler) cost(el constraint.Element, name string, p config.Param, obj *problem.Expr) (float64, error) {
	var constant float64
	switch p.Dimension {
	case VariableCost:
		flows := el.Out
		if len(flows) == 0 {
			flows = el.In
		}
		for _, s := range a.slices {
			scale := p.AtSlice(s) * s.Weight * float64(a.ts.YearGap(s.Year)) * a.discount(s.Year)
			for _, f := range flows {
				obj.Add(constraint.FlowVar(f.ID, s.Label), scale*f.Efficiency)
			}
		}

	case FixedCost:
		for _, y := range a.years() {
			annual := p.At(y) * config.HoursPerYear * float64(a.ts.YearGap(y)) * a.discount(y)
			installed, ok := constraint.InstalledCapacity(el, y)
			switch {
			case !ok:
				return 0, &AssemblyError{Element: el.ID, Detail: fmt.Sprintf("cost parameter %q needs a capacity, but the technology has none", name)}
			case installed.Var != "":
				obj.Add(installed.Var, annual)
			default:
				constant += annual * installed.Fixed
			}
		}

	case InvestmentCost:
		if !constraint.Investable(el) {
			return 0, &AssemblyError{Element: el.ID, Detail: fmt.Sprintf("cost parameter %q is an investment cost, but the technology has no lifetime", name)}
		}
		for _, y := range a.years() {
			obj.Add(constraint.NewCapVar(el.ID, y), p.At(y)*a.discount(y))
		}

	default:
		want := []string{string(VariableCost), string(FixedCost), string(InvestmentCost)}
		slices.Sort(want)
		return 0, &AssemblyError{Element: el.ID, Detail: fmt.Sprintf("cost parameter %q has dimension %s, want one of %v", name, p.Dimension, want)}
	}
	return constant, nil
}
