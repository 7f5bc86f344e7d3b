package constraint

import (
	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/problem"
)

// CapacityBound limits the energy a technology delivers in a slice to its
// installed capacity times availability times the slice length. A location
// with a power limit bounds its inflows the same way.
type CapacityBound struct{}

func (CapacityBound) Name() string { return "capacity" }

func (CapacityBound) ApplicableTo(el Element) bool {
	if el.Node == nil {
		return false
	}
	switch el.Node.Kind {
	case graph.KindTechnology:
		if len(el.In)+len(el.Out) == 0 {
			return false
		}
		_, ok := InstalledCapacity(el, 0)
		return ok
	case graph.KindLocation:
		return el.Node.PowerLimit != nil && len(el.In) > 0
	default:
		return false
	}
}

func (t CapacityBound) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	if el.Node.Kind == graph.KindLocation {
		return t.powerLimit(el, slices), nil
	}

	inst := Instance{Template: t.Name(), Element: el.ID}
	avail, hasAvail := el.Param("availability")
	flows := el.delivered()

	for _, s := range slices {
		a := 1.0
		if hasAvail {
			a = avail.AtSlice(s)
		}
		if a < 0 {
			return Instance{}, fail(t.Name(), el.ID, "availability %v in %s is negative", a, s.Label)
		}

		var e problem.Expr
		for _, f := range flows {
			e.Add(FlowVar(f.ID, s.Label), f.Efficiency)
		}
		installed, _ := InstalledCapacity(el, s.Year)
		var rhs float64
		if installed.Var != "" {
			e.Add(installed.Var, -a*s.Duration)
		} else {
			rhs = installed.Fixed * a * s.Duration
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, s.Label),
			Terms: e.Terms(),
			Sense: problem.LessEqual,
			RHS:   rhs,
		})
	}
	return inst, nil
}

func (t CapacityBound) powerLimit(el Element, slices []config.TimeSlice) Instance {
	inst := Instance{Template: t.Name(), Element: el.ID}
	for _, s := range slices {
		var e problem.Expr
		for _, f := range el.In {
			e.Add(FlowVar(f.ID, s.Label), f.Efficiency)
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, s.Label),
			Terms: e.Terms(),
			Sense: problem.LessEqual,
			RHS:   *el.Node.PowerLimit * s.Duration,
		})
	}
	return inst
}
