package constraint

import (
	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/problem"
)

// Balance conserves energy at a node in every slice:
//
//	Σ eff·inflow − Σ outflow + level(prev) − level(s) = demand(s)
//
// Storage levels appear only on storage nodes; a storage cycles within each
// representative day. Technologies are balanced only when they convert, that
// is when they have both inputs and outputs.
type Balance struct{}

func (Balance) Name() string { return "balance" }

func (Balance) ApplicableTo(el Element) bool {
	if el.Node == nil {
		return false
	}
	switch el.Node.Kind {
	case graph.KindCommodity:
		return true
	case graph.KindLocation:
		return el.Node.Storage || len(el.In)+len(el.Out) > 0
	case graph.KindTechnology:
		return len(el.In) > 0 && len(el.Out) > 0
	default:
		return false
	}
}

func (b Balance) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: b.Name(), Element: el.ID}
	demand, hasDemand := el.Param("demand")
	prev := previousSlices(slices)

	for _, s := range slices {
		var e problem.Expr
		for _, f := range el.In {
			e.Add(FlowVar(f.ID, s.Label), f.Efficiency)
		}
		for _, f := range el.Out {
			e.Add(FlowVar(f.ID, s.Label), -1)
		}
		if el.Node.Storage {
			e.Add(LevelVar(el.ID, prev[s.Index].Label), 1)
			e.Add(LevelVar(el.ID, s.Label), -1)
		}

		var rhs float64
		if hasDemand {
			rhs = demand.AtSlice(s)
		}
		terms := e.Terms()
		if len(terms) == 0 {
			if rhs != 0 {
				return Instance{}, fail(b.Name(), el.ID, "demand of %v MWh in %s cannot be met: no flow reaches the node", rhs, s.Label)
			}
			continue
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(b.Name(), el.ID, s.Label),
			Terms: terms,
			Sense: problem.Equal,
			RHS:   rhs,
		})
	}
	return inst, nil
}

// previousSlices maps each slice index to the slice before it in the same
// representative day, wrapping from the first hour to the last.
func previousSlices(slices []config.TimeSlice) map[int]config.TimeSlice {
	type dayKey struct {
		year int
		day  string
	}
	days := make(map[dayKey][]config.TimeSlice)
	for _, s := range slices {
		k := dayKey{s.Year, s.Day}
		days[k] = append(days[k], s)
	}
	prev := make(map[int]config.TimeSlice, len(slices))
	for _, day := range days {
		for i, s := range day {
			j := i - 1
			if j < 0 {
				j = len(day) - 1
			}
			prev[s.Index] = day[j]
		}
	}
	return prev
}

// StorageBound caps the level of a storage node at its energy capacity.
type StorageBound struct{}

func (StorageBound) Name() string { return "storage" }

func (StorageBound) ApplicableTo(el Element) bool {
	return el.Node != nil && el.Node.Storage && el.Node.Capacity != nil
}

func (t StorageBound) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: t.Name(), Element: el.ID}
	for _, s := range slices {
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, s.Label),
			Terms: []problem.Term{{Var: LevelVar(el.ID, s.Label), Coef: 1}},
			Sense: problem.LessEqual,
			RHS:   el.Node.Capacity.Value,
		})
	}
	return inst, nil
}
