package constraint

import (
	"math"
	"sort"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/problem"
)

var activityParams = []string{"cf_min", "cf_max", "max_annual_activity"}

// ActivityFactor bounds the annual output of a technology: between cf_min
// and cf_max times its capacity over a full year, and at most
// max_annual_activity. Sector modules attach it.
type ActivityFactor struct{}

func (ActivityFactor) Name() string { return "activity_factor" }

func (ActivityFactor) ApplicableTo(el Element) bool {
	if !el.IsTechnology() || len(el.In)+len(el.Out) == 0 {
		return false
	}
	for _, name := range activityParams {
		if _, ok := el.Param(name); ok {
			return true
		}
	}
	return false
}

func (t ActivityFactor) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: t.Name(), Element: el.ID}
	flows := el.delivered()
	cfMin, hasMin := el.Param("cf_min")
	cfMax, hasMax := el.Param("cf_max")
	maxAct, hasMaxAct := el.Param("max_annual_activity")

	for _, y := range modelYears(slices) {
		var act problem.Expr
		for _, s := range slices {
			if s.Year != y {
				continue
			}
			for _, f := range flows {
				act.Add(FlowVar(f.ID, s.Label), s.Weight*f.Efficiency)
			}
		}

		bound := func(name string, cf float64, sense problem.Sense) error {
			installed, ok := InstalledCapacity(el, y)
			if !ok {
				return fail(t.Name(), el.ID, "%s needs a capacity, but the technology has none", name)
			}
			e := cloneExpr(act)
			var rhs float64
			if installed.Var != "" {
				e.Add(installed.Var, -cf*config.HoursPerYear)
			} else {
				rhs = cf * installed.Fixed * config.HoursPerYear
			}
			inst.Rows = append(inst.Rows, problem.Constraint{
				Name:  RowName("activity_factor_"+name[len("cf_"):], el.ID, YearLabel(y)),
				Terms: e.Terms(),
				Sense: sense,
				RHS:   rhs,
			})
			return nil
		}
		if hasMin {
			if err := bound("cf_min", cfMin.At(y), problem.GreaterEqual); err != nil {
				return Instance{}, err
			}
		}
		if hasMax {
			if err := bound("cf_max", cfMax.At(y), problem.LessEqual); err != nil {
				return Instance{}, err
			}
		}
		if hasMaxAct {
			inst.Rows = append(inst.Rows, problem.Constraint{
				Name:  RowName("activity_max_annual", el.ID, YearLabel(y)),
				Terms: act.Terms(),
				Sense: problem.LessEqual,
				RHS:   maxAct.At(y),
			})
		}
	}
	return inst, nil
}

// cloneExpr copies e. Copying the struct would share its storage.
func cloneExpr(e problem.Expr) problem.Expr {
	var out problem.Expr
	for _, t := range e.Terms() {
		out.Add(t.Var, t.Coef)
	}
	return out
}

// ReserveMargin requires the capacity of the technologies feeding a pool to
// exceed its peak demand by the reserve_margin policy of the pool's sector,
// or the global one. Sector modules attach it.
type ReserveMargin struct{}

func (ReserveMargin) Name() string { return "reserve_margin" }

func (ReserveMargin) ApplicableTo(el Element) bool {
	if el.Node == nil || el.Node.Kind != graph.KindCommodity || el.Graph == nil {
		return false
	}
	if _, ok := el.Param("demand"); !ok {
		return false
	}
	return len(suppliers(el)) > 0
}

// suppliers returns the technologies with a flow into the element, sorted by
// ID and without repeats.
func suppliers(el Element) []graph.Node {
	seen := make(map[string]bool)
	var out []graph.Node
	for _, f := range el.In {
		if seen[f.From] {
			continue
		}
		seen[f.From] = true
		if n, ok := el.Graph.Node(f.From); ok && n.Kind == graph.KindTechnology {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// tolerance absorbs rounding when a fixed fleet is compared with a target.
const tolerance = 1e-9

func (t ReserveMargin) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: t.Name(), Element: el.ID}
	if el.Config == nil {
		return Instance{}, fail(t.Name(), el.ID, "no configuration")
	}
	margin, ok := el.Config.Policy(el.Node.Sector, "reserve_margin")
	if !ok && el.Node.Sector != "" {
		margin, ok = el.Config.Policy("", "reserve_margin")
	}
	if !ok {
		return Instance{}, fail(t.Name(), el.ID, "no reserve_margin policy for sector %q or globally", el.Node.Sector)
	}
	demand, _ := el.Param("demand")
	techs := suppliers(el)

	for _, y := range modelYears(slices) {
		peak := 0.0
		for _, s := range slices {
			if s.Year == y {
				peak = math.Max(peak, demand.AtSlice(s)/s.Duration)
			}
		}
		need := (1 + margin.At(y)) * peak

		var e problem.Expr
		var fixed float64
		for _, n := range techs {
			installed, ok := InstalledCapacity(NodeElement(el.Graph, el.Config, n), y)
			switch {
			case !ok:
				continue
			case installed.Var != "":
				e.Add(installed.Var, 1)
			default:
				fixed += installed.Fixed
			}
		}

		terms := e.Terms()
		if len(terms) == 0 {
			if fixed+tolerance < need {
				return Instance{}, fail(t.Name(), el.ID, "fixed capacity of %v MW in %d is below the required %v MW", fixed, y, need)
			}
			continue
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, YearLabel(y)),
			Terms: terms,
			Sense: problem.GreaterEqual,
			RHS:   need - fixed,
		})
	}
	return inst, nil
}
