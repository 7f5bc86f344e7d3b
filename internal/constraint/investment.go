package constraint

import (
	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/problem"
	"github.com/specialistvlad/restore/internal/units"
)

// buildRateDimension is capacity added per unit of time.
const buildRateDimension = units.Power + "/" + units.Time

// modelYears returns the distinct years of slices in order.
func modelYears(slices []config.TimeSlice) []int {
	var years []int
	for _, s := range slices {
		if len(years) == 0 || years[len(years)-1] != s.Year {
			years = append(years, s.Year)
		}
	}
	return years
}

// years converts a time parameter in hours to years.
func years(p config.Param, year int) float64 {
	return p.At(year) / config.HoursPerYear
}

// checkDimension fails when a parameter the template reads is not measured
// in want.
func checkDimension(template, element, name string, p config.Param, want units.Dimension) error {
	if p.Dimension != want {
		return fail(template, element, "%s must be a %s quantity, got %s (%s)", name, want, p.Dimension, p.Unit)
	}
	return nil
}

// Retirement ties installed capacity to what survives of the initial fleet
// and of every earlier build:
//
//	cap(y) − Σ_{y' ≤ y} decay(y − y', L)·capnew(y') = initial·decay(y − y0 + age, L)
//
// The initial fleet is output_capacity, aged by the optional age parameter.
type Retirement struct {
	Decay DecayFunc
}

func (Retirement) Name() string { return "retirement" }

func (Retirement) ApplicableTo(el Element) bool { return Investable(el) }

func (t Retirement) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: t.Name(), Element: el.ID}
	ys := modelYears(slices)
	if len(ys) == 0 {
		return inst, nil
	}
	decay := t.Decay
	if decay == nil {
		decay = StepDecay
	}

	base := ys[0]
	lifetimeParam, _ := el.Param("lifetime")
	if err := checkDimension(t.Name(), el.ID, "lifetime", lifetimeParam, units.Time); err != nil {
		return Instance{}, err
	}
	lifetime := years(lifetimeParam, base)
	if lifetime <= 0 {
		return Instance{}, fail(t.Name(), el.ID, "lifetime must be positive, got %v years", lifetime)
	}
	var initial, age float64
	if p, ok := el.Param("output_capacity"); ok {
		initial = p.At(base)
	}
	if p, ok := el.Param("age"); ok {
		if err := checkDimension(t.Name(), el.ID, "age", p, units.Time); err != nil {
			return Instance{}, err
		}
		age = years(p, base)
	}

	for i, y := range ys {
		var e problem.Expr
		e.Add(CapVar(el.ID, y), 1)
		for _, built := range ys[:i+1] {
			e.Add(NewCapVar(el.ID, built), -decay(float64(y-built), lifetime))
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, YearLabel(y)),
			Terms: e.Terms(),
			Sense: problem.Equal,
			RHS:   initial * decay(float64(y-base)+age, lifetime),
		})
	}
	return inst, nil
}

// BuildRate limits the capacity built per model year to max_build_rate times
// the years the model year stands for.
type BuildRate struct{}

func (BuildRate) Name() string { return "build_rate" }

func (BuildRate) ApplicableTo(el Element) bool {
	if !Investable(el) {
		return false
	}
	_, ok := el.Param("max_build_rate")
	return ok
}

func (t BuildRate) Instantiate(el Element, slices []config.TimeSlice) (Instance, error) {
	inst := Instance{Template: t.Name(), Element: el.ID}
	rate, _ := el.Param("max_build_rate")
	if err := checkDimension(t.Name(), el.ID, "max_build_rate", rate, buildRateDimension); err != nil {
		return Instance{}, err
	}
	ys := modelYears(slices)
	horizon := config.TimeStructure{Years: ys}

	for _, y := range ys {
		perYear := rate.At(y) * config.HoursPerYear
		if perYear < 0 {
			return Instance{}, fail(t.Name(), el.ID, "max_build_rate in %d is negative", y)
		}
		inst.Rows = append(inst.Rows, problem.Constraint{
			Name:  RowName(t.Name(), el.ID, YearLabel(y)),
			Terms: []problem.Term{{Var: NewCapVar(el.ID, y), Coef: 1}},
			Sense: problem.LessEqual,
			RHS:   perYear * float64(horizon.YearGap(y)),
		})
	}
	return inst, nil
}
