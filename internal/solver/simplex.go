package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/problem"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// SimplexName is the name of the gonum simplex backend.
const SimplexName = "simplex"

// simplexTolerance is passed to lp.Simplex.
const simplexTolerance = 1e-10

// Simplex solves continuous problems with gonum's simplex method. The problem
// is rewritten in standard form: variables are shifted by their lower bound,
// upper bounds and inequalities become rows with slack columns, and
// variables that appear in no row are fixed at their lower bound.
type Simplex struct{}

func (Simplex) Name() string { return SimplexName }

type row struct {
	coefs map[int]float64
	sense problem.Sense
	rhs   float64
}

type standardForm struct {
	lower   []float64
	cost    []float64
	rows    []row
	columns []int // problem variable index per structural column
}

func (s Simplex) fail(p *problem.Problem, status Status, err error, format string, args ...any) *Error {
	stats := p.Stats()
	return &Error{
		Backend:     s.Name(),
		Status:      status,
		Detail:      fmt.Sprintf(format, args...),
		Constraints: stats.Constraints,
		Variables:   stats.Variables,
		Err:         err,
	}
}

func (s Simplex) Solve(ctx context.Context, p *problem.Problem) (*Solution, error) {
	logger := ctxlog.FromContext(ctx)

	sf, err := s.standardForm(p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := make([]float64, len(p.Variables))
	copy(x, sf.lower)

	if len(sf.rows) > 0 {
		opt, err := s.run(sf)
		if err != nil {
			switch {
			case errors.Is(err, lp.ErrInfeasible):
				return nil, s.fail(p, StatusInfeasible, err, "no point satisfies every constraint")
			case errors.Is(err, lp.ErrUnbounded):
				return nil, s.fail(p, StatusUnbounded, err, "the objective decreases without bound")
			default:
				return nil, s.fail(p, StatusNumerical, err, "%v", err)
			}
		}
		for col, j := range sf.columns {
			x[j] += opt[col]
		}
	}

	sol := &Solution{Backend: s.Name(), Problem: p.Name, Status: StatusOptimal, Objective: p.Objective.Constant}
	index := make(map[string]int, len(p.Variables))
	for j, v := range p.Variables {
		index[v.Name] = j
		sol.Values = append(sol.Values, Value{Name: v.Name, Value: clean(x[j])})
	}
	for _, t := range p.Objective.Terms {
		sol.Objective += t.Coef * x[index[t.Var]]
	}
	logger.Debug("Simplex finished.", "rows", len(sf.rows), "columns", len(sf.columns))
	return sol, nil
}

// clean snaps values within the solver tolerance of zero.
func clean(v float64) float64 {
	if math.Abs(v) < 1e-9 {
		return 0
	}
	return v
}

func (s Simplex) standardForm(p *problem.Problem) (*standardForm, error) {
	n := len(p.Variables)
	sf := &standardForm{lower: make([]float64, n), cost: make([]float64, n)}
	index := make(map[string]int, n)
	used := make([]bool, n)

	for j, v := range p.Variables {
		if v.Integer {
			return nil, s.fail(p, StatusUnsupported, nil, "variable %s is integer; the simplex backend solves continuous problems only", v.Name)
		}
		if v.Upper != nil && *v.Upper < v.Lower {
			return nil, s.fail(p, StatusInfeasible, nil, "variable %s has upper bound %v below its lower bound %v", v.Name, *v.Upper, v.Lower)
		}
		index[v.Name] = j
		sf.lower[j] = v.Lower
	}
	for _, t := range p.Objective.Terms {
		j, ok := index[t.Var]
		if !ok {
			return nil, s.fail(p, StatusNumerical, problem.ErrUnknownVariable, "objective references unknown variable %s", t.Var)
		}
		sf.cost[j] += t.Coef
	}

	for _, c := range p.Constraints {
		r := row{coefs: make(map[int]float64), sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Terms {
			j, ok := index[t.Var]
			if !ok {
				return nil, s.fail(p, StatusNumerical, problem.ErrUnknownVariable, "constraint %s references unknown variable %s", c.Name, t.Var)
			}
			if t.Coef == 0 {
				continue
			}
			r.coefs[j] += t.Coef
			r.rhs -= t.Coef * sf.lower[j]
			used[j] = true
		}
		if len(r.coefs) == 0 {
			if !holds(c.Sense, r.rhs) {
				return nil, s.fail(p, StatusInfeasible, nil, "constraint %s has no terms and requires 0 %s %v", c.Name, c.Sense, r.rhs)
			}
			continue
		}
		sf.rows = append(sf.rows, r)
	}

	for j, v := range p.Variables {
		if v.Upper != nil {
			sf.rows = append(sf.rows, row{coefs: map[int]float64{j: 1}, sense: problem.LessEqual, rhs: *v.Upper - v.Lower})
			used[j] = true
		}
	}

	for j, v := range p.Variables {
		switch {
		case used[j]:
			sf.columns = append(sf.columns, j)
		case sf.cost[j] < 0:
			return nil, s.fail(p, StatusUnbounded, nil, "variable %s lowers the objective and has no upper bound or constraint", v.Name)
		}
	}
	return sf, nil
}

func holds(sense problem.Sense, rhs float64) bool {
	switch sense {
	case problem.LessEqual:
		return 0 <= rhs
	case problem.GreaterEqual:
		return 0 >= rhs
	default:
		return rhs == 0
	}
}

// run builds the equality system and calls lp.Simplex. It returns the values
// of the structural columns.
func (s Simplex) run(sf *standardForm) (opt []float64, err error) {
	column := make(map[int]int, len(sf.columns))
	for col, j := range sf.columns {
		column[j] = col
	}

	slacks := 0
	for _, r := range sf.rows {
		if r.sense != problem.Equal {
			slacks++
		}
	}
	m, cols := len(sf.rows), len(sf.columns)+slacks

	c := make([]float64, cols)
	for col, j := range sf.columns {
		c[col] = sf.cost[j]
	}
	A := mat.NewDense(m, cols, nil)
	b := make([]float64, m)

	slack := len(sf.columns)
	for i, r := range sf.rows {
		for j, coef := range r.coefs {
			A.Set(i, column[j], coef)
		}
		b[i] = r.rhs
		switch r.sense {
		case problem.LessEqual:
			A.Set(i, slack, 1)
			slack++
		case problem.GreaterEqual:
			A.Set(i, slack, -1)
			slack++
		}
		if b[i] < 0 {
			for k := 0; k < cols; k++ {
				A.Set(i, k, -A.At(i, k))
			}
			b[i] = -b[i]
		}
	}

	defer func() {
		if r := recover(); r != nil {
			opt, err = nil, fmt.Errorf("simplex panicked: %v", r)
		}
	}()
	_, x, err := lp.Simplex(c, A, b, simplexTolerance, nil)
	if err != nil {
		return nil, err
	}
	return x[:len(sf.columns)], nil
}
