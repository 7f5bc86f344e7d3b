package problem

import (
	"errors"
	"fmt"
	"math"
)

// Sense is the relation of a constraint row.
type Sense string

const (
	LessEqual    Sense = "<="
	GreaterEqual Sense = ">="
	Equal        Sense = "="
)

// Term is one coefficient of a linear expression.
type Term struct {
	Var  string  `json:"var"`
	Coef float64 `json:"coef"`
}

// Variable is a decision variable. Lower defaults to 0; a nil Upper means
// unbounded above.
type Variable struct {
	Name    string   `json:"name"`
	Lower   float64  `json:"lower"`
	Upper   *float64 `json:"upper,omitempty"`
	Integer bool     `json:"integer,omitempty"`
}

// Constraint is a named linear row: Σ terms <sense> RHS.
type Constraint struct {
	Name  string  `json:"name"`
	Terms []Term  `json:"terms"`
	Sense Sense   `json:"sense"`
	RHS   float64 `json:"rhs"`
}

// Objective is minimized.
type Objective struct {
	Terms    []Term  `json:"terms"`
	Constant float64 `json:"constant"`
}

// Sentinel errors for problem construction.
var (
	ErrDuplicateVariable   = errors.New("duplicate variable")
	ErrDuplicateConstraint = errors.New("duplicate constraint")
	ErrUnknownVariable     = errors.New("unknown variable")
	ErrInvalidCoefficient  = errors.New("invalid coefficient")
)

// Problem is a linear program under construction. Variables and constraints
// keep their insertion order.
type Problem struct {
	Name        string       `json:"name"`
	Variables   []Variable   `json:"variables"`
	Constraints []Constraint `json:"constraints"`
	Objective   Objective    `json:"objective"`

	vars map[string]int
	rows map[string]int
}

// New creates an empty problem.
func New(name string) *Problem {
	return &Problem{Name: name, vars: make(map[string]int), rows: make(map[string]int)}
}

func (p *Problem) index() {
	if p.vars != nil {
		return
	}
	p.vars = make(map[string]int, len(p.Variables))
	for i, v := range p.Variables {
		p.vars[v.Name] = i
	}
	p.rows = make(map[string]int, len(p.Constraints))
	for i, c := range p.Constraints {
		p.rows[c.Name] = i
	}
}

// AddVariable declares a variable.
func (p *Problem) AddVariable(v Variable) error {
	p.index()
	if v.Name == "" {
		return fmt.Errorf("variable has no name")
	}
	if _, dup := p.vars[v.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, v.Name)
	}
	if v.Upper != nil && *v.Upper < v.Lower {
		return fmt.Errorf("variable %s: upper bound %v is below lower bound %v", v.Name, *v.Upper, v.Lower)
	}
	if v.Upper != nil {
		u := *v.Upper
		v.Upper = &u
	}
	p.vars[v.Name] = len(p.Variables)
	p.Variables = append(p.Variables, v)
	return nil
}

// HasVariable reports whether name was declared.
func (p *Problem) HasVariable(name string) bool {
	p.index()
	_, ok := p.vars[name]
	return ok
}

// Variable returns a declared variable.
func (p *Problem) Variable(name string) (Variable, bool) {
	p.index()
	i, ok := p.vars[name]
	if !ok {
		return Variable{}, false
	}
	return p.Variables[i], true
}

func (p *Problem) checkTerms(owner string, terms []Term) error {
	for _, t := range terms {
		if _, ok := p.vars[t.Var]; !ok {
			return fmt.Errorf("%s references %w %s", owner, ErrUnknownVariable, t.Var)
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return fmt.Errorf("%s: %w %v for %s", owner, ErrInvalidCoefficient, t.Coef, t.Var)
		}
	}
	return nil
}

// AddConstraint appends a row. Every term must reference a declared variable.
func (p *Problem) AddConstraint(c Constraint) error {
	p.index()
	if c.Name == "" {
		return fmt.Errorf("constraint has no name")
	}
	if _, dup := p.rows[c.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateConstraint, c.Name)
	}
	switch c.Sense {
	case LessEqual, GreaterEqual, Equal:
	default:
		return fmt.Errorf("constraint %s: unknown sense %q", c.Name, c.Sense)
	}
	if len(c.Terms) == 0 {
		return fmt.Errorf("constraint %s has no terms", c.Name)
	}
	if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
		return fmt.Errorf("constraint %s: %w right-hand side %v", c.Name, ErrInvalidCoefficient, c.RHS)
	}
	if err := p.checkTerms("constraint "+c.Name, c.Terms); err != nil {
		return err
	}
	c.Terms = append([]Term(nil), c.Terms...)
	p.rows[c.Name] = len(p.Constraints)
	p.Constraints = append(p.Constraints, c)
	return nil
}

// AddObjective adds terms and a constant to the objective. Terms on the same
// variable are summed.
func (p *Problem) AddObjective(terms []Term, constant float64) error {
	p.index()
	if err := p.checkTerms("objective", terms); err != nil {
		return err
	}
	var e Expr
	for _, t := range p.Objective.Terms {
		e.Add(t.Var, t.Coef)
	}
	for _, t := range terms {
		e.Add(t.Var, t.Coef)
	}
	p.Objective.Terms = e.Terms()
	p.Objective.Constant += constant
	return nil
}

// Stats summarizes the problem size.
type Stats struct {
	Variables   int `json:"variables"`
	Integer     int `json:"integer_variables"`
	Constraints int `json:"constraints"`
	NonZeros    int `json:"non_zeros"`
	Objective   int `json:"objective_terms"`
}

// Stats returns the problem size.
func (p *Problem) Stats() Stats {
	s := Stats{Variables: len(p.Variables), Constraints: len(p.Constraints), Objective: len(p.Objective.Terms)}
	for _, v := range p.Variables {
		if v.Integer {
			s.Integer++
		}
	}
	for _, c := range p.Constraints {
		s.NonZeros += len(c.Terms)
	}
	return s
}

// Expr accumulates a linear expression, merging repeated variables and
// keeping first-seen order. The zero value is ready to use.
type Expr struct {
	terms []Term
	idx   map[string]int
}

// Add adds coef·v.
func (e *Expr) Add(v string, coef float64) {
	if e.idx == nil {
		e.idx = make(map[string]int)
	}
	if i, ok := e.idx[v]; ok {
		e.terms[i].Coef += coef
		return
	}
	e.idx[v] = len(e.terms)
	e.terms = append(e.terms, Term{Var: v, Coef: coef})
}

// Terms returns the non-zero terms.
func (e *Expr) Terms() []Term {
	out := make([]Term, 0, len(e.terms))
	for _, t := range e.terms {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of non-zero terms.
func (e *Expr) Len() int { return len(e.Terms()) }
