package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/units"
)

// Set is an entity set that passed validation.
type Set struct {
	entities []*entity.Entity
	byID     map[string]*entity.Entity
	units    *units.Registry
}

// Entities returns the validated entities sorted by ID.
func (s *Set) Entities() []*entity.Entity {
	return append([]*entity.Entity(nil), s.entities...)
}

// Entity looks up an entity by ID.
func (s *Set) Entity(id string) (*entity.Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Units returns the registry the set was validated against.
func (s *Set) Units() *units.Registry { return s.units }

// linkable lists the kinds a technology link may point at.
var linkable = map[entity.Kind]bool{
	entity.KindTechnology: true,
	entity.KindCommodity:  true,
	entity.KindNode:       true,
}

type validator struct {
	reg        *units.Registry
	byID       map[string]*entity.Entity
	violations []Violation
	// dims records, per parameter name, the dimension each entity uses.
	dims map[string]map[units.Dimension][]string
}

func (v *validator) add(rule Rule, e *entity.Entity, param, format string, args ...any) {
	v.violations = append(v.violations, Violation{
		Rule:      rule,
		Entity:    e.ID(),
		File:      e.File(),
		Parameter: param,
		Detail:    fmt.Sprintf(format, args...),
	})
}

// Run validates the whole entity set against reg and reports every violation
// at once.
func Run(entities []*entity.Entity, reg *units.Registry) (*Set, error) {
	if reg == nil {
		return nil, fmt.Errorf("validation requires a unit registry")
	}
	v := &validator{
		reg:  reg,
		byID: make(map[string]*entity.Entity, len(entities)),
		dims: make(map[string]map[units.Dimension][]string),
	}

	var all, unique []*entity.Entity
	for _, e := range entities {
		if e == nil {
			continue
		}
		all = append(all, e)
		if first, dup := v.byID[e.ID()]; dup {
			v.add(RuleDuplicateID, e, "", "identifier already defined in %s", first.File())
			continue
		}
		v.byID[e.ID()] = e
		unique = append(unique, e)
	}

	// Duplicates are checked too, so fixing the ID does not uncover new errors.
	for _, e := range all {
		v.checkEntity(e)
	}
	v.checkDimensions()
	v.checkGlobalPolicies(unique)

	if len(v.violations) > 0 {
		sort.SliceStable(v.violations, func(i, j int) bool {
			a, b := v.violations[i], v.violations[j]
			if a.Entity != b.Entity {
				return a.Entity < b.Entity
			}
			if a.Rule != b.Rule {
				return a.Rule < b.Rule
			}
			if a.Parameter != b.Parameter {
				return a.Parameter < b.Parameter
			}
			return a.Detail < b.Detail
		})
		return nil, &ValidationError{Violations: v.violations}
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i].ID() < unique[j].ID() })
	return &Set{entities: unique, byID: v.byID, units: reg}, nil
}

func (v *validator) checkEntity(e *entity.Entity) {
	if !e.Kind().Valid() {
		v.add(RuleInvalidEntity, e, "", "unknown kind %q", e.Kind())
	}
	if !entity.ValidID(e.ID()) {
		v.add(RuleInvalidEntity, e, "", "invalid identifier %q", e.ID())
	}
	if c := e.Commodity(); c != "" {
		v.checkCommodityRef(e, "", c)
	}

	for _, name := range e.ParamNames() {
		q, _ := e.Param(name)
		v.checkQuantity(e, name, name, q)
	}

	for _, l := range e.Links() {
		label := fmt.Sprintf("%s %q", l.Direction(), l.Target())
		target, ok := v.byID[l.Target()]
		switch {
		case !ok:
			v.add(RuleUnresolvedRef, e, "", "%s references unknown entity", label)
		case !linkable[target.Kind()]:
			v.add(RuleUnresolvedRef, e, "", "%s references a %s entity; links must target a technology, commodity or node", label, target.Kind())
		}
		if c := l.Commodity(); c != "" {
			v.checkCommodityRef(e, "", c)
		}
		prefix := fmt.Sprintf("%s.%s.", l.Direction(), l.Target())
		for _, name := range l.ParamNames() {
			q, _ := l.Param(name)
			v.checkQuantity(e, prefix+name, "flow "+name, q)
		}
	}
}

func (v *validator) checkCommodityRef(e *entity.Entity, param, id string) {
	target, ok := v.byID[id]
	if !ok {
		v.add(RuleUnresolvedRef, e, param, "commodity %q is not defined", id)
		return
	}
	if target.Kind() != entity.KindCommodity {
		v.add(RuleUnresolvedRef, e, param, "commodity reference %q names a %s entity", id, target.Kind())
	}
}

// checkQuantity validates one parameter. label is the qualified parameter
// name used in messages; name keys the dimension check, and per-flow
// parameters form their own namespace.
func (v *validator) checkQuantity(e *entity.Entity, label, name string, q entity.Quantity) {
	if len(q.Sources()) == 0 {
		v.add(RuleMissingCitation, e, label, "parameter has no citation")
	}
	values := append(q.Series(), q.Value())
	for _, a := range q.Annual() {
		values = append(values, a)
	}
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v.add(RuleInvalidEntity, e, label, "non-finite value %v", x)
			break
		}
	}

	u, err := v.reg.Lookup(q.Unit())
	if err != nil {
		v.add(RuleUnknownUnit, e, label, "%v", err)
		return
	}
	if _, err := v.reg.BaseUnit(u.Dimension); err != nil {
		v.add(RuleUnknownUnit, e, label, "%v", err)
		return
	}
	byDim, ok := v.dims[name]
	if !ok {
		byDim = make(map[units.Dimension][]string)
		v.dims[name] = byDim
	}
	byDim[u.Dimension] = append(byDim[u.Dimension], e.ID())
}

// checkDimensions reports parameter names used with more than one dimension,
// once per entity involved.
func (v *validator) checkDimensions() {
	for name, byDim := range v.dims {
		if len(byDim) < 2 {
			continue
		}
		dims := make([]string, 0, len(byDim))
		for d := range byDim {
			dims = append(dims, string(d))
		}
		sort.Strings(dims)
		var usage []string
		for _, d := range dims {
			ids := byDim[units.Dimension(d)]
			usage = append(usage, fmt.Sprintf("%s (%s)", d, strings.Join(dedupe(ids), ", ")))
		}
		for _, d := range dims {
			for _, id := range dedupe(byDim[units.Dimension(d)]) {
				v.add(RuleDimensionClash, v.byID[id], name, "used as %s here; across entities it is used as %s", d, strings.Join(usage, " and "))
			}
		}
	}
}

// checkGlobalPolicies rejects more than one global discount rate.
func (v *validator) checkGlobalPolicies(entities []*entity.Entity) {
	var global []*entity.Entity
	for _, e := range entities {
		if e.Kind() != entity.KindPolicy || e.Sector() != "" {
			continue
		}
		if _, ok := e.Param("discount_rate"); ok {
			global = append(global, e)
		}
	}
	if len(global) < 2 {
		return
	}
	ids := make([]string, len(global))
	for i, e := range global {
		ids[i] = e.ID()
	}
	for _, e := range global {
		v.add(RuleAmbiguousPolicy, e, "discount_rate", "more than one global discount rate is defined (%s)", strings.Join(ids, ", "))
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
