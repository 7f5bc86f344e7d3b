package compiler

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/units"
	"github.com/specialistvlad/restore/internal/validate"
)

// Compile builds the Configuration for a validated entity set. The result
// depends only on the set, so compiling the same set twice yields the same
// fingerprint and byte-identical YAML.
func Compile(ctx context.Context, set *validate.Set) (*config.Configuration, error) {
	if set == nil || set.Units() == nil {
		return nil, &CompileError{Detail: "entity set has not been validated"}
	}
	logger := ctxlog.FromContext(ctx)
	entities := set.Entities()

	ts, err := resolveTime(entities)
	if err != nil {
		return nil, err
	}
	logger.Debug("Time structure resolved.", "source", ts.Source, "years", ts.Years, "slices", ts.SliceCount())

	c := &compilation{reg: set.Units(), set: set, ts: ts, prov: make(map[string]config.Provenance)}
	out := make([]config.Entity, 0, len(entities))
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ce, err := c.entity(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}

	cfg, err := config.New(ts, out, c.prov)
	if err != nil {
		return nil, &CompileError{Detail: "failed to assemble configuration", Err: err}
	}
	logger.Info("Configuration compiled.", "fingerprint", cfg.Fingerprint(), "entities", len(out), "slices", ts.SliceCount())
	return cfg, nil
}

// resolveTime picks the single time-structure entity, or derives the default
// from the years named by annual overrides.
func resolveTime(entities []*entity.Entity) (config.TimeStructure, error) {
	var declared []*entity.Entity
	for _, e := range entities {
		if e.Kind() == entity.KindTimeStructure {
			declared = append(declared, e)
		}
	}

	switch len(declared) {
	case 0:
		years := annualYears(entities)
		switch len(years) {
		case 0:
			return config.DefaultTimeStructure(0), nil
		case 1:
			return config.DefaultTimeStructure(years[0]), nil
		default:
			return config.TimeStructure{}, &CompileError{
				Detail: fmt.Sprintf("annual values name years %v but no time-structure entity declares the model years", years),
			}
		}
	case 1:
		e := declared[0]
		spec, ok := e.Time()
		if !ok {
			return config.TimeStructure{}, &CompileError{Entity: e.ID(), Detail: "time-structure entity declares no years, days or hours"}
		}
		ts, err := config.NewTimeStructure(e.ID(), spec.Years, spec.Days, spec.Hours)
		if err != nil {
			return config.TimeStructure{}, &CompileError{Entity: e.ID(), Detail: "invalid time structure", Err: err}
		}
		return ts, nil
	default:
		ids := make([]string, len(declared))
		for i, e := range declared {
			ids[i] = e.ID()
		}
		return config.TimeStructure{}, &CompileError{
			Detail: fmt.Sprintf("conflicting time structures: %s; exactly one time-structure entity is allowed", strings.Join(ids, ", ")),
		}
	}
}

func annualYears(entities []*entity.Entity) []int {
	seen := make(map[int]bool)
	visit := func(q entity.Quantity) {
		for y := range q.Annual() {
			seen[y] = true
		}
	}
	for _, e := range entities {
		for _, name := range e.ParamNames() {
			q, _ := e.Param(name)
			visit(q)
		}
		for _, l := range e.Links() {
			for _, name := range l.ParamNames() {
				q, _ := l.Param(name)
				visit(q)
			}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

type compilation struct {
	reg  *units.Registry
	set  *validate.Set
	ts   config.TimeStructure
	prov map[string]config.Provenance
}

func (c *compilation) entity(e *entity.Entity) (config.Entity, error) {
	out := config.Entity{
		ID:          e.ID(),
		Kind:        e.Kind(),
		Description: e.Description(),
		Sector:      e.Sector(),
		Commodity:   e.Commodity(),
		Costs:       e.Costs(),
	}

	params := make(map[string]config.Param)
	for _, name := range e.ParamNames() {
		q, _ := e.Param(name)
		p, err := c.quantity(e, name, config.ProvenanceKey(e.ID(), name), q)
		if err != nil {
			return config.Entity{}, err
		}
		params[name] = p
	}
	if len(params) > 0 {
		out.Params = params
	}

	for _, l := range e.Inputs() {
		link, err := c.link(e, l)
		if err != nil {
			return config.Entity{}, err
		}
		out.Inputs = append(out.Inputs, link)
	}
	for _, l := range e.Outputs() {
		link, err := c.link(e, l)
		if err != nil {
			return config.Entity{}, err
		}
		out.Outputs = append(out.Outputs, link)
	}
	return out, nil
}

func (c *compilation) link(e *entity.Entity, l entity.Link) (config.Link, error) {
	out := config.Link{Target: l.Target(), Commodity: c.linkCommodity(l)}
	for _, name := range l.ParamNames() {
		q, _ := l.Param(name)
		key := config.LinkProvenanceKey(e.ID(), l.Direction(), l.Target(), name)
		label := fmt.Sprintf("%s.%s.%s", l.Direction(), l.Target(), name)
		p, err := c.quantity(e, label, key, q)
		if err != nil {
			return config.Link{}, err
		}
		if out.Params == nil {
			out.Params = make(map[string]config.Param)
		}
		out.Params[name] = p
	}
	return out, nil
}

// linkCommodity resolves the commodity a link carries: an explicit link
// commodity, else the commodity pool it connects to, else the commodity of
// the node it connects to, else the target's own identifier.
func (c *compilation) linkCommodity(l entity.Link) string {
	if l.Commodity() != "" {
		return l.Commodity()
	}
	target, ok := c.set.Entity(l.Target())
	if !ok {
		return l.Target()
	}
	switch {
	case target.Kind() == entity.KindCommodity:
		return target.ID()
	case target.Commodity() != "":
		return target.Commodity()
	default:
		return target.ID()
	}
}

// quantity converts one parameter to base units and records its provenance.
func (c *compilation) quantity(e *entity.Entity, label, key string, q entity.Quantity) (config.Param, error) {
	fail := func(detail string, err error) (config.Param, error) {
		return config.Param{}, &CompileError{Entity: e.ID(), Parameter: label, Detail: detail, Err: err}
	}

	u, err := c.reg.Lookup(q.Unit())
	if err != nil {
		return fail("unit cannot be resolved", err)
	}
	base, err := c.reg.BaseUnit(u.Dimension)
	if err != nil {
		return fail("dimension has no base unit", err)
	}
	p := config.Param{Dimension: u.Dimension, Unit: base}

	if q.IsSeries() {
		series, err := c.fitSeries(q)
		if err != nil {
			return fail(err.Error(), nil)
		}
		p.Series = make([]float64, len(series))
		for i, v := range series {
			if p.Series[i], err = units.Apply(v, u.Factor); err != nil {
				return fail("conversion failed", err)
			}
		}
	} else {
		v, err := units.Apply(q.Value(), u.Factor)
		if err != nil {
			return fail("conversion failed", err)
		}
		p.Value = &v
	}

	if annual := q.Annual(); len(annual) > 0 {
		p.Annual = make(map[int]float64, len(annual))
		for y, v := range annual {
			if !slices.Contains(c.ts.Years, y) {
				return fail(fmt.Sprintf("annual value for %d, which is not a model year %v", y, c.ts.Years), nil)
			}
			if p.Annual[y], err = units.Apply(v, u.Factor); err != nil {
				return fail("conversion failed", err)
			}
		}
	}

	c.prov[key] = config.Provenance{
		Sources:      q.Sources(),
		Note:         q.Note(),
		File:         e.File(),
		OriginalUnit: q.Unit(),
		BaseUnit:     base,
		Factor:       u.Factor.String(),
	}
	return p, nil
}

// fitSeries checks a series against the slice count, tiling it when it
// declares fill = "repeat".
func (c *compilation) fitSeries(q entity.Quantity) ([]float64, error) {
	series := q.Series()
	want := c.ts.SliceCount()
	switch {
	case len(series) == want:
		return series, nil
	case len(series) == 0:
		return nil, fmt.Errorf("series is empty; %d time slices need values", want)
	case q.Fill() == entity.FillRepeat && want%len(series) == 0:
		out := make([]float64, 0, want)
		for len(out) < want {
			out = append(out, series...)
		}
		return out, nil
	case q.Fill() == entity.FillRepeat:
		return nil, fmt.Errorf("series of %d values cannot be repeated evenly over %d time slices", len(series), want)
	default:
		return nil, fmt.Errorf("series has %d values but the time structure has %d time slices; declare fill = %q to tile a shorter profile", len(series), want, entity.FillRepeat)
	}
}
