package config

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/units"
)

// Param is a parameter normalized to the base unit of its dimension.
type Param struct {
	Dimension units.Dimension `yaml:"dimension"`
	Unit      string          `yaml:"unit"`
	Value     *float64        `yaml:"value,omitempty"`
	Series    []float64       `yaml:"series,omitempty,flow"`
	Annual    map[int]float64 `yaml:"annual,omitempty"`
}

// Scalar builds a scalar parameter.
func Scalar(dim units.Dimension, unit string, v float64) Param {
	return Param{Dimension: dim, Unit: unit, Value: &v}
}

// IsSeries reports whether the parameter varies by time slice.
func (p Param) IsSeries() bool { return p.Series != nil }

// At returns the value for a model year, honouring annual overrides. For a
// series it returns the mean over the series.
func (p Param) At(year int) float64 {
	if v, ok := p.Annual[year]; ok {
		return v
	}
	if p.Value != nil {
		return *p.Value
	}
	if len(p.Series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Series {
		sum += v
	}
	return sum / float64(len(p.Series))
}

// AtSlice returns the value in a time slice.
func (p Param) AtSlice(s TimeSlice) float64 {
	if p.IsSeries() && s.Index < len(p.Series) {
		return p.Series[s.Index]
	}
	return p.At(s.Year)
}

// Max returns the largest value the parameter takes.
func (p Param) Max() float64 {
	var vals []float64
	if p.Value != nil {
		vals = append(vals, *p.Value)
	}
	vals = append(vals, p.Series...)
	for _, v := range p.Annual {
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return 0
	}
	return slices.Max(vals)
}

func (p Param) clone() Param {
	out := Param{Dimension: p.Dimension, Unit: p.Unit, Series: slices.Clone(p.Series)}
	if p.Value != nil {
		v := *p.Value
		out.Value = &v
	}
	if p.Annual != nil {
		out.Annual = maps.Clone(p.Annual)
	}
	return out
}

// Link is a resolved technology input or output.
type Link struct {
	Target    string           `yaml:"target"`
	Commodity string           `yaml:"commodity"`
	Params    map[string]Param `yaml:"params,omitempty"`
}

// Param returns a per-flow parameter.
func (l Link) Param(name string) (Param, bool) {
	p, ok := l.Params[name]
	return p, ok
}

func (l Link) clone() Link {
	return Link{Target: l.Target, Commodity: l.Commodity, Params: cloneParams(l.Params)}
}

// Entity is an entity with normalized parameters.
type Entity struct {
	ID          string           `yaml:"id"`
	Kind        entity.Kind      `yaml:"kind"`
	Description string           `yaml:"description,omitempty"`
	Sector      string           `yaml:"sector,omitempty"`
	Commodity   string           `yaml:"commodity,omitempty"`
	Costs       []string         `yaml:"costs,omitempty,flow"`
	Inputs      []Link           `yaml:"inputs,omitempty"`
	Outputs     []Link           `yaml:"outputs,omitempty"`
	Params      map[string]Param `yaml:"params,omitempty"`
}

// Param returns a normalized parameter.
func (e Entity) Param(name string) (Param, bool) {
	p, ok := e.Params[name]
	return p, ok
}

// ParamNames returns the parameter names, sorted.
func (e Entity) ParamNames() []string {
	return slices.Sorted(maps.Keys(e.Params))
}

func (e Entity) clone() Entity {
	out := e
	out.Costs = slices.Clone(e.Costs)
	out.Inputs = cloneLinks(e.Inputs)
	out.Outputs = cloneLinks(e.Outputs)
	out.Params = cloneParams(e.Params)
	return out
}

func cloneLinks(in []Link) []Link {
	if in == nil {
		return nil
	}
	out := make([]Link, len(in))
	for i, l := range in {
		out[i] = l.clone()
	}
	return out
}

func cloneParams(in map[string]Param) map[string]Param {
	if in == nil {
		return nil
	}
	out := make(map[string]Param, len(in))
	for k, p := range in {
		out[k] = p.clone()
	}
	return out
}

// Provenance records where a magnitude came from and how it was converted.
type Provenance struct {
	Sources      []string `yaml:"sources"`
	Note         string   `yaml:"note,omitempty"`
	File         string   `yaml:"file,omitempty"`
	OriginalUnit string   `yaml:"original_unit"`
	BaseUnit     string   `yaml:"base_unit"`
	Factor       string   `yaml:"factor"`
}

// ProvenanceKey returns the provenance index key of an entity parameter.
func ProvenanceKey(entityID, param string) string {
	return entityID + "." + param
}

// LinkProvenanceKey returns the provenance index key of a per-flow parameter.
func LinkProvenanceKey(entityID string, dir entity.Direction, target, param string) string {
	return fmt.Sprintf("%s.%s.%s.%s", entityID, dir, target, param)
}

// Configuration is the compiled, immutable model input.
type Configuration struct {
	fingerprint string
	time        TimeStructure
	entities    map[string]Entity
	ids         []string
	provenance  map[string]Provenance
}

// New copies its arguments into a Configuration and stamps its fingerprint.
func New(ts TimeStructure, entities []Entity, provenance map[string]Provenance) (*Configuration, error) {
	c := &Configuration{
		time:       ts.clone(),
		entities:   make(map[string]Entity, len(entities)),
		provenance: make(map[string]Provenance, len(provenance)),
	}
	for _, e := range entities {
		if _, dup := c.entities[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entity %q in configuration", e.ID)
		}
		c.entities[e.ID] = e.clone()
		c.ids = append(c.ids, e.ID)
	}
	sort.Strings(c.ids)
	for k, p := range provenance {
		p.Sources = slices.Clone(p.Sources)
		c.provenance[k] = p
	}

	fp, err := fingerprint(c)
	if err != nil {
		return nil, err
	}
	c.fingerprint = fp
	return c, nil
}

// Fingerprint is a UUIDv5 over the canonical encoding.
func (c *Configuration) Fingerprint() string { return c.fingerprint }

// Time returns the time structure.
func (c *Configuration) Time() TimeStructure { return c.time.clone() }

// Slices enumerates the time slices.
func (c *Configuration) Slices() []TimeSlice { return c.time.Slices() }

// Entity returns a copy of the entity with the given ID.
func (c *Configuration) Entity(id string) (Entity, bool) {
	e, ok := c.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// Entities returns copies of all entities sorted by ID.
func (c *Configuration) Entities() []Entity {
	out := make([]Entity, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.entities[id].clone())
	}
	return out
}

// OfKind returns the entities of one kind, sorted by ID.
func (c *Configuration) OfKind(kind entity.Kind) []Entity {
	var out []Entity
	for _, id := range c.ids {
		if e := c.entities[id]; e.Kind == kind {
			out = append(out, e.clone())
		}
	}
	return out
}

// Policy returns a policy parameter for a sector. An empty sector selects
// policies without a sector tag, which apply globally.
func (c *Configuration) Policy(sector, param string) (Param, bool) {
	for _, id := range c.ids {
		e := c.entities[id]
		if e.Kind != entity.KindPolicy || e.Sector != sector {
			continue
		}
		if p, ok := e.Params[param]; ok {
			return p.clone(), true
		}
	}
	return Param{}, false
}

// Provenance returns the provenance record for a key built with
// ProvenanceKey or LinkProvenanceKey.
func (c *Configuration) Provenance(key string) (Provenance, bool) {
	p, ok := c.provenance[key]
	if ok {
		p.Sources = slices.Clone(p.Sources)
	}
	return p, ok
}

// ProvenanceKeys returns the provenance index keys, sorted.
func (c *Configuration) ProvenanceKeys() []string {
	return slices.Sorted(maps.Keys(c.provenance))
}
