// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Entity, Link and Quantity records.
//
// Why build entities from a Spec?
//
// The parser is not the only producer of entities: tests and tools assemble
// them directly. Routing every construction through New(Spec) gives a single
// place where input slices and maps are copied, so no caller can keep a
// reference that would let it modify an entity later.
package entity

import (
	"maps"
	"regexp"
	"slices"
	"sort"
)

// Kind classifies an entity.
type Kind string

const (
	KindTechnology    Kind = "technology"
	KindCommodity     Kind = "commodity"
	KindNode          Kind = "node"
	KindPolicy        Kind = "sector-policy"
	KindTimeStructure Kind = "time-structure"
)

// Kinds lists the valid kinds in documentation order.
var Kinds = []Kind{KindTechnology, KindCommodity, KindNode, KindPolicy, KindTimeStructure}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// idPattern restricts identifiers to names that are safe inside graph element
// addresses and solver variable names.
var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidID reports whether id can name an entity.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// FillRepeat tiles a short series across all time slices.
const FillRepeat = "repeat"

// QuantitySpec is the mutable input to NewQuantity.
type QuantitySpec struct {
	Value   float64
	Series  []float64 // set for time-varying parameters; Value is then ignored
	Annual  map[int]float64
	Unit    string
	Sources []string
	Note    string
	Fill    string
}

// Quantity is a magnitude with its unit and citations. It is immutable.
type Quantity struct {
	value    float64
	series   []float64
	isSeries bool
	annual   map[int]float64
	unit     string
	sources  []string
	note     string
	fill     string
}

// NewQuantity copies spec into an immutable Quantity.
func NewQuantity(spec QuantitySpec) Quantity {
	q := Quantity{
		value:   spec.Value,
		unit:    spec.Unit,
		sources: slices.Clone(spec.Sources),
		note:    spec.Note,
		fill:    spec.Fill,
	}
	if spec.Series != nil {
		q.isSeries = true
		q.series = slices.Clone(spec.Series)
		q.value = 0
	}
	if len(spec.Annual) > 0 {
		q.annual = maps.Clone(spec.Annual)
	}
	return q
}

func (q Quantity) Value() float64    { return q.value }
func (q Quantity) IsSeries() bool    { return q.isSeries }
func (q Quantity) Series() []float64 { return slices.Clone(q.series) }
func (q Quantity) Unit() string      { return q.unit }
func (q Quantity) Sources() []string { return slices.Clone(q.sources) }
func (q Quantity) Note() string      { return q.note }
func (q Quantity) Fill() string      { return q.fill }
func (q Quantity) Annual() map[int]float64 {
	if q.annual == nil {
		return nil
	}
	return maps.Clone(q.annual)
}

// Spec returns a mutable copy of the quantity.
func (q Quantity) Spec() QuantitySpec {
	spec := QuantitySpec{
		Value:   q.value,
		Annual:  q.Annual(),
		Unit:    q.unit,
		Sources: q.Sources(),
		Note:    q.note,
		Fill:    q.fill,
	}
	if q.isSeries {
		spec.Series = q.Series()
		if spec.Series == nil {
			spec.Series = []float64{}
		}
	}
	return spec
}

// Direction tells whether a link feeds into or out of a technology.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// LinkSpec is the mutable input for a Link.
type LinkSpec struct {
	Target    string
	Commodity string
	Params    map[string]QuantitySpec
}

// Link is a declared input or output relationship of a technology, with
// optional per-flow parameters such as efficiency or capacity.
type Link struct {
	direction Direction
	target    string
	commodity string
	params    map[string]Quantity
}

func newLink(dir Direction, spec LinkSpec) Link {
	l := Link{direction: dir, target: spec.Target, commodity: spec.Commodity, params: make(map[string]Quantity, len(spec.Params))}
	for name, qs := range spec.Params {
		l.params[name] = NewQuantity(qs)
	}
	return l
}

func (l Link) Direction() Direction { return l.direction }
func (l Link) Target() string       { return l.target }
func (l Link) Commodity() string    { return l.commodity }

// Param returns a per-flow parameter.
func (l Link) Param(name string) (Quantity, bool) {
	q, ok := l.params[name]
	return q, ok
}

// ParamNames returns the link's parameter names, sorted.
func (l Link) ParamNames() []string {
	return sortedKeys(l.params)
}

// Spec returns a mutable copy of the link.
func (l Link) Spec() LinkSpec {
	spec := LinkSpec{Target: l.target, Commodity: l.commodity}
	if len(l.params) > 0 {
		spec.Params = make(map[string]QuantitySpec, len(l.params))
		for name, q := range l.params {
			spec.Params[name] = q.Spec()
		}
	}
	return spec
}

// TimeSpec is the time structure declared by a time-structure entity. Days are
// labels of externally selected representative days and are not interpreted.
type TimeSpec struct {
	Years []int
	Days  []string
	Hours int
}

func (t TimeSpec) clone() TimeSpec {
	return TimeSpec{Years: slices.Clone(t.Years), Days: slices.Clone(t.Days), Hours: t.Hours}
}

// Spec is the mutable input to New.
type Spec struct {
	ID          string
	Kind        Kind
	Description string
	Sector      string
	Commodity   string
	Costs       []string
	Inputs      []LinkSpec
	Outputs     []LinkSpec
	Time        *TimeSpec
	Params      map[string]QuantitySpec
	File        string
}

// Entity is one parsed entity file. It is immutable.
type Entity struct {
	id          string
	kind        Kind
	description string
	sector      string
	commodity   string
	costs       []string
	inputs      []Link
	outputs     []Link
	time        *TimeSpec
	params      map[string]Quantity
	file        string
}

// New copies spec into an immutable Entity. It performs no validation; the
// parser and the validator do that.
func New(spec Spec) *Entity {
	e := &Entity{
		id:          spec.ID,
		kind:        spec.Kind,
		description: spec.Description,
		sector:      spec.Sector,
		commodity:   spec.Commodity,
		costs:       slices.Clone(spec.Costs),
		file:        spec.File,
		params:      make(map[string]Quantity, len(spec.Params)),
	}
	for _, l := range spec.Inputs {
		e.inputs = append(e.inputs, newLink(Input, l))
	}
	for _, l := range spec.Outputs {
		e.outputs = append(e.outputs, newLink(Output, l))
	}
	if spec.Time != nil {
		t := spec.Time.clone()
		e.time = &t
	}
	for name, qs := range spec.Params {
		e.params[name] = NewQuantity(qs)
	}
	return e
}

func (e *Entity) ID() string          { return e.id }
func (e *Entity) Kind() Kind          { return e.kind }
func (e *Entity) Description() string { return e.description }
func (e *Entity) Sector() string      { return e.sector }
func (e *Entity) Commodity() string   { return e.commodity }
func (e *Entity) File() string        { return e.file }
func (e *Entity) Costs() []string     { return slices.Clone(e.costs) }
func (e *Entity) Inputs() []Link      { return slices.Clone(e.inputs) }
func (e *Entity) Outputs() []Link     { return slices.Clone(e.outputs) }

// Links returns inputs followed by outputs.
func (e *Entity) Links() []Link {
	return append(e.Inputs(), e.outputs...)
}

// Time returns the declared time structure of a time-structure entity.
func (e *Entity) Time() (TimeSpec, bool) {
	if e.time == nil {
		return TimeSpec{}, false
	}
	return e.time.clone(), true
}

// Param returns the named parameter.
func (e *Entity) Param(name string) (Quantity, bool) {
	q, ok := e.params[name]
	return q, ok
}

// ParamNames returns the parameter names, sorted.
func (e *Entity) ParamNames() []string {
	return sortedKeys(e.params)
}

// Spec returns a mutable copy of the entity, e.g. for deriving a variant in tests.
func (e *Entity) Spec() Spec {
	spec := Spec{
		ID:          e.id,
		Kind:        e.kind,
		Description: e.description,
		Sector:      e.sector,
		Commodity:   e.commodity,
		Costs:       e.Costs(),
		File:        e.file,
	}
	for _, l := range e.inputs {
		spec.Inputs = append(spec.Inputs, l.Spec())
	}
	for _, l := range e.outputs {
		spec.Outputs = append(spec.Outputs, l.Spec())
	}
	if e.time != nil {
		t := e.time.clone()
		spec.Time = &t
	}
	if len(e.params) > 0 {
		spec.Params = make(map[string]QuantitySpec, len(e.params))
		for name, q := range e.params {
			spec.Params[name] = q.Spec()
		}
	}
	return spec
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
