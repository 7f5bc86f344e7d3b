package constraint

import (
	"fmt"
	"sync"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/problem"
)

// Template produces the rows of one kind of constraint.
type Template interface {
	Name() string
	ApplicableTo(el Element) bool
	Instantiate(el Element, slices []config.TimeSlice) (Instance, error)
}

// Instance is the result of instantiating a template on one element.
type Instance struct {
	Template string
	Element  string
	Rows     []problem.Constraint
}

// FlowVar names the energy leaving a flow's source during a slice, in MWh.
func FlowVar(flowID, slice string) string { return fmt.Sprintf("flow(%s,%s)", flowID, slice) }

// LevelVar names the energy held by a storage node at the end of a slice.
func LevelVar(nodeID, slice string) string { return fmt.Sprintf("level(%s,%s)", nodeID, slice) }

// CapVar names the installed capacity of a technology in a model year.
func CapVar(nodeID string, year int) string { return fmt.Sprintf("cap(%s,%s)", nodeID, YearLabel(year)) }

// NewCapVar names the capacity built in a model year.
func NewCapVar(nodeID string, year int) string {
	return fmt.Sprintf("capnew(%s,%s)", nodeID, YearLabel(year))
}

// YearLabel formats a model year for row and variable names.
func YearLabel(year int) string { return fmt.Sprintf("y%d", year) }

// RowName names a row a template emits for an element and index.
func RowName(template, element, index string) string {
	return fmt.Sprintf("%s(%s,%s)", template, element, index)
}

type entry struct {
	template   Template
	attachOnly bool
}

// Library holds the known templates. It is safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	templates map[string]entry
	order     []string
}

// NewLibrary returns a library with the built-in templates. decay sets the
// survival curve of the retirement template; nil selects StepDecay.
func NewLibrary(decay DecayFunc) *Library {
	if decay == nil {
		decay = StepDecay
	}
	l := &Library{templates: make(map[string]entry)}
	for _, t := range []Template{Balance{}, CapacityBound{}, StorageBound{}, Retirement{Decay: decay}, BuildRate{}} {
		if err := l.Register(t, false); err != nil {
			panic(err)
		}
	}
	for _, t := range []Template{ActivityFactor{}, ReserveMargin{}} {
		if err := l.Register(t, true); err != nil {
			panic(err)
		}
	}
	return l
}

// Register adds a template. Core templates apply wherever ApplicableTo
// accepts an element; attach-only templates run only on bound elements.
func (l *Library) Register(t Template, attachOnly bool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("constraint template has no name")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.templates[name]; exists {
		return fmt.Errorf("constraint template %q already registered", name)
	}
	l.templates[name] = entry{template: t, attachOnly: attachOnly}
	l.order = append(l.order, name)
	return nil
}

// Lookup returns a template by name.
func (l *Library) Lookup(name string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.templates[name]
	return e.template, ok
}

// Core returns the auto-applied templates in registration order.
func (l *Library) Core() []Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Template
	for _, name := range l.order {
		if e := l.templates[name]; !e.attachOnly {
			out = append(out, e.template)
		}
	}
	return out
}

// Names returns every template name in registration order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}
