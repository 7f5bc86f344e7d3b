package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/graph"
)

// Module is the interface that all sector modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// ExtendFunc adds a sector's elements to g and returns the extended graph.
// g is a private clone; returning it after calling its Add methods is the
// normal case.
type ExtendFunc func(ctx context.Context, g *graph.Graph, cfg *config.Configuration) (*graph.Graph, error)

// Sector is a registered sector module.
type Sector struct {
	Name   string
	Order  int      // breaks ties between modules ready at the same time
	After  []string // modules that must run first
	Extend ExtendFunc
}

// RegisteredTemplate is a constraint template contributed by a module.
type RegisteredTemplate struct {
	Sector     string
	Template   constraint.Template
	AttachOnly bool
}

// Registry holds the sector modules and templates of one application
// instance.
type Registry struct {
	mu        sync.RWMutex
	sectors   map[string]Sector
	templates []RegisteredTemplate
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{sectors: make(map[string]Sector)}
}

// Load registers each module.
func (r *Registry) Load(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// RegisterSector registers a sector module. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterSector(s Sector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Name == "" {
		panic("sector module registered without a name")
	}
	if _, exists := r.sectors[s.Name]; exists {
		panic(fmt.Sprintf("sector module with name '%s' already registered", s.Name))
	}
	slog.Debug("Registering sector module.", "name", s.Name, "after", s.After)
	s.After = append([]string(nil), s.After...)
	r.sectors[s.Name] = s
}

// RegisterTemplate registers a constraint template owned by a sector module.
// Name clashes are reported by ValidateRegistry.
func (r *Registry) RegisterTemplate(sector string, t constraint.Template, attachOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Debug("Registering constraint template.", "sector", sector, "template", t.Name(), "attachOnly", attachOnly)
	r.templates = append(r.templates, RegisteredTemplate{Sector: sector, Template: t, AttachOnly: attachOnly})
}

// Sector returns a registered sector module.
func (r *Registry) Sector(name string) (Sector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sectors[name]
	return s, ok
}

// Names returns the registered sector names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.sectors))
	for name := range r.sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Templates returns the module templates in registration order.
func (r *Registry) Templates() []RegisteredTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RegisteredTemplate(nil), r.templates...)
}

// Library returns the built-in constraint library extended with every
// module template.
func (r *Registry) Library(decay constraint.DecayFunc) (*constraint.Library, error) {
	lib := constraint.NewLibrary(decay)
	for _, t := range r.Templates() {
		if err := lib.Register(t.Template, t.AttachOnly); err != nil {
			return nil, fmt.Errorf("sector module %q: %w", t.Sector, err)
		}
	}
	return lib, nil
}
