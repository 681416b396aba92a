package tool

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the process-lifetime set of capabilities. Registration
// happens during startup; lookups are concurrent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Registration{}}
}

// Register adds a capability. It rejects empty names, nil capabilities,
// unknown idempotency classes, and duplicate names.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if reg.Capability == nil {
		return fmt.Errorf("register tool %s: nil capability", reg.Name)
	}
	if !reg.Idempotency.Valid() {
		return fmt.Errorf("register tool %s: invalid idempotency %q", reg.Name, reg.Idempotency)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[reg.Name]; ok {
		return fmt.Errorf("register tool %s: already registered", reg.Name)
	}
	r.tools[reg.Name] = reg
	return nil
}

// MustRegister panics on registration failure. For startup wiring only.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Lookup returns the registration for name, or *NotFoundError.
func (r *Registry) Lookup(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Registration{}, &NotFoundError{Name: name}
	}
	return reg, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns all registrations sorted by name, for the planner prompt
// and the tools listing.
func (r *Registry) Specs() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Registration, 0, len(r.tools))
	for _, reg := range r.tools {
		specs = append(specs, reg)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
