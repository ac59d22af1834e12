package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"mediasuite/internal/agent"
	"mediasuite/internal/services"
)

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("registry is sealed")

// Descriptor describes a registered agent.
type Descriptor struct {
	ID           string     `json:"id"`
	Kind         agent.Kind `json:"kind"`
	Capabilities []string   `json:"capabilities"`
}

// Equal reports whether two descriptors carry the same fields.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.ID == other.ID && d.Kind == other.Kind && slices.Equal(d.Capabilities, other.Capabilities)
}

// Can reports whether the agent declared action among its capabilities.
func (d Descriptor) Can(action string) bool {
	return slices.Contains(d.Capabilities, action)
}

func (d Descriptor) clone() Descriptor {
	d.Capabilities = slices.Clone(d.Capabilities)
	return d
}

type entry struct {
	desc    Descriptor
	factory agent.Factory
}

// Registry maps agent ids to descriptors and factories in insertion order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
	sealed  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register upserts desc keyed by its id. Re-registering keeps the original
// position in the pipeline order.
func (r *Registry) Register(desc Descriptor, factory agent.Factory) error {
	desc.ID = strings.TrimSpace(desc.ID)
	desc.Kind = agent.Kind(strings.TrimSpace(string(desc.Kind)))
	switch {
	case desc.ID == "":
		return services.Wrap(services.ErrConfiguration, "registry", "register", "agent id is required", nil)
	case desc.Kind == "":
		return services.Wrap(services.ErrConfiguration, "registry", "register", fmt.Sprintf("agent %s: kind is required", desc.ID), nil)
	case factory == nil:
		return services.Wrap(services.ErrConfiguration, "registry", "register", fmt.Sprintf("agent %s: factory is required", desc.ID), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %s: %w", desc.ID, ErrSealed)
	}
	if _, exists := r.entries[desc.ID]; !exists {
		r.order = append(r.order, desc.ID)
	}
	r.entries[desc.ID] = entry{desc: desc.clone(), factory: factory}
	return nil
}

// Get returns the descriptor registered under id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc.clone(), true
}

// Factory returns the factory registered under id.
func (r *Registry) Factory(id string) (agent.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.factory, true
}

// Kind returns the kind registered under id.
func (r *Registry) Kind(id string) (agent.Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.desc.Kind, ok
}

// List returns agent ids in pipeline order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Descriptors returns every descriptor in pipeline order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].desc.clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry is frozen.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Default registers built-in agents. With no ids every built-in is registered
// in canonical order; otherwise ids select and order them. Unknown ids fail.
func Default(deps agent.Deps, ids ...string) (*Registry, error) {
	builtins := agent.Builtins(deps)
	if len(ids) == 0 {
		ids = make([]string, 0, len(builtins))
		for _, b := range builtins {
			ids = append(ids, b.ID)
		}
	}

	reg := New()
	for _, id := range ids {
		idx := slices.IndexFunc(builtins, func(b agent.Builtin) bool { return b.ID == id })
		if idx < 0 {
			return nil, services.Wrap(services.ErrConfiguration, "registry", "default", fmt.Sprintf("unknown agent %q", id), nil)
		}
		b := builtins[idx]
		desc := Descriptor{ID: b.ID, Kind: b.Kind, Capabilities: b.Capabilities}
		if err := reg.Register(desc, b.Factory); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
