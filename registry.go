package cachepurge

import (
	"fmt"
	"sync"
)

// Registry is the ordered set of adapters a purge pass walks. Order is registration
// order; names are unique. Registration and snapshots are mutually exclusive, so a pass
// always iterates a stable list.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	names    map[string]struct{}
}

// NewRegistry builds a registry and registers the given adapters in order.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{names: map[string]struct{}{}}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an adapter. It fails with *DuplicateAdapterError when the name is
// already taken, leaving the registry untouched.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is nil")
	}
	name := a.Name()
	if name == "" {
		return fmt.Errorf("adapter name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, ok := r.names[name]; ok {
		return &DuplicateAdapterError{Name: name}
	}
	r.names[name] = struct{}{}
	r.adapters = append(r.adapters, a)
	return nil
}

// MustRegister registers an adapter and panics on error. Meant for startup wiring.
func (r *Registry) MustRegister(a Adapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// List returns a snapshot of the registered adapters in registration order.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Adapter(nil), r.adapters...)
}

// Names returns the registered adapter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Name())
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
