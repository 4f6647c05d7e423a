package strata

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is an explicit collection of stores keyed by name. It replaces
// the process-global store table some binding layers keep: callers construct
// a Registry and pass it by reference to whatever needs lookup (the devtools
// inspector, for example).
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Add registers a store under its name. Registering a second store with the
// same name fails.
func (r *Registry) Add(s *Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[s.Name()]; exists {
		return fmt.Errorf("strata: store %q already registered", s.Name())
	}
	r.stores[s.Name()] = s
	return nil
}

// Get looks up a store by name.
func (r *Registry) Get(name string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Remove drops a store from the registry. The store itself (and its
// subscriptions) stays alive for as long as callers hold it.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

// Names returns the registered store names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
