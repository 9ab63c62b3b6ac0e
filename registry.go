package framez

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotRegistered is returned by Registry.Get for unknown names.
var ErrNotRegistered = errors.New("unit not registered")

// Registry is a Container backed by a map. Entries are either instances,
// returned as is, or factories, invoked on every Get.
//
// Registry is safe for concurrent use, so units can be registered while
// pipelines that look them up are dispatching.
type Registry struct {
	entries map[string]func() (any, error)
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]func() (any, error))}
}

// Register stores a unit instance under name, replacing any previous entry.
func (r *Registry) Register(name string, unit Unit) *Registry {
	return r.set(name, func() (any, error) { return unit, nil })
}

// RegisterFunc stores a bare function under name.
func (r *Registry) RegisterFunc(name string, fn HandlerFunc) *Registry {
	return r.set(name, func() (any, error) { return fn, nil })
}

// RegisterFactory stores a constructor under name. The factory runs on
// every lookup and its error is returned from Get.
func (r *Registry) RegisterFactory(name string, factory func() (Unit, error)) *Registry {
	return r.set(name, func() (any, error) { return factory() })
}

// RegisterValue stores an arbitrary value under name. Pipelines reject
// values that are not units when they resolve them.
func (r *Registry) RegisterValue(name string, value any) *Registry {
	return r.set(name, func() (any, error) { return value, nil })
}

func (r *Registry) set(name string, entry func() (any, error)) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry
	return r
}

// Get implements Container.
func (r *Registry) Get(name string) (any, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return entry()
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Remove deletes the entry for name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
