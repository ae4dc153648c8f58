package llm

import (
	"fmt"
	"io"
	"sync"
)

// Registry is an ordered set of providers keyed by ID.
type Registry struct {
	providers map[string]Provider
	order     []string
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. IDs must be unique.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	return nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns registered provider IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Shutdown closes providers that hold resources.
func (r *Registry) Shutdown() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if c, ok := r.providers[id].(io.Closer); ok {
			_ = c.Close()
		}
	}
	return nil
}
