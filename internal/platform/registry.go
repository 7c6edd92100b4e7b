package platform

import (
	"sync"

	"github.com/budgetloop/optimizer/internal/arm"
)

// Registry holds one adapter per platform, adapted from the teacher's
// ConnectorRegistry. The Optimization Loop ranges over List() to fan
// out Fetch/Apply across every configured platform.
type Registry struct {
	mu       sync.RWMutex
	adapters map[arm.Platform]PlatformAdapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[arm.Platform]PlatformAdapter)}
}

// Register binds an adapter to its platform.
func (r *Registry) Register(a PlatformAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get retrieves the adapter for a platform, if registered.
func (r *Registry) Get(p arm.Platform) (PlatformAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	return a, ok
}

// List returns every registered adapter.
func (r *Registry) List() []PlatformAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PlatformAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
