package engine

import (
	"errors"
	"sort"
	"sync"
)

// Registry tracks live engines by session id. It is owned by the caller;
// there is no package-level registry.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Add registers an engine under its session id.
func (r *Registry) Add(e *Engine) error {
	id := e.Session().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[id]; ok {
		return ErrDuplicateSession
	}
	r.engines[id] = e
	return nil
}

// Get returns the engine for id.
func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Remove forgets id. The engine is not stopped.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.engines, id)
	r.mu.Unlock()
}

// List returns every registered engine, oldest session first.
func (r *Registry) List() []*Engine {
	r.mu.RLock()
	out := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Session().CreatedAt.Before(out[j].Session().CreatedAt)
	})
	return out
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// EndAll ends every started engine and returns the joined finalization
// errors.
func (r *Registry) EndAll() error {
	var errs []error
	for _, e := range r.List() {
		if err := e.End(); err != nil && !errors.Is(err, ErrNotStarted) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
