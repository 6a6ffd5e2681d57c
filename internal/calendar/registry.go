package calendar

import (
	"fmt"
	"sync"

	"github.com/taigrr/vaultcal/internal/types"
)

// Registry is the ordered collection of registered calendars.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Calendar
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Calendar)}
}

// Register adds a calendar; ids must be unique.
func (r *Registry) Register(cal Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := cal.Info().ID
	if id == "" {
		return fmt.Errorf("%w: calendar id must not be empty", types.ErrValidation)
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: calendar %q already registered", types.ErrValidation, id)
	}

	r.byID[id] = cal
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a calendar by id.
func (r *Registry) Get(id string) (Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cal, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: calendar %q", types.ErrNotFound, id)
	}
	return cal, nil
}

// List returns all calendars in registration order.
func (r *Registry) List() []Calendar {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Calendar, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ContainingPath returns, in registration order, every calendar whose
// ContainsPath accepts the given vault path. This is the invalidation
// filter: only these calendars are rescanned when the path changes.
func (r *Registry) ContainingPath(path string) []Calendar {
	var out []Calendar
	for _, cal := range r.List() {
		if cal.ContainsPath(path) {
			out = append(out, cal)
		}
	}
	return out
}
