package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wanderpass/portal/internal/auth"
)

// Factory creates the client serving one browser session id.
type Factory interface {
	NewClient(sid string) auth.Client
}

// Backend is one managed backend: the client factory for browser sessions and
// the profile store its users' roles are read from.
type Backend struct {
	Name     string
	Factory  Factory
	Profiles auth.ProfileStore
}

// Registry holds the backends the service was configured with.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend. Both the factory and the profile store are required and
// a name may only be registered once.
func (r *Registry) Register(name string, f Factory, profiles auth.ProfileStore) error {
	if f == nil || profiles == nil {
		return fmt.Errorf("backend %q: factory and profile store are required", name)
	}
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.backends[name] = Backend{Name: name, Factory: f, Profiles: profiles}
	return nil
}

// Select returns the backend registered under name. The error lists what is
// available so a misconfigured BACKEND is easy to spot.
func (r *Registry) Select(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		if len(r.backends) == 0 {
			return Backend{}, errors.New("no auth backends registered")
		}
		return Backend{}, fmt.Errorf("auth backend %q is not configured (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
