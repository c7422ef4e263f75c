package provider

import "fmt"

// Registry maps provider ids to instances. It is built once at startup and
// passed explicitly to whoever needs provider lookup; there is no package
// level instance.
type Registry struct {
	byID  map[string]Provider
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Provider)}
}

// Register adds a provider. Registering the same id twice replaces the
// earlier instance.
func (r *Registry) Register(p Provider) {
	if _, seen := r.byID[p.ID()]; !seen {
		r.order = append(r.order, p.ID())
	}
	r.byID[p.ID()] = p
}

// Get returns the provider registered under id, or ErrProviderNotFound.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, id)
	}
	return p, nil
}

// List returns all registered providers in registration order.
func (r *Registry) List() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
