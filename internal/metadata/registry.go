package metadata

import (
	"errors"
	"fmt"
)

var ErrUnknownResource = errors.New("unknown resource")

// Registry maps route tokens to resource descriptors. It is built once at
// startup and never written afterwards, so concurrent reads need no locking.
type Registry struct {
	byToken map[string]*Descriptor
	byKind  map[Kind]*Descriptor
	order   []*Descriptor
}

func NewRegistry(descriptors ...*Descriptor) *Registry {
	r := &Registry{
		byToken: make(map[string]*Descriptor, len(descriptors)),
		byKind:  make(map[Kind]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.byToken[d.Name] = d
		r.byKind[d.Kind] = d
		r.order = append(r.order, d)
	}
	return r
}

// DefaultRegistry returns the registry of the two exposed resources.
func DefaultRegistry() *Registry {
	return NewRegistry(UserResource(), TaskResource())
}

// Resolve returns the descriptor for a route token such as "user" or "tasks".
func (r *Registry) Resolve(token string) (*Descriptor, error) {
	d, ok := r.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, token)
	}
	return d, nil
}

// Get returns the descriptor of a kind, or nil.
func (r *Registry) Get(kind Kind) *Descriptor {
	return r.byKind[kind]
}

// RelationsOf returns the eager-loadable associations of a resource.
func (r *Registry) RelationsOf(d *Descriptor) []string {
	return d.RelationNames()
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Tables returns the table names of every registered resource.
func (r *Registry) Tables() []string {
	tables := make([]string, len(r.order))
	for i, d := range r.order {
		tables[i] = d.Table
	}
	return tables
}
