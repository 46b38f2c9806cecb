package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidRegistry = errors.New("invalid service registry")

// Registry maps service names to opaque upstream targets. It is built once
// and never mutated afterwards, so a single value can be shared freely.
type Registry struct {
	services map[string]string
}

// NewRegistry copies services into a new Registry. Names and targets must be
// non-empty.
func NewRegistry(services map[string]string) (Registry, error) {
	copied := make(map[string]string, len(services))
	for name, target := range services {
		if strings.TrimSpace(name) == "" {
			return Registry{}, fmt.Errorf("%w: empty service name", ErrInvalidRegistry)
		}
		if strings.TrimSpace(target) == "" {
			return Registry{}, fmt.Errorf("%w: service %q has no target", ErrInvalidRegistry, name)
		}
		copied[name] = target
	}
	return Registry{services: copied}, nil
}

// MustRegistry is NewRegistry for static tables known to be valid.
func MustRegistry(services map[string]string) Registry {
	r, err := NewRegistry(services)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Registry) Lookup(name string) (string, bool) {
	target, ok := r.services[name]
	return target, ok
}

func (r Registry) Len() int {
	return len(r.services)
}

// Names returns the registered service names in lexical order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a copy of the underlying table.
func (r Registry) Entries() map[string]string {
	out := make(map[string]string, len(r.services))
	for k, v := range r.services {
		out[k] = v
	}
	return out
}
