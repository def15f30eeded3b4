// Package registry holds the catalog of agent descriptors. Descriptors form a
// DAG through their child links; the registry rejects duplicates and cycles at
// registration time so instantiation never has to re-validate the graph.
package registry

import (
	"fmt"
	"sync"

	"github.com/petparlor/triage/core"
)

// Registry is a thread-safe descriptor catalog.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*core.Descriptor
	order       []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{descriptors: map[string]*core.Descriptor{}}
}

// Register adds a descriptor and its subtree to the catalog. It fails with
// core.ErrDuplicateName when any name in the subtree is already taken and with
// core.ErrCyclicDependency when the child links contain a cycle. On failure
// the registry is left unchanged.
func (r *Registry) Register(d *core.Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("%w: descriptor must have a name", core.ErrConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	collected := map[string]*core.Descriptor{}
	var names []string
	if err := r.walk(d, map[string]bool{}, collected, &names); err != nil {
		return err
	}

	for name, desc := range collected {
		r.descriptors[name] = desc
	}
	r.order = append(r.order, names...)
	return nil
}

// walk DFS-visits the subtree, detecting back-edges against the current path
// and duplicate names against both the registry and the subtree itself.
func (r *Registry) walk(
	d *core.Descriptor,
	path map[string]bool,
	collected map[string]*core.Descriptor,
	names *[]string,
) error {
	if path[d.Name] {
		return fmt.Errorf("%w: %q reaches itself through its children", core.ErrCyclicDependency, d.Name)
	}
	if prior, seen := collected[d.Name]; seen {
		if prior == d {
			// Shared child, already validated on another branch.
			return nil
		}
		return fmt.Errorf("%w: %q", core.ErrDuplicateName, d.Name)
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("%w: %q", core.ErrDuplicateName, d.Name)
	}

	path[d.Name] = true
	for _, child := range d.Children {
		if child == nil || child.Name == "" {
			return fmt.Errorf("%w: child of %q must have a name", core.ErrConfiguration, d.Name)
		}
		if err := r.walk(child, path, collected, names); err != nil {
			return err
		}
	}
	delete(path, d.Name)

	collected[d.Name] = d
	*names = append(*names, d.Name)
	return nil
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (*core.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAgent, name)
	}
	return d, nil
}

// Names lists every registered descriptor name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []*core.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}
