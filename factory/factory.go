// Package factory instantiates agents on the runtime and caches their
// handles. Creation is an expensive remote call, so each descriptor is
// materialized at most once per process; concurrent requests for the same
// agent coalesce onto a single in-flight creation.
package factory

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/registry"
	"github.com/petparlor/triage/runtime"
	"github.com/petparlor/triage/tool"
)

// Options configure the factory.
type Options struct {
	Logger logging.Logger
}

// Factory creates and caches agent handles.
type Factory struct {
	registry *registry.Registry
	rt       runtime.Runtime
	provider tool.Provider
	model    string
	logger   logging.Logger

	mu    sync.RWMutex
	cache map[string]*core.Handle
	group singleflight.Group
}

// New creates a factory. The model deployment name is mandatory; an empty
// value is a startup configuration fault, not something to discover on the
// first turn.
func New(
	reg *registry.Registry,
	rt runtime.Runtime,
	provider tool.Provider,
	model string,
	optFns ...func(o *Options),
) (*Factory, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: model deployment name is not set", core.ErrConfiguration)
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Factory{
		registry: reg,
		rt:       rt,
		provider: provider,
		model:    model,
		logger:   opts.Logger,
		cache:    map[string]*core.Handle{},
	}, nil
}

// GetOrCreate returns the cached handle for name, creating the agent (and its
// children, depth-first) on first use. Concurrent callers share one creation.
func (f *Factory) GetOrCreate(ctx context.Context, name string) (*core.Handle, error) {
	f.mu.RLock()
	h, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := f.group.Do(name, func() (any, error) {
		// Re-check under the flight: a racing caller may have populated the
		// cache between the read above and entering the group.
		f.mu.RLock()
		h, ok := f.cache[name]
		f.mu.RUnlock()
		if ok {
			return h, nil
		}

		d, err := f.registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		return f.instantiate(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Handle), nil
}

// instantiate creates the descriptor's subtree bottom-up. Children are
// created (or fetched) first so the parent never exists without them.
func (f *Factory) instantiate(ctx context.Context, d *core.Descriptor) (*core.Handle, error) {
	children := make([]*core.Handle, 0, len(d.Children))
	for _, child := range d.Children {
		ch, err := f.GetOrCreate(ctx, child.Name)
		if err != nil {
			return nil, fmt.Errorf("create child %q of %q: %w", child.Name, d.Name, err)
		}
		children = append(children, ch)
	}

	bindings, err := tool.Resolve(f.provider, d.Tools)
	if err != nil {
		return nil, err
	}

	runtimeID, err := f.rt.CreateAgent(ctx, runtime.AgentSpec{
		Model:        f.model,
		Name:         d.Name,
		Description:  d.Description,
		Instructions: d.Instructions,
		Tools:        bindings,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent %q: %w", d.Name, err)
	}

	h := &core.Handle{
		Descriptor: d,
		RuntimeID:  runtimeID,
		Tools:      bindings,
		Children:   children,
	}

	f.mu.Lock()
	f.cache[d.Name] = h
	f.mu.Unlock()

	f.logger.Info("agent created", "agent", d.Name, "runtime_id", runtimeID, "tools", len(bindings))
	return h, nil
}

// Invalidate drops the cached handle so the next GetOrCreate re-creates the
// agent. Used when the runtime reports the handle expired.
func (f *Factory) Invalidate(name string) {
	f.mu.Lock()
	_, had := f.cache[name]
	delete(f.cache, name)
	f.mu.Unlock()
	if had {
		f.logger.Warn("agent handle invalidated", "agent", name)
	}
}

// Cached reports whether a handle for name is currently cached.
func (f *Factory) Cached(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.cache[name]
	return ok
}
