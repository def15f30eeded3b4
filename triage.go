// Package triage provides a high-level façade over the orchestration engine:
// routing user utterances to domain specialists, maintaining session state,
// synthesizing multi-agent answers and streaming the result. Most
// applications interact with this package by:
//  1. Creating a Triage via New() with a Runtime adapter (or the mock)
//  2. Registering descriptors (the built-in catalog or their own)
//  3. Calling HandleTurn per user message and EndSession on teardown
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. Defaults are safe for local development and testing;
// production deployments supply a real runtime adapter, an on-disk tool
// provider and a structured logger.
package triage

import (
	"context"

	"github.com/petparlor/triage/agents"
	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/engine"
	"github.com/petparlor/triage/factory"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/registry"
	"github.com/petparlor/triage/router"
	"github.com/petparlor/triage/runtime"
	"github.com/petparlor/triage/session"
	"github.com/petparlor/triage/synthesis"
	"github.com/petparlor/triage/tool"
)

// Options configure the Triage instance.
type Options struct {
	// Runtime hosts the agents. Defaults to the in-memory mock, which is
	// only suitable for tests and local experiments.
	Runtime runtime.Runtime

	// ToolProvider resolves API resource documents. Defaults to an empty
	// static provider; production wires tool.NewFileProvider.
	ToolProvider tool.Provider

	// Model is the model deployment identifier used for every agent.
	Model string

	// Intents is the routing table. Defaults to the catalog's table.
	Intents []router.Intent

	// Catalog is the descriptor tree registered at construction. Defaults to
	// the built-in catalog; set to nil (and register manually) to opt out.
	Catalog *core.Descriptor

	// Synthesizer options (echo slack, clarification patterns).
	SynthesizerOptions []func(o *synthesis.Options)

	// Engine options (turn timeout, default agent).
	EngineOptions []func(o *engine.Options)

	Logger logging.Logger
}

// Triage is the high-level façade aggregating registry, factory, sessions
// and engine.
type Triage struct {
	registry *registry.Registry
	engine   *engine.Engine
	sessions *session.Store
}

// New creates a Triage instance with optional overrides.
func New(optFns ...func(o *Options)) (*Triage, error) {
	opts := Options{
		Runtime:      runtime.NewMockRuntime(),
		ToolProvider: &tool.StaticProvider{},
		Model:        "gpt-4o-mini",
		Intents:      agents.Intents(),
		Catalog:      agents.Catalog(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New()
	if opts.Catalog != nil {
		if err := reg.Register(opts.Catalog); err != nil {
			return nil, err
		}
	}

	fac, err := factory.New(reg, opts.Runtime, opts.ToolProvider, opts.Model, func(o *factory.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	synthOpts := append([]func(o *synthesis.Options){func(o *synthesis.Options) {
		o.Logger = opts.Logger
	}}, opts.SynthesizerOptions...)
	synth, err := synthesis.New(synthOpts...)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(opts.Runtime, opts.Logger)
	rtr := router.New(opts.Intents, func(o *router.Options) { o.Logger = opts.Logger })

	engOpts := append([]func(o *engine.Options){func(o *engine.Options) {
		o.Logger = opts.Logger
		o.DefaultAgent = agents.TriageName
	}}, opts.EngineOptions...)

	eng := engine.New(reg, fac, sessions, rtr, synth, opts.Runtime, engOpts...)

	return &Triage{registry: reg, engine: eng, sessions: sessions}, nil
}

// Register adds a descriptor tree beyond the built-in catalog.
func (t *Triage) Register(d *core.Descriptor) error { return t.registry.Register(d) }

// HandleTurn processes one utterance, returning its finite element stream.
func (t *Triage) HandleTurn(ctx context.Context, sessionID, utterance string) <-chan core.Element {
	return t.engine.HandleTurn(ctx, sessionID, utterance)
}

// HandleTurnSync drains the turn's element stream into a slice.
func (t *Triage) HandleTurnSync(ctx context.Context, sessionID, utterance string) []core.Element {
	var out []core.Element
	for el := range t.engine.HandleTurn(ctx, sessionID, utterance) {
		out = append(out, el)
	}
	return out
}

// SetAuth stores an auth-context value on the session.
func (t *Triage) SetAuth(ctx context.Context, sessionID, key, value string) error {
	return t.engine.SetAuth(ctx, sessionID, key, value)
}

// EndSession releases the session's runtime thread and evicts it.
func (t *Triage) EndSession(ctx context.Context, sessionID string) {
	t.engine.EndSession(ctx, sessionID)
}

// Agents lists the registered catalog.
func (t *Triage) Agents() []engine.AgentInfo { return t.engine.Agents() }

// Engine exposes the underlying engine, e.g. for mounting a transport.
func (t *Triage) Engine() *engine.Engine { return t.engine }
