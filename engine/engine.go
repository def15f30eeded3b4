// Package engine runs the per-turn pipeline: route the utterance, consult the
// planned specialists through the runtime, aggregate their streams and
// synthesize one answer. It is the surface the chat transport talks to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/factory"
	"github.com/petparlor/triage/internal/util"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/registry"
	"github.com/petparlor/triage/router"
	"github.com/petparlor/triage/runtime"
	"github.com/petparlor/triage/session"
	"github.com/petparlor/triage/stream"
	"github.com/petparlor/triage/synthesis"
)

// Options configure the engine.
type Options struct {
	// TurnTimeout bounds one full turn. Expiry is treated as a transient
	// runtime failure.
	TurnTimeout time.Duration
	// DefaultAgent answers utterances no specialist matched.
	DefaultAgent string
	Logger       logging.Logger
}

// AgentInfo is one catalog entry for listing.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Engine orchestrates turns across sessions.
type Engine struct {
	registry *registry.Registry
	factory  *factory.Factory
	sessions *session.Store
	router   *router.Router
	synth    *synthesis.Synthesizer
	agg      *stream.Aggregator
	rt       runtime.Runtime
	opts     Options
}

// New wires the engine together.
func New(
	reg *registry.Registry,
	fac *factory.Factory,
	sessions *session.Store,
	rt *router.Router,
	synth *synthesis.Synthesizer,
	agentRT runtime.Runtime,
	optFns ...func(o *Options),
) *Engine {
	opts := Options{
		TurnTimeout:  60 * time.Second,
		DefaultAgent: "triage",
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		registry: reg,
		factory:  fac,
		sessions: sessions,
		router:   rt,
		synth:    synth,
		agg:      stream.New(opts.Logger),
		rt:       agentRT,
		opts:     opts,
	}
}

// HandleTurn processes one utterance and returns the finite element stream
// for it. Every turn yields at least one element; failures surface as canned
// messages, never as silence or a panic.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, utterance string) <-chan core.Element {
	out := make(chan core.Element, 8)
	go func() {
		defer close(out)
		for _, el := range e.runTurn(ctx, sessionID, utterance) {
			select {
			case <-ctx.Done():
				return
			case out <- el:
			}
		}
	}()
	return out
}

func (e *Engine) runTurn(ctx context.Context, sessionID, utterance string) []core.Element {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		e.opts.Logger.Error("session unavailable", "session_id", sessionID, "error", err)
		return []core.Element{core.TextElement{Text: synthesis.TransientErrorMessage}}
	}
	turn := sess.BeginTurn()

	tctx, cancel := context.WithTimeout(ctx, e.opts.TurnTimeout)
	defer cancel()

	plan := e.router.Route(sess, utterance)
	steps := plan.Steps
	if plan.Direct {
		steps = []router.Step{{Agent: e.opts.DefaultAgent, Query: utterance}}
	}
	e.opts.Logger.Info("turn started", "session_id", sess.ID, "turn", turn, "steps", len(steps), "direct", plan.Direct)

	state := map[string]any{}
	for k, v := range sess.AuthSnapshot() {
		state[k] = v
	}

	var contribs []synthesis.Contribution
	var failures int
	for _, step := range steps {
		if step.NeedsKey != "" {
			if _, ok := state[step.NeedsKey]; !ok {
				// Prerequisite never resolved; the dependent specialist must
				// not run with missing scope.
				return []core.Element{core.TextElement{Text: synthesis.InsufficientInformationMessage}}
			}
		}
		query, err := util.RenderTemplate(step.Query, state)
		if err != nil {
			e.opts.Logger.Error("query render failed", "agent", step.Agent, "error", err)
			failures++
			continue
		}

		res, err := e.consult(tctx, sess, step.Agent, query)
		if err != nil {
			if tctx.Err() != nil {
				e.opts.Logger.Warn("turn timed out", "session_id", sess.ID, "agent", step.Agent)
				return []core.Element{core.TextElement{Text: synthesis.TransientErrorMessage}}
			}
			e.opts.Logger.Warn("specialist failed", "agent", step.Agent, "error", err)
			if step.ResolvesKey != "" {
				return []core.Element{core.TextElement{Text: synthesis.InsufficientInformationMessage}}
			}
			failures++
			continue
		}

		sess.RecordConsulted(step.Agent)

		if step.ResolvesKey != "" {
			text := res.Text()
			if e.synth.IsDegenerate(text, utterance) {
				return []core.Element{core.TextElement{Text: synthesis.InsufficientInformationMessage}}
			}
			id, ok := util.ExtractID(text)
			if !ok {
				e.opts.Logger.Warn("resolver returned no id", "agent", step.Agent)
				return []core.Element{core.TextElement{Text: synthesis.InsufficientInformationMessage}}
			}
			state[step.ResolvesKey] = id
			sess.SetAuth(step.ResolvesKey, id)
			continue
		}

		sess.SetLastSpecialist(step.Agent)
		contribs = append(contribs, synthesis.Contribution{
			Specialist: step.Agent,
			Text:       res.Text(),
			Payloads:   res.Payloads(),
		})
	}

	if len(contribs) == 0 && failures > 0 {
		return []core.Element{core.TextElement{Text: synthesis.TransientErrorMessage}}
	}

	resp := e.synth.Synthesize(contribs, utterance)

	elements := make([]core.Element, 0, len(resp.Payloads)+1)
	for _, p := range resp.Payloads {
		elements = append(elements, core.PayloadElement{Schedule: p})
	}
	// A payload-only answer gets no trailing empty text element.
	if resp.Text != "" || len(elements) == 0 {
		elements = append(elements, core.TextElement{Text: resp.Text})
	}
	return elements
}

// consult runs one specialist. A HandleExpired gets exactly one
// re-instantiation; a RuntimeUnavailable gets exactly one retry with the same
// inputs.
func (e *Engine) consult(ctx context.Context, sess *core.Session, agent, query string) (stream.Result, error) {
	h, err := e.factory.GetOrCreate(ctx, agent)
	if err != nil {
		return stream.Result{}, err
	}

	res, err := e.runOnce(ctx, sess, h, query)
	if errors.Is(err, core.ErrHandleExpired) {
		e.factory.Invalidate(agent)
		h, err = e.factory.GetOrCreate(ctx, agent)
		if err != nil {
			return stream.Result{}, fmt.Errorf("%w: re-instantiation failed: %v", core.ErrRuntimeUnavailable, err)
		}
		res, err = e.runOnce(ctx, sess, h, query)
		if errors.Is(err, core.ErrHandleExpired) {
			return stream.Result{}, fmt.Errorf("%w: handle expired twice for %s", core.ErrRuntimeUnavailable, agent)
		}
	}
	if errors.Is(err, core.ErrRuntimeUnavailable) && ctx.Err() == nil {
		e.opts.Logger.Warn("runtime unavailable, retrying once", "agent", agent)
		res, err = e.runOnce(ctx, sess, h, query)
	}
	return res, err
}

func (e *Engine) runOnce(ctx context.Context, sess *core.Session, h *core.Handle, query string) (stream.Result, error) {
	result, err := e.rt.SubmitAndRun(ctx, sess.ThreadID, h.RuntimeID, query)
	if err != nil {
		return stream.Result{}, err
	}
	if result.Status == runtime.RunFailed {
		return stream.Result{}, fmt.Errorf("%w: run failed: %s", core.ErrRuntimeUnavailable, result.ErrorMessage)
	}
	chunks, errs := e.rt.Stream(ctx, sess.ThreadID, h.RuntimeID)
	return e.agg.Collect(ctx, chunks, errs)
}

// SetAuth stores an auth-context value on the session, creating the session
// if needed. The transport calls this when credentials arrive.
func (e *Engine) SetAuth(ctx context.Context, sessionID, key, value string) error {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.SetAuth(key, value)
	return nil
}

// EndSession tears the session down; thread release is best-effort.
func (e *Engine) EndSession(ctx context.Context, sessionID string) {
	e.sessions.End(ctx, sessionID)
}

// Agents lists the registered catalog.
func (e *Engine) Agents() []AgentInfo {
	all := e.registry.All()
	out := make([]AgentInfo, 0, len(all))
	for _, d := range all {
		out = append(out, AgentInfo{Name: d.Name, Description: d.Description})
	}
	return out
}
