package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/petparlor/triage/core"
)

// BreakerRuntime wraps a Runtime with a circuit breaker so a flapping runtime
// fails fast instead of burning the per-turn timeout on every session. An
// open circuit is reported as core.ErrRuntimeUnavailable, which the engine
// already turns into its transient-error message.
//
// Handle expiry is not counted as a failure: it is an application-level
// signal, not a transport fault.
type BreakerRuntime struct {
	inner Runtime
	cb    *gobreaker.CircuitBreaker[any]
}

// BreakerOptions tune the circuit breaker.
type BreakerOptions struct {
	// ConsecutiveFailures before the circuit opens.
	ConsecutiveFailures uint32
}

// WithBreaker wraps rt with a circuit breaker.
func WithBreaker(rt Runtime, optFns ...func(o *BreakerOptions)) *BreakerRuntime {
	opts := BreakerOptions{ConsecutiveFailures: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: "agent-runtime",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrHandleExpired)
		},
	})
	return &BreakerRuntime{inner: rt, cb: cb}
}

func (b *BreakerRuntime) execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return v, fmt.Errorf("%w: circuit open", core.ErrRuntimeUnavailable)
	}
	return v, err
}

// CreateAgent implements Runtime.
func (b *BreakerRuntime) CreateAgent(ctx context.Context, spec AgentSpec) (string, error) {
	v, err := b.execute(func() (any, error) { return b.inner.CreateAgent(ctx, spec) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CreateThread implements Runtime.
func (b *BreakerRuntime) CreateThread(ctx context.Context) (string, error) {
	v, err := b.execute(func() (any, error) { return b.inner.CreateThread(ctx) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetThread implements Runtime.
func (b *BreakerRuntime) GetThread(ctx context.Context, threadID string) error {
	_, err := b.execute(func() (any, error) { return nil, b.inner.GetThread(ctx, threadID) })
	return err
}

// SubmitAndRun implements Runtime.
func (b *BreakerRuntime) SubmitAndRun(ctx context.Context, threadID, agentID, message string) (RunResult, error) {
	v, err := b.execute(func() (any, error) { return b.inner.SubmitAndRun(ctx, threadID, agentID, message) })
	if err != nil {
		return RunResult{Status: RunFailed}, err
	}
	return v.(RunResult), nil
}

// Stream implements Runtime. The breaker guards stream establishment; chunk
// delivery itself is not re-counted.
func (b *BreakerRuntime) Stream(ctx context.Context, threadID, agentID string) (<-chan Chunk, <-chan error) {
	type pair struct {
		chunks <-chan Chunk
		errs   <-chan error
	}
	v, err := b.execute(func() (any, error) {
		chunks, errs := b.inner.Stream(ctx, threadID, agentID)
		return pair{chunks: chunks, errs: errs}, nil
	})
	if err != nil {
		out := make(chan Chunk)
		close(out)
		errCh := make(chan error, 1)
		errCh <- err
		close(errCh)
		return out, errCh
	}
	p := v.(pair)
	return p.chunks, p.errs
}

// ReleaseThread implements Runtime. Release is best-effort cleanup and
// bypasses the breaker so teardown still reaches the runtime while the
// circuit is open.
func (b *BreakerRuntime) ReleaseThread(ctx context.Context, threadID string) error {
	return b.inner.ReleaseThread(ctx, threadID)
}
