// Package anthropic implements the agent runtime on the Anthropic Messages
// API. Threads are held in process memory, mirroring the openai adapter.
package anthropic

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/runtime"
)

// Options configure the Anthropic runtime adapter.
type Options struct {
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

type agent struct {
	spec   runtime.AgentSpec
	system string
}

type message struct {
	role string // "user" or "assistant"
	text string
}

type thread struct {
	history []message
	pending string
}

// Runtime hosts agents on top of the Messages API.
type Runtime struct {
	client *anthropic.Client
	opts   Options

	mu      sync.Mutex
	agents  map[string]*agent
	threads map[string]*thread
}

var _ runtime.Runtime = (*Runtime)(nil)

// New creates a runtime using the official client. The API key falls back to
// the environment when not set in Options.
func New(optFns ...func(o *Options)) *Runtime {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return newRuntime(&client, opts)
}

// NewFromClient creates a runtime from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Runtime {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newRuntime(client, opts)
}

func defaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

func newRuntime(client *anthropic.Client, opts Options) *Runtime {
	return &Runtime{
		client:  client,
		opts:    opts,
		agents:  map[string]*agent{},
		threads: map[string]*thread{},
	}
}

// CreateAgent implements runtime.Runtime.
func (r *Runtime) CreateAgent(_ context.Context, spec runtime.AgentSpec) (string, error) {
	if spec.Model == "" {
		return "", fmt.Errorf("%w: agent %q has no model deployment", core.ErrConfiguration, spec.Name)
	}
	id := "asst_" + uuid.NewString()
	r.mu.Lock()
	r.agents[id] = &agent{spec: spec, system: spec.SystemPrompt()}
	r.mu.Unlock()
	return id, nil
}

// CreateThread implements runtime.Runtime.
func (r *Runtime) CreateThread(_ context.Context) (string, error) {
	id := "thread_" + uuid.NewString()
	r.mu.Lock()
	r.threads[id] = &thread{}
	r.mu.Unlock()
	return id, nil
}

// GetThread implements runtime.Runtime.
func (r *Runtime) GetThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[threadID]; !ok {
		return fmt.Errorf("%w: unknown thread %s", core.ErrRuntimeUnavailable, threadID)
	}
	return nil
}

// SubmitAndRun implements runtime.Runtime. The completion is produced by
// Stream, matching the openai adapter.
func (r *Runtime) SubmitAndRun(_ context.Context, threadID, agentID, msg string) (runtime.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; !ok {
		return runtime.RunResult{Status: runtime.RunFailed}, fmt.Errorf("%w: agent %s", core.ErrHandleExpired, agentID)
	}
	t, ok := r.threads[threadID]
	if !ok {
		return runtime.RunResult{Status: runtime.RunFailed}, fmt.Errorf("%w: unknown thread %s", core.ErrRuntimeUnavailable, threadID)
	}
	t.history = append(t.history, message{role: "user", text: msg})
	t.pending = agentID
	return runtime.RunResult{Status: runtime.RunInProgress}, nil
}

// Stream implements runtime.Runtime. The Messages API call is non-streaming;
// the reply is emitted as a single chunk per content block.
func (r *Runtime) Stream(ctx context.Context, threadID, agentID string) (<-chan runtime.Chunk, <-chan error) {
	out := make(chan runtime.Chunk, 4)
	errCh := make(chan error, 1)

	r.mu.Lock()
	ag, agOK := r.agents[agentID]
	t, thOK := r.threads[threadID]
	var params anthropic.MessageNewParams
	if agOK && thOK {
		params = r.buildParams(ag, t)
	}
	r.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)
		if !agOK {
			errCh <- fmt.Errorf("%w: agent %s", core.ErrHandleExpired, agentID)
			return
		}
		if !thOK {
			errCh <- fmt.Errorf("%w: unknown thread %s", core.ErrRuntimeUnavailable, threadID)
			return
		}

		resp, err := r.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("%w: anthropic api: %v", core.ErrRuntimeUnavailable, err)
			return
		}

		var full string
		for _, block := range resp.Content {
			if block.Type != "text" {
				continue
			}
			text := block.AsText().Text
			if text == "" {
				continue
			}
			full += text
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- runtime.Chunk{Text: text}:
			}
		}

		r.mu.Lock()
		t.history = append(t.history, message{role: "assistant", text: full})
		t.pending = ""
		r.mu.Unlock()
	}()
	return out, errCh
}

func (r *Runtime) buildParams(ag *agent, t *thread) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(t.history))
	for _, m := range t.history {
		switch m.role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.text)))
		}
	}
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(ag.spec.Model),
		Messages:    messages,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: ag.system}},
	}
}

// ReleaseThread implements runtime.Runtime.
func (r *Runtime) ReleaseThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[threadID]; !ok {
		return fmt.Errorf("%w: unknown thread %s", core.ErrRuntimeUnavailable, threadID)
	}
	delete(r.threads, threadID)
	return nil
}
