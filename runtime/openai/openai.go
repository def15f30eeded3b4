// Package openai implements the agent runtime on the OpenAI Chat Completions
// API. Agent definitions and conversation threads live in process memory; the
// remote API only sees fully rendered message lists, so no server-side state
// has to be reconciled or garbage collected.
package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/runtime"
)

// Options configure the OpenAI runtime adapter.
type Options struct {
	Temperature         float64
	MaxCompletionTokens int64
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
	// pending is the agent of the last submitted run; its reply has not been
	// streamed yet.
	pending string
}

// Runtime hosts agents on top of the Chat Completions API.
type Runtime struct {
	client *openai.Client
	opts   Options

	mu      sync.Mutex
	agents  map[string]*agent
	threads map[string]*thread
}

var _ runtime.Runtime = (*Runtime)(nil)

// New creates a runtime using the default client (API key from environment).
func New(optFns ...func(o *Options)) *Runtime {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a runtime from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
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

// SubmitAndRun implements runtime.Runtime. The message is appended to the
// thread; the completion itself is produced lazily by Stream so tokens are
// only generated once.
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

// Stream implements runtime.Runtime. It executes the pending run as a
// streaming completion, forwarding deltas as chunks and appending the
// assembled reply to the thread history.
func (r *Runtime) Stream(ctx context.Context, threadID, agentID string) (<-chan runtime.Chunk, <-chan error) {
	out := make(chan runtime.Chunk, 32)
	errCh := make(chan error, 1)

	r.mu.Lock()
	ag, agOK := r.agents[agentID]
	t, thOK := r.threads[threadID]
	var params openai.ChatCompletionNewParams
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

		stream := r.client.Chat.Completions.NewStreaming(ctx, params)
		var full []byte
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				full = append(full, ch.Delta.Content...)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- runtime.Chunk{Text: ch.Delta.Content}:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("%w: openai streaming: %v", core.ErrRuntimeUnavailable, err)
			return
		}

		r.mu.Lock()
		t.history = append(t.history, message{role: "assistant", text: string(full)})
		t.pending = ""
		r.mu.Unlock()
	}()
	return out, errCh
}

func (r *Runtime) buildParams(ag *agent, t *thread) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(t.history)+1)
	messages = append(messages, openai.SystemMessage(ag.system))
	for _, m := range t.history {
		switch m.role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.text))
		default:
			messages = append(messages, openai.UserMessage(m.text))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               ag.spec.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
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
