// Package runtime defines the language-model agent runtime collaborator: the
// external service that hosts agents, owns conversation threads and produces
// (streamed) responses. The engine only ever talks to the Runtime interface;
// concrete adapters live in the openai and anthropic subpackages.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/petparlor/triage/core"
)

// AgentSpec is the definition submitted on agent creation.
type AgentSpec struct {
	Model        string
	Name         string
	Description  string
	Instructions string
	Tools        []core.ToolBinding
}

// SystemPrompt renders the full system prompt for the agent: its instructions
// followed by the API documents of every bound tool, so the model can answer
// resource questions from the documented endpoints.
func (s AgentSpec) SystemPrompt() string {
	if len(s.Tools) == 0 {
		return s.Instructions
	}
	var b strings.Builder
	b.WriteString(s.Instructions)
	b.WriteString("\n\nYou can consult the following API specifications:")
	for _, t := range s.Tools {
		b.WriteString(fmt.Sprintf("\n\n### %s (%s)\n", t.Ref.Name, t.Ref.APIResource))
		if t.Description != "" {
			b.WriteString(t.Description)
			b.WriteString("\n")
		}
		if doc, err := json.Marshal(t.Document); err == nil {
			b.Write(doc)
		}
	}
	return b.String()
}

// RunStatus reports the terminal (or current) state of a run.
type RunStatus string

const (
	// RunCompleted means the run finished and produced output.
	RunCompleted RunStatus = "completed"
	// RunFailed means the run terminated without usable output.
	RunFailed RunStatus = "failed"
	// RunInProgress means the run has not reached a terminal state yet.
	RunInProgress RunStatus = "in_progress"
)

// RunResult is the outcome of submitting a message and executing a run.
type RunResult struct {
	Status       RunStatus
	ErrorMessage string
}

// Chunk is one increment of streamed content. Chunks are plain text; the
// streaming aggregator decides whether a chunk is a structured payload.
type Chunk struct {
	Text string
}

// Runtime is the agent runtime collaborator. Every method is a suspension
// point: implementations must honor ctx cancellation and never block beyond
// it.
//
// Error contract: transport-level failures are reported as (wrapped)
// core.ErrRuntimeUnavailable; an invalidated agent id is reported as
// core.ErrHandleExpired.
type Runtime interface {
	// CreateAgent registers an agent definition and returns its runtime id.
	// This is an expensive remote call; callers cache the result per process.
	CreateAgent(ctx context.Context, spec AgentSpec) (string, error)

	// CreateThread allocates a new conversation thread owned by the runtime.
	CreateThread(ctx context.Context) (string, error)

	// GetThread verifies a thread id still resolves.
	GetThread(ctx context.Context, threadID string) error

	// SubmitAndRun appends a user message to the thread and executes a run
	// with the given agent.
	SubmitAndRun(ctx context.Context, threadID, agentID, message string) (RunResult, error)

	// Stream returns the content chunks produced for the last run on the
	// thread. The sequence is finite and not restartable.
	Stream(ctx context.Context, threadID, agentID string) (<-chan Chunk, <-chan error)

	// ReleaseThread frees the thread. Callers treat failures as best-effort.
	ReleaseThread(ctx context.Context, threadID string) error
}
