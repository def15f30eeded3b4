package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/petparlor/triage/core"
)

// MockRuntime is a lightweight in-memory Runtime useful for tests & examples.
// Responses are scripted per agent name; unscripted agents echo a canned
// reply. All methods are safe for concurrent use.
type MockRuntime struct {
	mu          sync.Mutex
	agents      map[string]AgentSpec // runtime id -> spec
	agentIDs    map[string]string    // agent name -> runtime id
	threads     map[string]bool
	lastMessage map[string]string   // thread id -> last submitted message
	lastAgent   map[string]string   // thread id -> agent id of last run
	scripts     map[string][]Chunk  // agent name -> chunks per run
	createErr   map[string]error    // agent name -> error on CreateAgent
	runErr      map[string]error    // agent name -> error on SubmitAndRun
	expired     map[string]bool     // runtime id -> handle expired
	CreateCalls map[string]int      // agent name -> CreateAgent invocations
	Released    []string            // released thread ids in order
	releaseErr  error
}

// NewMockRuntime constructs an empty mock runtime.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		agents:      map[string]AgentSpec{},
		agentIDs:    map[string]string{},
		threads:     map[string]bool{},
		lastMessage: map[string]string{},
		lastAgent:   map[string]string{},
		scripts:     map[string][]Chunk{},
		createErr:   map[string]error{},
		runErr:      map[string]error{},
		expired:     map[string]bool{},
		CreateCalls: map[string]int{},
	}
}

// Script registers the chunks streamed for every run of the named agent.
func (m *MockRuntime) Script(agentName string, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := make([]Chunk, len(chunks))
	for i, c := range chunks {
		cs[i] = Chunk{Text: c}
	}
	m.scripts[agentName] = cs
}

// FailCreate makes CreateAgent fail for the named agent.
func (m *MockRuntime) FailCreate(agentName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr[agentName] = err
}

// FailRun makes SubmitAndRun fail for the named agent.
func (m *MockRuntime) FailRun(agentName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runErr[agentName] = err
}

// ClearFailRun removes a scripted run failure.
func (m *MockRuntime) ClearFailRun(agentName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runErr, agentName)
}

// ExpireHandle marks a runtime id as invalidated; the next run against it
// fails with core.ErrHandleExpired.
func (m *MockRuntime) ExpireHandle(runtimeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired[runtimeID] = true
}

// FailRelease makes ReleaseThread return err (threads are still evicted by
// the session store regardless).
func (m *MockRuntime) FailRelease(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseErr = err
}

// LastMessage returns the most recent message submitted to the thread.
func (m *MockRuntime) LastMessage(threadID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessage[threadID]
}

// AgentID returns the runtime id assigned to the named agent, if created.
func (m *MockRuntime) AgentID(agentName string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.agentIDs[agentName]
	return id, ok
}

// CreateAgent implements Runtime.
func (m *MockRuntime) CreateAgent(_ context.Context, spec AgentSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls[spec.Name]++
	if err := m.createErr[spec.Name]; err != nil {
		return "", err
	}
	id := "agent-" + uuid.NewString()
	m.agents[id] = spec
	m.agentIDs[spec.Name] = id
	return id, nil
}

// CreateThread implements Runtime.
func (m *MockRuntime) CreateThread(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "thread-" + uuid.NewString()
	m.threads[id] = true
	return id, nil
}

// GetThread implements Runtime.
func (m *MockRuntime) GetThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.threads[threadID] {
		return fmt.Errorf("%w: thread %s", core.ErrRuntimeUnavailable, threadID)
	}
	return nil
}

// SubmitAndRun implements Runtime.
func (m *MockRuntime) SubmitAndRun(_ context.Context, threadID, agentID, message string) (RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired[agentID] {
		return RunResult{Status: RunFailed}, core.ErrHandleExpired
	}
	spec, ok := m.agents[agentID]
	if !ok {
		return RunResult{Status: RunFailed}, fmt.Errorf("%w: agent %s", core.ErrHandleExpired, agentID)
	}
	if err := m.runErr[spec.Name]; err != nil {
		return RunResult{Status: RunFailed, ErrorMessage: err.Error()}, err
	}
	m.lastMessage[threadID] = message
	m.lastAgent[threadID] = agentID
	return RunResult{Status: RunCompleted}, nil
}

// Stream implements Runtime; emits the scripted chunks (or a canned echo of
// the last message) then closes.
func (m *MockRuntime) Stream(ctx context.Context, threadID, agentID string) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	spec := m.agents[agentID]
	chunks := m.scripts[spec.Name]
	if chunks == nil {
		chunks = []Chunk{{Text: fmt.Sprintf("Mock response to: %s", m.lastMessage[threadID])}}
	}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- c:
			}
		}
	}()
	return out, errCh
}

// ReleaseThread implements Runtime.
func (m *MockRuntime) ReleaseThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, threadID)
	if m.releaseErr != nil {
		return m.releaseErr
	}
	delete(m.threads, threadID)
	return nil
}
