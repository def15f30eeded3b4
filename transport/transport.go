// Package transport exposes the engine to chat clients. The websocket server
// speaks a small JSON protocol: clients send messages and auth updates, the
// server streams back text and schedule elements per turn.
package transport

import (
	"context"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/engine"
)

// ChatEngine is the engine surface the transport needs.
type ChatEngine interface {
	HandleTurn(ctx context.Context, sessionID, utterance string) <-chan core.Element
	SetAuth(ctx context.Context, sessionID, key, value string) error
	EndSession(ctx context.Context, sessionID string)
	Agents() []engine.AgentInfo
}

// Inbound message types.
const (
	TypeMessage = "message"
	TypeAuth    = "auth"
	TypeEnd     = "end"
)

// Outbound message types.
const (
	TypeText     = "text"
	TypeSchedule = "schedule"
	TypeDone     = "done"
	TypeError    = "error"
)

// Inbound is one client frame.
type Inbound struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Text      string            `json:"text,omitempty"`
	Auth      map[string]string `json:"auth,omitempty"`
}

// Outbound is one server frame.
type Outbound struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Schedule *core.Schedule `json:"schedule,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// outboundFor converts an element to its wire frame.
func outboundFor(el core.Element) Outbound {
	switch e := el.(type) {
	case core.PayloadElement:
		return Outbound{Type: TypeSchedule, Schedule: e.Schedule}
	default:
		return Outbound{Type: TypeText, Text: core.ElementText(el)}
	}
}
