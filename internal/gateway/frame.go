// Package gateway speaks the agent-orchestration gateway's wire protocol: a
// JSON frame envelope over a persistent WebSocket, with an HTTP recent-events
// read used as the polling fallback.
package gateway

import (
	"encoding/json"
	"fmt"
)

// Envelope discriminator values.
const (
	TypeEvent    = "event"
	TypeResponse = "response"
	TypeError    = "error"
)

// Gateway event names the mirror knows about. Anything else is carried as an
// opaque payload and left to the normalizer to ignore.
const (
	EventAgent            = "agent"
	EventChat             = "chat"
	EventExecStarted      = "exec.started"
	EventExecOutput       = "exec.output"
	EventExecCompleted    = "exec.completed"
	EventHealth           = "health"
	EventTick             = "tick"
	EventConnectChallenge = "connect.challenge"
)

// Frame is one untrusted message unit from the gateway transport. Frames are
// ephemeral: they are redacted and normalized on arrival and never stored.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	ID      string          `json:"id,omitempty"`
	Payload map[string]any  `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// IsEvent reports whether the frame carries a gateway event (as opposed to a
// request/response exchange or a transport-level error).
func (f *Frame) IsEvent() bool { return f.Type == TypeEvent }

// SessionKey returns the session key from the payload bag, or "".
func (f *Frame) SessionKey() string {
	key, _ := f.Payload["sessionKey"].(string)
	return key
}

// DecodeFrame parses a raw transport message into a frame envelope.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type discriminator")
	}
	return &f, nil
}
