// Package events defines the canonical, redacted event representation shared
// by the normalizer, the graph store, and the mirror service. Events are
// created once and never mutated afterwards.
package events

import (
	"time"

	"github.com/salexandr0s/scry/internal/redact"
)

// Kind is the fixed taxonomy of canonical events.
type Kind string

const (
	KindChat            Kind = "chat"
	KindTurnStart       Kind = "turn-start"
	KindTurnEnd         Kind = "turn-end"
	KindToolStart       Kind = "tool-start"
	KindToolEnd         Kind = "tool-end"
	KindSpawn           Kind = "spawn"
	KindAssistantOutput Kind = "assistant-output"
)

// Transport sources an event can arrive from.
const (
	SourceWebSocket = "websocket"
	SourcePoll      = "poll"
)

// Event is a normalized gateway event. Payload holds only allow-listed
// fields; raw tool arguments and tool results never reach this type.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"sessionId"`
	SessionKey string         `json:"sessionKey"`
	AgentID    string         `json:"agentId"`
	Source     string         `json:"source"`
	Payload    redact.Payload `json:"payload"`
}
