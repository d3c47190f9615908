// Package normalize turns raw gateway frames into canonical events and
// projects those events onto graph mutations. Heartbeat and handshake
// frames, per-chunk exec output, and unknown agent sub-events all normalize
// to nothing: the pipeline drops them silently instead of erroring.
package normalize

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/salexandr0s/scry/internal/events"
	"github.com/salexandr0s/scry/internal/gateway"
	"github.com/salexandr0s/scry/internal/redact"
)

// UnknownAgent is the agent id assigned when the session key carries none.
const UnknownAgent = "unknown"

// derivedKeyLen bounds the session-key prefix used for derived session ids,
// so repeated events on the same untracked key collapse to one id.
const derivedKeyLen = 16

// Normalize converts a raw frame into a canonical event, or nil for frames
// that carry no graph-relevant information.
func Normalize(frame *gateway.Frame, source string) *events.Event {
	if frame == nil || !frame.IsEvent() {
		return nil
	}

	var kind events.Kind
	switch frame.Event {
	case gateway.EventHealth, gateway.EventTick, gateway.EventConnectChallenge, gateway.EventExecOutput:
		return nil
	case gateway.EventChat:
		kind = events.KindChat
	case gateway.EventExecStarted:
		kind = events.KindToolStart
	case gateway.EventExecCompleted:
		kind = events.KindToolEnd
	case gateway.EventAgent:
		var ok bool
		kind, ok = agentKind(frame.Payload)
		if !ok {
			return nil
		}
	default:
		return nil
	}

	sessionKey := frame.SessionKey()
	return &events.Event{
		ID:         gonanoid.Must(12),
		Kind:       kind,
		Timestamp:  frameTimestamp(frame.Payload),
		SessionID:  sessionID(frame.Payload, sessionKey),
		SessionKey: sessionKey,
		AgentID:    agentID(sessionKey),
		Source:     source,
		Payload:    redact.Redact(frame.Payload, sessionKey),
	}
}

// agentKind resolves the canonical kind for an "agent" frame from its two
// independent payload discriminators: stream (lifecycle/assistant) or type
// (tool_use/tool_result).
func agentKind(payload map[string]any) (events.Kind, bool) {
	stream, _ := payload["stream"].(string)
	switch stream {
	case "lifecycle":
		phase, _ := payload["phase"].(string)
		switch phase {
		case "start":
			return events.KindTurnStart, true
		case "end":
			return events.KindTurnEnd, true
		}
		return "", false
	case "assistant":
		return events.KindAssistantOutput, true
	}

	typ, _ := payload["type"].(string)
	switch typ {
	case "tool_use":
		return events.KindToolStart, true
	case "tool_result":
		return events.KindToolEnd, true
	}
	return "", false
}

func frameTimestamp(payload map[string]any) time.Time {
	if ms, ok := payload["ts"].(float64); ok && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Now().UTC()
}

// sessionID prefers the payload's explicit id and otherwise derives a
// deterministic one from a truncated session key.
func sessionID(payload map[string]any, sessionKey string) string {
	if id, ok := payload["sessionId"].(string); ok && id != "" {
		return id
	}
	if sessionKey == "" {
		return "session-" + UnknownAgent
	}
	key := sessionKey
	if len(key) > derivedKeyLen {
		key = key[:derivedKeyLen]
	}
	return "session-" + key
}

// agentID extracts the session key's agent prefix (the part before the
// first colon).
func agentID(sessionKey string) string {
	if sessionKey == "" {
		return UnknownAgent
	}
	for i := 0; i < len(sessionKey); i++ {
		if sessionKey[i] == ':' {
			if i == 0 {
				return UnknownAgent
			}
			return sessionKey[:i]
		}
	}
	return sessionKey
}
