// Package redact filters untrusted gateway payloads down to an explicit
// allow-list before anything is stored or forwarded. Tool call arguments,
// tool results, and any nested structure are dropped outright; unknown
// fields are omitted rather than passed through.
package redact

import (
	"regexp"
	"strings"
)

// Payload is the redacted projection of a raw gateway payload bag. Only the
// fields below ever survive redaction; everything else in the bag is
// discarded without being logged.
type Payload struct {
	OperationID string `json:"operationId,omitempty"`
	WorkOrderID string `json:"workOrderId,omitempty"`
	Tool        string `json:"tool,omitempty"`
	DurationMS  int64  `json:"durationMs,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	Channel     string `json:"channel,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	TurnID      string `json:"turnId,omitempty"`
	Subagent    bool   `json:"subagent,omitempty"`
}

var (
	operationPattern = regexp.MustCompile(`:op:([a-z0-9]{10,})`)
	workOrderPattern = regexp.MustCompile(`:wo:([a-z0-9]{10,})`)
)

// Redact produces the allow-listed view of a raw payload bag. Correlation
// tokens fall back to session-key patterns when the bag does not carry them.
// Malformed or missing values leave the corresponding field empty; Redact
// never fails.
func Redact(payload map[string]any, sessionKey string) Payload {
	out := Payload{
		OperationID: stringField(payload, "operationId"),
		WorkOrderID: stringField(payload, "workOrderId"),
		Tool:        stringField(payload, "tool"),
		DurationMS:  intField(payload, "durationMs"),
		Channel:     stringField(payload, "channel"),
		MessageID:   stringField(payload, "messageId"),
		TurnID:      stringField(payload, "turnId"),
	}
	if out.OperationID == "" {
		out.OperationID = OperationToken(sessionKey)
	}
	if out.WorkOrderID == "" {
		out.WorkOrderID = WorkOrderToken(sessionKey)
	}
	if code, ok := intFieldOK(payload, "exitCode"); ok {
		out.ExitCode = &code
	}
	if flag, ok := payload["subagent"].(bool); ok && flag {
		out.Subagent = true
	}
	if !out.Subagent {
		out.Subagent = SubagentKey(sessionKey)
	}
	return out
}

// SubagentKey reports whether the session key names a subagent session.
// The match is a case-insensitive substring check.
func SubagentKey(sessionKey string) bool {
	return strings.Contains(strings.ToLower(sessionKey), "subagent")
}

// OperationToken extracts the operation correlation token from a session key
// of the form "...:op:<token>". Returns "" when the key carries none.
func OperationToken(sessionKey string) string {
	return matchToken(operationPattern, sessionKey)
}

// WorkOrderToken extracts the work-order correlation token from a session key
// of the form "...:wo:<token>". Returns "" when the key carries none.
func WorkOrderToken(sessionKey string) string {
	return matchToken(workOrderPattern, sessionKey)
}

func matchToken(pattern *regexp.Regexp, key string) string {
	m := pattern.FindStringSubmatch(key)
	if m == nil {
		return ""
	}
	return m[1]
}

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return v
}

func intField(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func intFieldOK(payload map[string]any, key string) (int, bool) {
	switch v := payload[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
