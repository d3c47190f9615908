package graph

import (
	"testing"
	"time"
)

func TestFindParentSessionTokenMatch(t *testing.T) {
	s := NewStore(Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.UpsertNode(Node{
		ID:           "session-parent",
		Kind:         NodeSession,
		OperationID:  "abc123def456",
		Status:       StatusActive,
		LastActivity: base,
	})
	s.UpsertNode(Node{
		ID:           "session-other",
		Kind:         NodeSession,
		OperationID:  "zzzzzzzzzzzz",
		Status:       StatusActive,
		LastActivity: base,
	})

	// Token match wins regardless of the fallback window.
	parent, conf, ok := s.FindParentSession("agent:subagent:op:abc123def456", base.Add(time.Hour))
	if !ok {
		t.Fatalf("no parent found, want token match")
	}
	if parent != "session-parent" {
		t.Errorf("parent = %q, want session-parent", parent)
	}
	if conf != ConfidenceHigh {
		t.Errorf("confidence = %q, want high", conf)
	}
}

func TestFindParentSessionWorkOrderToken(t *testing.T) {
	s := NewStore(Config{})
	base := time.Now().UTC()
	s.UpsertNode(Node{
		ID:           "session-wo",
		Kind:         NodeSession,
		WorkOrderID:  "orderorder01",
		Status:       StatusActive,
		LastActivity: base,
	})

	parent, conf, ok := s.FindParentSession("agent:subagent:wo:orderorder01", base)
	if !ok || parent != "session-wo" || conf != ConfidenceHigh {
		t.Fatalf("got (%q, %q, %v), want (session-wo, high, true)", parent, conf, ok)
	}
}

func TestFindParentSessionRecencyFallback(t *testing.T) {
	s := NewStore(Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.UpsertNode(Node{ID: "session-old", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(-30 * time.Second)})
	s.UpsertNode(Node{ID: "session-recent", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(-2 * time.Second)})
	s.UpsertNode(Node{ID: "session-recenter", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(-time.Second)})

	// Subagent-looking key gets medium confidence, most recent candidate wins.
	parent, conf, ok := s.FindParentSession("claude:subagent:xyz", base)
	if !ok {
		t.Fatalf("no parent found, want recency fallback")
	}
	if parent != "session-recenter" {
		t.Errorf("parent = %q, want most recently active session-recenter", parent)
	}
	if conf != ConfidenceMedium {
		t.Errorf("confidence = %q, want medium for subagent key", conf)
	}

	// Non-subagent key drops to low confidence.
	_, conf, ok = s.FindParentSession("claude:worker:xyz", base)
	if !ok || conf != ConfidenceLow {
		t.Errorf("got (%q, %v), want (low, true)", conf, ok)
	}
}

func TestFindParentSessionIgnoresIneligible(t *testing.T) {
	s := NewStore(Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// A subagent session never parents another, and non-session nodes are
	// never candidates.
	s.UpsertNode(Node{ID: "session-sub", Kind: NodeSession, Subagent: true, Status: StatusActive, LastActivity: base.Add(-time.Second)})
	s.UpsertNode(Node{ID: "tool-x", Kind: NodeToolCall, Status: StatusActive, LastActivity: base.Add(-time.Second)})

	if parent, _, ok := s.FindParentSession("claude:subagent:xyz", base); ok {
		t.Fatalf("found parent %q, want none", parent)
	}
}

func TestFindParentSessionWindowBounds(t *testing.T) {
	s := NewStore(Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Activity outside the 10-second window, or at/after the child's own
	// timestamp, never matches.
	s.UpsertNode(Node{ID: "session-stale", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(-11 * time.Second)})
	s.UpsertNode(Node{ID: "session-future", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(time.Second)})
	s.UpsertNode(Node{ID: "session-same", Kind: NodeSession, Status: StatusActive, LastActivity: base})

	if parent, _, ok := s.FindParentSession("claude:subagent:xyz", base); ok {
		t.Fatalf("found parent %q, want none inside window", parent)
	}
}
