package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/salexandr0s/scry/internal/events"
)

func TestUpsertNodeInsertAndMerge(t *testing.T) {
	s := NewStore(Config{})
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	isNew, stored := s.UpsertNode(Node{
		ID:           "session-a",
		Kind:         NodeSession,
		Status:       StatusActive,
		StartedAt:    t0,
		LastActivity: t0,
	})
	if !isNew {
		t.Fatalf("expected first upsert to report new")
	}
	if stored.StartedAt != t0 {
		t.Fatalf("StartedAt = %v, want %v", stored.StartedAt, t0)
	}

	// A later merge keeps the earliest StartedAt and latest LastActivity.
	t1 := t0.Add(30 * time.Second)
	isNew, merged := s.UpsertNode(Node{
		ID:           "session-a",
		Kind:         NodeSession,
		Status:       StatusCompleted,
		StartedAt:    t1,
		LastActivity: t1,
	})
	if isNew {
		t.Fatalf("expected second upsert to merge")
	}
	if merged.StartedAt != t0 {
		t.Errorf("merged StartedAt = %v, want original %v", merged.StartedAt, t0)
	}
	if merged.LastActivity != t1 {
		t.Errorf("merged LastActivity = %v, want %v", merged.LastActivity, t1)
	}
	if merged.Status != StatusCompleted {
		t.Errorf("merged Status = %q, want completed", merged.Status)
	}

	// An out-of-order event must not rewind LastActivity.
	_, merged = s.UpsertNode(Node{
		ID:           "session-a",
		Kind:         NodeSession,
		Status:       StatusCompleted,
		StartedAt:    t0.Add(-time.Minute),
		LastActivity: t0.Add(-time.Minute),
	})
	if merged.LastActivity != t1 {
		t.Errorf("LastActivity rewound to %v, want %v", merged.LastActivity, t1)
	}
	if merged.StartedAt != t0.Add(-time.Minute) {
		t.Errorf("StartedAt = %v, want earlier %v", merged.StartedAt, t0.Add(-time.Minute))
	}
}

func TestUpsertNodePreservesPin(t *testing.T) {
	s := NewStore(Config{})
	now := time.Now().UTC()

	s.UpsertNode(Node{ID: "n1", Kind: NodeSession, Status: StatusActive, StartedAt: now, LastActivity: now})
	if !s.PinNode("n1") {
		t.Fatalf("PinNode failed for existing node")
	}

	_, merged := s.UpsertNode(Node{ID: "n1", Kind: NodeSession, Status: StatusActive, StartedAt: now, LastActivity: now})
	if !merged.Pinned {
		t.Fatalf("pin flag lost on merge")
	}

	if s.PinNode("missing") {
		t.Errorf("PinNode reported success for missing node")
	}
	if !s.UnpinNode("n1") {
		t.Fatalf("UnpinNode failed")
	}
	n, _ := s.GetNode("n1")
	if n.Pinned {
		t.Errorf("node still pinned after UnpinNode")
	}
}

func TestAddEdgeIdempotent(t *testing.T) {
	s := NewStore(Config{})
	now := time.Now().UTC()
	s.UpsertNode(Node{ID: "a", Kind: NodeSession, Status: StatusActive, LastActivity: now})
	s.UpsertNode(Node{ID: "b", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: now})

	isNew, e := s.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeUsedTool})
	if !isNew {
		t.Fatalf("first AddEdge not new")
	}
	if e.ID != EdgeID("a", "b", EdgeUsedTool) {
		t.Errorf("edge id = %q, want deterministic id", e.ID)
	}
	if e.Confidence != ConfidenceHigh {
		t.Errorf("default confidence = %q, want high", e.Confidence)
	}

	isNew, _ = s.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeUsedTool, Confidence: ConfidenceLow})
	if isNew {
		t.Fatalf("duplicate AddEdge reported new")
	}
	_, edges := s.Counts()
	if edges != 1 {
		t.Fatalf("edge count = %d, want 1", edges)
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	s := NewStore(Config{})
	now := time.Now().UTC()
	s.UpsertNode(Node{ID: "s1", Kind: NodeSession, Status: StatusActive, LastActivity: now})
	s.UpsertNode(Node{ID: "t1", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: now})
	s.UpsertNode(Node{ID: "t2", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: now})
	s.AddEdge(Edge{Source: "s1", Target: "t1", Kind: EdgeUsedTool})
	s.AddEdge(Edge{Source: "s1", Target: "t2", Kind: EdgeUsedTool})

	removed, ok := s.RemoveNode("s1")
	if !ok {
		t.Fatalf("RemoveNode reported missing")
	}
	if len(removed) != 2 {
		t.Fatalf("cascaded %d edges, want 2", len(removed))
	}
	nodes, edges := s.Counts()
	if nodes != 2 || edges != 0 {
		t.Fatalf("counts = (%d, %d), want (2, 0)", nodes, edges)
	}

	if _, ok := s.RemoveNode("s1"); ok {
		t.Errorf("second RemoveNode reported success")
	}
}

func TestNodeOverflowEvictsOldestInactive(t *testing.T) {
	s := NewStore(Config{MaxNodes: 3})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.UpsertNode(Node{ID: "old", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base})
	s.UpsertNode(Node{ID: "pinned", Kind: NodeToolCall, Status: StatusCompleted, Pinned: true, LastActivity: base.Add(time.Second)})
	s.UpsertNode(Node{ID: "active", Kind: NodeSession, Status: StatusActive, LastActivity: base.Add(2 * time.Second)})
	s.UpsertNode(Node{ID: "new", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base.Add(3 * time.Second)})

	if _, ok := s.GetNode("old"); ok {
		t.Errorf("oldest inactive node survived overflow")
	}
	for _, id := range []string{"pinned", "active", "new"} {
		if _, ok := s.GetNode(id); !ok {
			t.Errorf("node %q evicted, want retained", id)
		}
	}

	evicted, _ := s.TakeEvicted()
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("TakeEvicted nodes = %v, want [old]", evicted)
	}
	// Journal drains on read.
	if again, _ := s.TakeEvicted(); len(again) != 0 {
		t.Errorf("second TakeEvicted = %v, want empty", again)
	}
}

func TestNodeCapSoftWhenAllProtected(t *testing.T) {
	s := NewStore(Config{MaxNodes: 2})
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		s.UpsertNode(Node{ID: fmt.Sprintf("s%d", i), Kind: NodeSession, Status: StatusActive, LastActivity: now})
	}
	nodes, _ := s.Counts()
	if nodes != 4 {
		t.Fatalf("active nodes evicted: count = %d, want 4", nodes)
	}
}

func TestEdgeOverflowPrunesOrphansFirst(t *testing.T) {
	s := NewStore(Config{MaxEdges: 2})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.UpsertNode(Node{ID: "a", Kind: NodeSession, Status: StatusActive, LastActivity: base})
	s.UpsertNode(Node{ID: "b", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base})

	// An edge to a node that no longer exists is the orphan.
	s.AddEdge(Edge{Source: "a", Target: "gone", Kind: EdgeUsedTool, CreatedAt: base})
	s.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeUsedTool, CreatedAt: base.Add(time.Second)})
	s.AddEdge(Edge{Source: "b", Target: "a", Kind: EdgeTriggered, CreatedAt: base.Add(2 * time.Second)})

	_, edges := s.Counts()
	if edges != 2 {
		t.Fatalf("edge count = %d, want 2", edges)
	}
	snap := s.Snapshot()
	for _, e := range snap.Edges {
		if e.Target == "gone" {
			t.Errorf("orphaned edge survived overflow")
		}
	}
}

func TestEvictExpired(t *testing.T) {
	s := NewStore(Config{NodeTTL: time.Minute})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.UpsertNode(Node{ID: "stale", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base})
	s.UpsertNode(Node{ID: "stale-active", Kind: NodeSession, Status: StatusActive, LastActivity: base})
	s.UpsertNode(Node{ID: "stale-pinned", Kind: NodeToolCall, Status: StatusCompleted, Pinned: true, LastActivity: base})
	s.UpsertNode(Node{ID: "fresh", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base.Add(5 * time.Minute)})
	s.AddEdge(Edge{Source: "stale-active", Target: "stale", Kind: EdgeUsedTool})

	nodeIDs, edgeIDs := s.EvictExpired(base.Add(5 * time.Minute))
	if len(nodeIDs) != 1 || nodeIDs[0] != "stale" {
		t.Fatalf("evicted nodes = %v, want [stale]", nodeIDs)
	}
	if len(edgeIDs) != 1 {
		t.Fatalf("cascaded edges = %v, want one", edgeIDs)
	}
	for _, id := range []string{"stale-active", "stale-pinned", "fresh"} {
		if _, ok := s.GetNode(id); !ok {
			t.Errorf("node %q evicted, want retained", id)
		}
	}

	// Exactly at the TTL boundary nothing expires.
	s.UpsertNode(Node{ID: "edge-case", Kind: NodeToolCall, Status: StatusCompleted, LastActivity: base})
	if ids, _ := s.EvictExpired(base.Add(time.Minute)); len(ids) != 0 {
		t.Errorf("node at exact TTL boundary evicted: %v", ids)
	}
}

func TestEventRingWrapsAround(t *testing.T) {
	s := NewStore(Config{MaxEvents: 3})
	for i := 0; i < 5; i++ {
		s.AddEvent(events.Event{ID: fmt.Sprintf("e%d", i)})
	}

	got := s.RecentEvents()
	if len(got) != 3 {
		t.Fatalf("buffered %d events, want 3", len(got))
	}
	for i, want := range []string{"e2", "e3", "e4"} {
		if got[i].ID != want {
			t.Errorf("event[%d] = %q, want %q (oldest first)", i, got[i].ID, want)
		}
	}
	if s.LastEventID() != "e4" {
		t.Errorf("LastEventID = %q, want e4", s.LastEventID())
	}
}

func TestSnapshotSortedAndDetached(t *testing.T) {
	s := NewStore(Config{})
	now := time.Now().UTC()
	s.UpsertNode(Node{ID: "b", Kind: NodeSession, Status: StatusActive, LastActivity: now})
	s.UpsertNode(Node{ID: "a", Kind: NodeSession, Status: StatusActive, LastActivity: now})
	s.AddEvent(events.Event{ID: "e1"})

	snap := s.Snapshot()
	if len(snap.Nodes) != 2 || snap.Nodes[0].ID != "a" || snap.Nodes[1].ID != "b" {
		t.Fatalf("snapshot nodes not sorted by id: %+v", snap.Nodes)
	}
	if snap.LastEventID != "e1" {
		t.Errorf("snapshot LastEventID = %q, want e1", snap.LastEventID)
	}

	// Mutating the snapshot must not touch the store.
	snap.Nodes[0].Status = StatusFailed
	n, _ := s.GetNode("a")
	if n.Status != StatusActive {
		t.Errorf("snapshot mutation leaked into store")
	}
}
