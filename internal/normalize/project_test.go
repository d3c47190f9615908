package normalize

import (
	"testing"
	"time"

	"github.com/salexandr0s/scry/internal/events"
	"github.com/salexandr0s/scry/internal/graph"
	"github.com/salexandr0s/scry/internal/redact"
)

func canonical(kind events.Kind, payload redact.Payload) *events.Event {
	return &events.Event{
		ID:         "ev1",
		Kind:       kind,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SessionID:  "sess-1",
		SessionKey: "claude:main:1",
		AgentID:    "claude",
		Source:     events.SourceWebSocket,
		Payload:    payload,
	}
}

func TestGraphUpdatesChat(t *testing.T) {
	ev := canonical(events.KindChat, redact.Payload{Channel: "general", MessageID: "m-9"})
	nodes, edges := GraphUpdates(ev)

	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want session plus chat", len(nodes))
	}
	session, chat := nodes[0], nodes[1]
	if session.Kind != graph.NodeSession || session.ID != "sess-1" || session.Status != graph.StatusActive {
		t.Errorf("session node = %+v", session)
	}
	if chat.Kind != graph.NodeChat || chat.ID != "chat:m-9" || chat.Status != graph.StatusCompleted {
		t.Errorf("chat node = %+v", chat)
	}

	// The chat message triggered the session, so the chat is the source.
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	e := edges[0]
	if e.Kind != graph.EdgeTriggered || e.Source != "chat:m-9" || e.Target != "sess-1" {
		t.Errorf("edge = %+v, want triggered chat->session", e)
	}
	if e.Confidence != graph.ConfidenceHigh {
		t.Errorf("structural edge confidence = %q, want high", e.Confidence)
	}
}

func TestGraphUpdatesChatFallbackID(t *testing.T) {
	ev := canonical(events.KindChat, redact.Payload{})
	nodes, _ := GraphUpdates(ev)
	if nodes[1].ID != "chat:ev1" {
		t.Errorf("chat id = %q, want event-id fallback chat:ev1", nodes[1].ID)
	}
}

func TestGraphUpdatesTurnLifecycle(t *testing.T) {
	start := canonical(events.KindTurnStart, redact.Payload{TurnID: "t7"})
	nodes, edges := GraphUpdates(start)
	turn := nodes[1]
	if turn.ID != "turn:sess-1:t7" || turn.Kind != graph.NodeTurn {
		t.Fatalf("turn node = %+v", turn)
	}
	if turn.Status != graph.StatusActive {
		t.Errorf("turn-start status = %q, want active", turn.Status)
	}
	if turn.EndedAt != (time.Time{}) {
		t.Errorf("active turn has EndedAt set")
	}
	if edges[0].Source != "sess-1" || edges[0].Target != "turn:sess-1:t7" || edges[0].Kind != graph.EdgeTriggered {
		t.Errorf("edge = %+v, want triggered session->turn", edges[0])
	}

	end := canonical(events.KindTurnEnd, redact.Payload{TurnID: "t7"})
	nodes, _ = GraphUpdates(end)
	turn = nodes[1]
	if turn.ID != "turn:sess-1:t7" {
		t.Errorf("turn-end id = %q, want same node as start", turn.ID)
	}
	if turn.Status != graph.StatusCompleted {
		t.Errorf("turn-end status = %q, want completed", turn.Status)
	}
	if turn.EndedAt.IsZero() {
		t.Errorf("completed turn missing EndedAt")
	}
}

func TestGraphUpdatesToolExit(t *testing.T) {
	zero, nonzero := 0, 3

	nodes, edges := GraphUpdates(canonical(events.KindToolEnd, redact.Payload{Tool: "bash", ExitCode: &zero}))
	tool := nodes[1]
	if tool.ID != "tool:sess-1:bash" || tool.Kind != graph.NodeToolCall {
		t.Fatalf("tool node = %+v", tool)
	}
	if tool.Status != graph.StatusCompleted {
		t.Errorf("exit 0 status = %q, want completed", tool.Status)
	}
	if edges[0].Kind != graph.EdgeUsedTool || edges[0].Source != "sess-1" {
		t.Errorf("edge = %+v, want used_tool session->tool", edges[0])
	}

	nodes, _ = GraphUpdates(canonical(events.KindToolEnd, redact.Payload{Tool: "bash", ExitCode: &nonzero}))
	if nodes[1].Status != graph.StatusFailed {
		t.Errorf("nonzero exit status = %q, want failed", nodes[1].Status)
	}

	// Tool-start without an exit code stays active.
	nodes, _ = GraphUpdates(canonical(events.KindToolStart, redact.Payload{Tool: "bash"}))
	if nodes[1].Status != graph.StatusActive {
		t.Errorf("tool-start status = %q, want active", nodes[1].Status)
	}
}

func TestGraphUpdatesAssistant(t *testing.T) {
	nodes, edges := GraphUpdates(canonical(events.KindAssistantOutput, redact.Payload{}))
	if nodes[1].ID != "assistant:sess-1" || nodes[1].Kind != graph.NodeAssistant {
		t.Fatalf("assistant node = %+v", nodes[1])
	}
	if edges[0].Kind != graph.EdgeReplied || edges[0].Source != "sess-1" || edges[0].Target != "assistant:sess-1" {
		t.Errorf("edge = %+v, want replied session->assistant", edges[0])
	}
}

func TestGraphUpdatesSpawnTouchesSessionOnly(t *testing.T) {
	nodes, edges := GraphUpdates(canonical(events.KindSpawn, redact.Payload{Subagent: true}))
	if len(nodes) != 1 || nodes[0].Kind != graph.NodeSession {
		t.Fatalf("nodes = %+v, want only the session", nodes)
	}
	if !nodes[0].Subagent {
		t.Errorf("subagent flag lost in projection")
	}
	if len(edges) != 0 {
		t.Errorf("spawn projected edges %+v, want none here", edges)
	}
}

func TestGraphUpdatesCarriesCorrelationIDs(t *testing.T) {
	nodes, _ := GraphUpdates(canonical(events.KindChat, redact.Payload{
		OperationID: "op1234567890",
		WorkOrderID: "wo1234567890",
	}))
	session := nodes[0]
	if session.OperationID != "op1234567890" || session.WorkOrderID != "wo1234567890" {
		t.Errorf("session correlation ids = (%q, %q)", session.OperationID, session.WorkOrderID)
	}
}
