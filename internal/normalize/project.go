package normalize

import (
	"github.com/salexandr0s/scry/internal/events"
	"github.com/salexandr0s/scry/internal/graph"
)

// GraphUpdates projects a canonical event onto node upserts and edge
// additions. Every event upserts the session node; all kinds except spawn
// additionally synthesize one kind-specific node and one edge tying it to
// the session. Spawned edges are not produced here: they depend on other
// nodes' state and are inferred by the store at mutation time.
func GraphUpdates(ev *events.Event) ([]graph.Node, []graph.Edge) {
	session := graph.Node{
		ID:           ev.SessionID,
		Kind:         graph.NodeSession,
		SessionID:    ev.SessionID,
		SessionKey:   ev.SessionKey,
		AgentID:      ev.AgentID,
		OperationID:  ev.Payload.OperationID,
		WorkOrderID:  ev.Payload.WorkOrderID,
		Status:       graph.StatusActive,
		StartedAt:    ev.Timestamp,
		LastActivity: ev.Timestamp,
		Subagent:     ev.Payload.Subagent,
	}
	nodes := []graph.Node{session}

	var specific graph.Node
	var edgeKind graph.EdgeKind
	sessionIsSource := true

	switch ev.Kind {
	case events.KindChat:
		specific = graph.Node{
			ID:        chatNodeID(ev),
			Kind:      graph.NodeChat,
			Status:    graph.StatusCompleted,
			Channel:   ev.Payload.Channel,
			MessageID: ev.Payload.MessageID,
		}
		edgeKind = graph.EdgeTriggered
		sessionIsSource = false // the chat message triggered the session

	case events.KindTurnStart, events.KindTurnEnd:
		specific = graph.Node{
			ID:     turnNodeID(ev),
			Kind:   graph.NodeTurn,
			TurnID: ev.Payload.TurnID,
			Status: endStatus(ev, ev.Kind == events.KindTurnEnd),
		}
		edgeKind = graph.EdgeTriggered

	case events.KindToolStart, events.KindToolEnd:
		specific = graph.Node{
			ID:       toolNodeID(ev),
			Kind:     graph.NodeToolCall,
			Tool:     ev.Payload.Tool,
			ExitCode: ev.Payload.ExitCode,
			Status:   endStatus(ev, ev.Kind == events.KindToolEnd),
		}
		edgeKind = graph.EdgeUsedTool

	case events.KindAssistantOutput:
		specific = graph.Node{
			ID:     "assistant:" + ev.SessionID,
			Kind:   graph.NodeAssistant,
			Status: graph.StatusCompleted,
		}
		edgeKind = graph.EdgeReplied

	default:
		// Spawn announcements touch only the session node.
		return nodes, nil
	}

	specific.SessionID = ev.SessionID
	specific.AgentID = ev.AgentID
	specific.StartedAt = ev.Timestamp
	specific.LastActivity = ev.Timestamp
	if specific.Status != graph.StatusActive {
		specific.EndedAt = ev.Timestamp
	}
	nodes = append(nodes, specific)

	source, target := session.ID, specific.ID
	if !sessionIsSource {
		source, target = specific.ID, session.ID
	}
	edge := graph.Edge{
		ID:         graph.EdgeID(source, target, edgeKind),
		Source:     source,
		Target:     target,
		Kind:       edgeKind,
		Confidence: graph.ConfidenceHigh,
		CreatedAt:  ev.Timestamp,
	}
	return nodes, []graph.Edge{edge}
}

func endStatus(ev *events.Event, ended bool) graph.NodeStatus {
	if !ended {
		return graph.StatusActive
	}
	if ev.Payload.ExitCode != nil && *ev.Payload.ExitCode != 0 {
		return graph.StatusFailed
	}
	return graph.StatusCompleted
}

func chatNodeID(ev *events.Event) string {
	if ev.Payload.MessageID != "" {
		return "chat:" + ev.Payload.MessageID
	}
	return "chat:" + ev.ID
}

func turnNodeID(ev *events.Event) string {
	if ev.Payload.TurnID != "" {
		return "turn:" + ev.SessionID + ":" + ev.Payload.TurnID
	}
	return "turn:" + ev.SessionID
}

func toolNodeID(ev *events.Event) string {
	if ev.Payload.Tool != "" {
		return "tool:" + ev.SessionID + ":" + ev.Payload.Tool
	}
	return "tool:" + ev.SessionID
}
