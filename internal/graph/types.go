// Package graph holds the bounded in-memory activity graph: nodes and edges
// for observed gateway entities plus a circular buffer of recent canonical
// events. The store owns TTL and overflow eviction and parent-session
// inference; it never persists anything.
package graph

import "time"

// NodeKind enumerates observed entity kinds.
type NodeKind string

const (
	NodeChat      NodeKind = "chat"
	NodeSession   NodeKind = "session"
	NodeTurn      NodeKind = "turn"
	NodeToolCall  NodeKind = "tool_call"
	NodeAssistant NodeKind = "assistant"
)

// NodeStatus is the lifecycle state of a node.
type NodeStatus string

const (
	StatusActive    NodeStatus = "active"
	StatusCompleted NodeStatus = "completed"
	StatusFailed    NodeStatus = "failed"
)

// EdgeKind enumerates directed relations between nodes.
type EdgeKind string

const (
	EdgeTriggered EdgeKind = "triggered"
	EdgeSpawned   EdgeKind = "spawned"
	EdgeUsedTool  EdgeKind = "used_tool"
	EdgeReplied   EdgeKind = "replied"
)

// Confidence grades a spawned edge's parent inference. Structurally derived
// edges are always high.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Node represents an observed entity. StartedAt is monotonically the
// earliest timestamp ever merged into the node and LastActivity the latest;
// UpsertNode maintains both.
type Node struct {
	ID           string     `json:"id"`
	Kind         NodeKind   `json:"kind"`
	SessionID    string     `json:"sessionId,omitempty"`
	SessionKey   string     `json:"sessionKey,omitempty"`
	AgentID      string     `json:"agentId,omitempty"`
	OperationID  string     `json:"operationId,omitempty"`
	WorkOrderID  string     `json:"workOrderId,omitempty"`
	Status       NodeStatus `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      time.Time  `json:"endedAt,omitzero"`
	LastActivity time.Time  `json:"lastActivity"`
	Pinned       bool       `json:"isPinned,omitempty"`
	Subagent     bool       `json:"subagent,omitempty"`
	Tool         string     `json:"tool,omitempty"`
	Channel      string     `json:"channel,omitempty"`
	MessageID    string     `json:"messageId,omitempty"`
	TurnID       string     `json:"turnId,omitempty"`
	ExitCode     *int       `json:"exitCode,omitempty"`
}

// Edge is a directed relation between two node ids. Its identity is
// deterministic from (source, target, kind), so re-adding is a no-op.
type Edge struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Kind       EdgeKind   `json:"kind"`
	Confidence Confidence `json:"confidence"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// EdgeID derives the deterministic edge identity.
func EdgeID(source, target string, kind EdgeKind) string {
	return source + "->" + target + ":" + string(kind)
}

// Snapshot is a full, consistent point-in-time copy of the graph.
type Snapshot struct {
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	LastEventID string    `json:"lastEventId"`
	Timestamp   time.Time `json:"timestamp"`
}
