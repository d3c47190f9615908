package graph

import (
	"time"

	"github.com/salexandr0s/scry/internal/debug"
	"github.com/salexandr0s/scry/internal/redact"
)

// fallbackWindow bounds how far back pass 2 of parent inference looks for a
// recently active session.
const fallbackWindow = 10 * time.Second

// FindParentSession infers the probable parent of a subagent session from
// its key and first-seen timestamp.
//
// Pass 1 matches the child's correlation tokens against stored session
// correlation ids; an exact hit is high confidence. Candidate iteration
// order is map order, so ties between exact matches resolve arbitrarily.
// Pass 2 falls back to the most recently active non-subagent session inside
// the 10-second window before the child's timestamp: medium confidence when
// the child's key matches the subagent pattern, low otherwise. No candidate
// in either pass returns ok=false.
func (s *Store) FindParentSession(childSessionKey string, childTimestamp time.Time) (parentID string, confidence Confidence, ok bool) {
	opToken := redact.OperationToken(childSessionKey)
	woToken := redact.WorkOrderToken(childSessionKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nodes {
		if n.Kind != NodeSession || n.Subagent {
			continue
		}
		if (opToken != "" && n.OperationID == opToken) || (woToken != "" && n.WorkOrderID == woToken) {
			debug.LogKV("graph", "parent matched by token", "parent", n.ID)
			return n.ID, ConfidenceHigh, true
		}
	}

	windowStart := childTimestamp.Add(-fallbackWindow)
	var best *Node
	for _, n := range s.nodes {
		if n.Kind != NodeSession || n.Subagent {
			continue
		}
		if !n.LastActivity.After(windowStart) || !n.LastActivity.Before(childTimestamp) {
			continue
		}
		if best == nil || n.LastActivity.After(best.LastActivity) {
			best = n
		}
	}
	if best == nil {
		return "", "", false
	}

	confidence = ConfidenceLow
	if redact.SubagentKey(childSessionKey) {
		confidence = ConfidenceMedium
	}
	debug.LogKV("graph", "parent matched by recency", "parent", best.ID, "confidence", confidence)
	return best.ID, confidence, true
}
