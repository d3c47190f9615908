package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/salexandr0s/scry/internal/debug"
	"github.com/salexandr0s/scry/internal/events"
)

// Config bounds the store. Zero values take defaults.
type Config struct {
	MaxNodes  int
	MaxEdges  int
	MaxEvents int
	NodeTTL   time.Duration
}

const (
	defaultMaxNodes  = 250
	defaultMaxEdges  = 600
	defaultMaxEvents = 500
	defaultNodeTTL   = 10 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.MaxNodes <= 0 {
		c.MaxNodes = defaultMaxNodes
	}
	if c.MaxEdges <= 0 {
		c.MaxEdges = defaultMaxEdges
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = defaultMaxEvents
	}
	if c.NodeTTL <= 0 {
		c.NodeTTL = defaultNodeTTL
	}
	return c
}

// Store is the bounded in-memory activity graph. Mutating methods are
// serialized by an internal mutex; snapshot reads take a shared lock.
// Mutations never fail with errors: not-found cases return booleans and
// capacity pressure is resolved by eviction.
type Store struct {
	mu  sync.RWMutex
	cfg Config

	nodes map[string]*Node
	edges map[string]*Edge

	// Circular raw-event buffer. ring has capacity cfg.MaxEvents; pos is the
	// next slot to overwrite once the buffer has filled.
	ring        []events.Event
	pos         int
	lastEventID string

	// Per-pass journal of ids removed by internal limit enforcement, drained
	// by TakeEvicted so callers can reflect evictions in deltas.
	evictedNodes []string
	evictedEdges []string
}

// NewStore creates an empty store with the given bounds.
func NewStore(cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		cfg:   cfg,
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		ring:  make([]events.Event, 0, cfg.MaxEvents),
	}
}

// UpsertNode inserts or merges a node and returns whether it was new plus
// the merged result. Merge rules: the pinned flag survives unless the
// incoming node sets it, StartedAt keeps the minimum, LastActivity the
// maximum; every other field takes the incoming value. Overflow eviction
// runs after the merge.
func (s *Store) UpsertNode(n Node) (bool, Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[n.ID]
	if !ok {
		stored := n
		s.nodes[n.ID] = &stored
		s.enforceNodeLimitLocked()
		return true, stored
	}

	if !n.Pinned {
		n.Pinned = existing.Pinned
	}
	if n.StartedAt.IsZero() || (!existing.StartedAt.IsZero() && existing.StartedAt.Before(n.StartedAt)) {
		n.StartedAt = existing.StartedAt
	}
	if n.LastActivity.Before(existing.LastActivity) {
		n.LastActivity = existing.LastActivity
	}
	*existing = n
	s.enforceNodeLimitLocked()
	return false, n
}

// AddEdge inserts an edge, filling in its deterministic id and a default
// high confidence. Duplicate (source, target, kind) insertions are no-ops.
func (s *Store) AddEdge(e Edge) (bool, Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = EdgeID(e.Source, e.Target, e.Kind)
	}
	if e.Confidence == "" {
		e.Confidence = ConfidenceHigh
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	if existing, ok := s.edges[e.ID]; ok {
		return false, *existing
	}
	stored := e
	s.edges[e.ID] = &stored
	s.enforceEdgeLimitLocked()
	return true, stored
}

// RemoveNode deletes a node and every edge touching it. Returns the ids of
// the cascaded edges and whether the node existed.
func (s *Store) RemoveNode(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}
	delete(s.nodes, id)
	return s.removeIncidentEdgesLocked(id), true
}

// PinNode exempts a node from TTL and overflow eviction. Returns false if
// the node does not exist.
func (s *Store) PinNode(id string) bool { return s.setPinned(id, true) }

// UnpinNode clears the eviction exemption. Returns false if the node does
// not exist.
func (s *Store) UnpinNode(id string) bool { return s.setPinned(id, false) }

func (s *Store) setPinned(id string, pinned bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	n.Pinned = pinned
	return true
}

// AddEvent appends to the circular raw-event buffer, overwriting the oldest
// slot once the buffer is full, and records the id for delta resumption.
func (s *Store) AddEvent(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) < s.cfg.MaxEvents {
		s.ring = append(s.ring, ev)
	} else {
		s.ring[s.pos] = ev
		s.pos = (s.pos + 1) % s.cfg.MaxEvents
	}
	s.lastEventID = ev.ID
}

// RecentEvents returns the buffered events, oldest first.
func (s *Store) RecentEvents() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, 0, len(s.ring))
	if len(s.ring) < s.cfg.MaxEvents {
		return append(out, s.ring...)
	}
	out = append(out, s.ring[s.pos:]...)
	return append(out, s.ring[:s.pos]...)
}

// LastEventID returns the id of the most recently buffered event.
func (s *Store) LastEventID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEventID
}

// Counts returns the current node and edge counts.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Snapshot returns a full, consistent point-in-time copy of the graph,
// sorted by id for stable output.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Nodes:       make([]Node, 0, len(s.nodes)),
		Edges:       make([]Edge, 0, len(s.edges)),
		LastEventID: s.lastEventID,
		Timestamp:   time.Now().UTC(),
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, e := range s.edges {
		snap.Edges = append(snap.Edges, *e)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool { return snap.Edges[i].ID < snap.Edges[j].ID })
	return snap
}

// EvictExpired removes every node that is neither pinned nor active and
// whose LastActivity is older than the TTL relative to now. Returns the
// removed node ids and the ids of cascaded edges.
func (s *Store) EvictExpired(now time.Time) (nodeIDs, edgeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.nodes {
		if n.Pinned || n.Status == StatusActive {
			continue
		}
		if now.Sub(n.LastActivity) <= s.cfg.NodeTTL {
			continue
		}
		delete(s.nodes, id)
		nodeIDs = append(nodeIDs, id)
		edgeIDs = append(edgeIDs, s.removeIncidentEdgesLocked(id)...)
	}
	if len(nodeIDs) > 0 {
		debug.LogKV("graph", "ttl eviction", "nodes", len(nodeIDs), "edges", len(edgeIDs))
	}
	return nodeIDs, edgeIDs
}

// TakeEvicted drains the ids removed by internal limit enforcement since the
// last call. The caller folds them into the delta for the current pass.
func (s *Store) TakeEvicted() (nodeIDs, edgeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodeIDs, s.evictedNodes = s.evictedNodes, nil
	edgeIDs, s.evictedEdges = s.evictedEdges, nil
	return nodeIDs, edgeIDs
}

// enforceNodeLimitLocked trims the oldest non-pinned, non-active nodes until
// the store is back under MaxNodes. Pinned and active nodes are never
// removed here, so the cap is a soft bound under sustained load.
func (s *Store) enforceNodeLimitLocked() {
	over := len(s.nodes) - s.cfg.MaxNodes
	if over <= 0 {
		return
	}

	candidates := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.Pinned || n.Status == StatusActive {
			continue
		}
		candidates = append(candidates, n)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastActivity.Before(candidates[j].LastActivity)
	})

	for _, n := range candidates {
		if over <= 0 {
			break
		}
		delete(s.nodes, n.ID)
		s.evictedNodes = append(s.evictedNodes, n.ID)
		s.evictedEdges = append(s.evictedEdges, s.removeIncidentEdgesLocked(n.ID)...)
		over--
	}
}

// enforceEdgeLimitLocked prunes orphaned edges first, then the oldest edges
// by CreatedAt until the store is back under MaxEdges.
func (s *Store) enforceEdgeLimitLocked() {
	if len(s.edges) <= s.cfg.MaxEdges {
		return
	}

	for id, e := range s.edges {
		_, srcOK := s.nodes[e.Source]
		_, dstOK := s.nodes[e.Target]
		if srcOK && dstOK {
			continue
		}
		delete(s.edges, id)
		s.evictedEdges = append(s.evictedEdges, id)
	}

	over := len(s.edges) - s.cfg.MaxEdges
	if over <= 0 {
		return
	}
	oldest := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		oldest = append(oldest, e)
	}
	sort.Slice(oldest, func(i, j int) bool { return oldest[i].CreatedAt.Before(oldest[j].CreatedAt) })
	for _, e := range oldest[:over] {
		delete(s.edges, e.ID)
		s.evictedEdges = append(s.evictedEdges, e.ID)
	}
}

func (s *Store) removeIncidentEdgesLocked(nodeID string) []string {
	var removed []string
	for id, e := range s.edges {
		if e.Source == nodeID || e.Target == nodeID {
			delete(s.edges, id)
			removed = append(removed, id)
		}
	}
	return removed
}
