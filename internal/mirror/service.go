package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/salexandr0s/scry/internal/debug"
	"github.com/salexandr0s/scry/internal/eventq"
	"github.com/salexandr0s/scry/internal/events"
	"github.com/salexandr0s/scry/internal/gateway"
	"github.com/salexandr0s/scry/internal/graph"
	"github.com/salexandr0s/scry/internal/normalize"
)

// Service mirrors the gateway event stream into the graph store and
// republishes per-pass deltas to subscribers. One Service owns at most one
// transport connection at a time.
type Service struct {
	opts   Options
	dialer Dialer
	poller Poller
	store  *graph.Store

	// passMu serializes whole processing passes (frame ingestion, TTL
	// sweeps) so each published delta reflects exactly one pass.
	passMu sync.Mutex
	linked map[string]bool // session ids with a spawn edge already inferred

	mu       sync.Mutex
	mode     Mode
	attempts int
	subs     map[string]chan Delta

	framesSeen    atomic.Uint64
	framesIgnored atomic.Uint64
	drops         eventq.Drops

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a mirror service over the given store and transports.
func New(store *graph.Store, dialer Dialer, poller Poller, opts Options) *Service {
	return &Service{
		opts:   opts.withDefaults(),
		dialer: dialer,
		poller: poller,
		store:  store,
		mode:   ModeDisconnected,
		linked: make(map[string]bool),
		subs:   make(map[string]chan Delta),
	}
}

// Start launches the connection loop and the periodic TTL sweep. It returns
// immediately; Stop shuts both down and interrupts any pending backoff wait
// or in-flight connection attempt.
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.evictLoop(runCtx)
	}()
}

// Stop cancels all mirror goroutines and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.setMode(ModeDisconnected)
}

// Subscribe registers a delta subscriber. The returned snapshot is the
// subscriber's starting state; every subsequent mutation arrives as a delta
// on the channel. A slow subscriber loses deltas rather than stalling
// ingestion; drops are counted in Status.
func (s *Service) Subscribe() (id string, snap graph.Snapshot, ch <-chan Delta) {
	id = gonanoid.Must(8)
	deltaCh := make(chan Delta, s.opts.SubscriberBuffer)

	// Snapshot under the pass lock so no delta published after it predates it.
	s.passMu.Lock()
	snap = s.store.Snapshot()
	s.mu.Lock()
	s.subs[id] = deltaCh
	s.mu.Unlock()
	s.passMu.Unlock()

	return id, snap, deltaCh
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	ch, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Snapshot returns the current graph state.
func (s *Service) Snapshot() graph.Snapshot {
	return s.store.Snapshot()
}

// Status reports the mirror's connection mode and counters.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Mode:            s.mode,
		Attempts:        s.attempts,
		FramesSeen:      s.framesSeen.Load(),
		FramesIgnored:   s.framesIgnored.Load(),
		SubscriberDrops: s.drops.Load(),
		Subscribers:     len(s.subs),
		LastEventID:     s.store.LastEventID(),
	}
}

// run is the connection state machine: connecting -> connected on success,
// backoff reconnects on transport error, polling after the attempt budget
// is exhausted, and back to connected when an opportunistic dial succeeds.
func (s *Service) run(ctx context.Context) {
	for ctx.Err() == nil {
		conn := s.connect(ctx)
		if conn == nil {
			return
		}
		s.setMode(ModeConnected)
		s.readLoop(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.setMode(ModeDisconnected)
	}
}

// connect tries the WebSocket up to the attempt budget with exponential
// backoff, then settles into polling mode, retrying the socket on every
// poll tick. Returns nil only on shutdown.
func (s *Service) connect(ctx context.Context) Conn {
	for attempt := 1; attempt <= s.opts.MaxReconnectAttempts; attempt++ {
		s.setMode(ModeConnecting)
		s.setAttempts(attempt)

		conn, err := s.dialer.Dial(ctx)
		if err == nil {
			s.setAttempts(0)
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		debug.LogKV("mirror", "dial failed", "attempt", attempt, "error", err)

		if attempt < s.opts.MaxReconnectAttempts {
			if !sleep(ctx, backoffDelay(s.opts.ReconnectDelay, attempt)) {
				return nil
			}
		}
	}

	s.setMode(ModePolling)
	debug.Log("mirror", "reconnect budget exhausted, entering polling mode")

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if conn, err := s.dialer.Dial(ctx); err == nil {
				return conn
			}
			frames, err := s.poller.Poll(ctx)
			if err != nil {
				debug.LogKV("mirror", "poll failed", "error", err)
				continue
			}
			for i := range frames {
				s.processFrame(&frames[i], events.SourcePoll)
			}
		}
	}
}

func (s *Service) readLoop(ctx context.Context, conn Conn) {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				debug.LogKV("mirror", "transport error", "error", err)
			}
			return
		}
		s.processFrame(frame, events.SourceWebSocket)
	}
}

// processFrame runs one full pipeline pass: redact -> normalize -> graph
// mutation -> delta publication. Frames that normalize to nothing are
// counted and dropped without touching the graph. The delta is published
// before the pass lock is released so subscribers see deltas in mutation
// order.
func (s *Service) processFrame(frame *gateway.Frame, source string) {
	s.framesSeen.Add(1)

	ev := normalize.Normalize(frame, source)
	if ev == nil {
		s.framesIgnored.Add(1)
		return
	}

	s.passMu.Lock()
	defer s.passMu.Unlock()
	s.store.AddEvent(*ev)

	var delta Delta
	nodes, edges := normalize.GraphUpdates(ev)
	for _, n := range nodes {
		isNew, merged := s.store.UpsertNode(n)
		if isNew {
			delta.AddedNodes = append(delta.AddedNodes, merged)
		} else {
			delta.UpdatedNodes = append(delta.UpdatedNodes, merged)
		}
	}
	for _, e := range edges {
		if isNew, added := s.store.AddEdge(e); isNew {
			delta.AddedEdges = append(delta.AddedEdges, added)
		}
	}

	s.inferSpawn(ev, &delta)

	evictedNodes, evictedEdges := s.store.TakeEvicted()
	delta.RemovedNodeIDs = evictedNodes
	delta.RemovedEdgeIDs = evictedEdges
	for _, id := range evictedNodes {
		delete(s.linked, id)
	}
	delta.LastEventID = ev.ID
	s.publish(delta)
}

// inferSpawn links a subagent session to its probable parent the first time
// one of its events is seen. A miss is retried on the session's next event.
// The subagent flag comes from redaction, which sets it from the payload's
// boolean or the session-key pattern.
func (s *Service) inferSpawn(ev *events.Event, delta *Delta) {
	if !ev.Payload.Subagent || s.linked[ev.SessionID] {
		return
	}
	parentID, confidence, ok := s.store.FindParentSession(ev.SessionKey, ev.Timestamp)
	if !ok {
		return
	}
	edge := graph.Edge{
		Source:     parentID,
		Target:     ev.SessionID,
		Kind:       graph.EdgeSpawned,
		Confidence: confidence,
		CreatedAt:  ev.Timestamp,
	}
	if isNew, added := s.store.AddEdge(edge); isNew {
		delta.AddedEdges = append(delta.AddedEdges, added)
	}
	s.linked[ev.SessionID] = true
}

// evictLoop runs the TTL sweep on its own timer, decoupled from frame
// processing but serialized against it.
func (s *Service) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.EvictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep evicts expired nodes and publishes the removals as one delta, still
// under the pass lock so the removal cannot be reordered past a later pass.
func (s *Service) sweep(now time.Time) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	nodeIDs, edgeIDs := s.store.EvictExpired(now)
	for _, id := range nodeIDs {
		delete(s.linked, id)
	}
	delta := Delta{
		RemovedNodeIDs: nodeIDs,
		RemovedEdgeIDs: edgeIDs,
		LastEventID:    s.store.LastEventID(),
	}
	if !delta.empty() {
		s.publish(delta)
	}
}

func (s *Service) publish(delta Delta) {
	s.mu.Lock()
	subs := make([]chan Delta, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		eventq.OfferCounted(ch, delta, &s.drops)
	}
}

func (s *Service) setMode(mode Mode) {
	s.mu.Lock()
	old := s.mode
	s.mode = mode
	s.mu.Unlock()
	if old != mode {
		debug.LogKV("mirror", "mode change", "from", old, "to", mode)
	}
}

func (s *Service) setAttempts(n int) {
	s.mu.Lock()
	s.attempts = n
	s.mu.Unlock()
}

// backoffDelay doubles the base delay per attempt, capped at 30 seconds.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sleep waits for d or until ctx is done. Returns false when interrupted.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
