// Package mirror owns the gateway transport lifecycle and drives the
// redact -> normalize -> graph pipeline. It is the sole holder of gateway
// credentials; downstream consumers only ever see snapshots and deltas.
package mirror

import (
	"context"
	"time"

	"github.com/salexandr0s/scry/internal/gateway"
	"github.com/salexandr0s/scry/internal/graph"
)

// Mode is the mirror's connection state, observable via Status.
type Mode string

const (
	ModeDisconnected Mode = "disconnected"
	ModeConnecting   Mode = "connecting"
	ModeConnected    Mode = "connected"
	ModePolling      Mode = "polling"
)

// Conn is a single established gateway connection.
type Conn interface {
	ReadFrame(ctx context.Context) (*gateway.Frame, error)
	Close() error
}

// Dialer opens gateway connections. *gateway.Client satisfies it through
// GatewayDialer.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Poller reads equivalent state over the request/response fallback channel.
type Poller interface {
	Poll(ctx context.Context) ([]gateway.Frame, error)
}

// GatewayDialer adapts gateway.Client to the Dialer interface.
type GatewayDialer struct {
	Client *gateway.Client
}

// Dial opens a gateway WebSocket connection.
func (d GatewayDialer) Dial(ctx context.Context) (Conn, error) {
	conn, err := d.Client.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options tunes the mirror's reconnect and eviction behavior. Zero values
// take defaults.
type Options struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PollInterval         time.Duration
	EvictInterval        time.Duration
	SubscriberBuffer     int
}

const (
	defaultReconnectDelay   = time.Second
	defaultMaxReconnects    = 5
	defaultPollInterval     = 5 * time.Second
	defaultEvictInterval    = 30 * time.Second
	defaultSubscriberBuffer = 64
	maxBackoff              = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = defaultReconnectDelay
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaultMaxReconnects
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.EvictInterval <= 0 {
		o.EvictInterval = defaultEvictInterval
	}
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = defaultSubscriberBuffer
	}
	return o
}

// Delta describes exactly the graph mutations of one processing pass.
// Subscribers apply deltas strictly in arrival order.
type Delta struct {
	AddedNodes     []graph.Node `json:"addedNodes"`
	UpdatedNodes   []graph.Node `json:"updatedNodes"`
	RemovedNodeIDs []string     `json:"removedNodeIds"`
	AddedEdges     []graph.Edge `json:"addedEdges"`
	RemovedEdgeIDs []string     `json:"removedEdgeIds"`
	LastEventID    string       `json:"lastEventId"`
}

func (d *Delta) empty() bool {
	return len(d.AddedNodes) == 0 && len(d.UpdatedNodes) == 0 && len(d.RemovedNodeIDs) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdgeIDs) == 0
}

// Status is the mirror's externally observable state. "Polling" and
// "disconnected" are first-class states here, never errors.
type Status struct {
	Mode            Mode   `json:"mode"`
	Attempts        int    `json:"attempts"`
	FramesSeen      uint64 `json:"framesSeen"`
	FramesIgnored   uint64 `json:"framesIgnored"`
	SubscriberDrops uint64 `json:"subscriberDrops"`
	Subscribers     int    `json:"subscribers"`
	LastEventID     string `json:"lastEventId"`
}
