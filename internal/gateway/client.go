package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/salexandr0s/scry/internal/debug"
)

// Options configures the gateway connection. Token, identity, and protocol
// range must be supplied before dialing; the mirror service is the only
// component that ever holds them.
type Options struct {
	URL         string
	Token       string
	ClientName  string
	MinProtocol int
	MaxProtocol int
	Scopes      []string
	DialTimeout time.Duration
}

const defaultDialTimeout = 10 * time.Second

// Client dials the gateway WebSocket and performs the connect handshake.
type Client struct {
	opts Options
}

// NewClient creates a gateway client. It does not connect.
func NewClient(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "scry"
	}
	return &Client{opts: opts}
}

// connectRequest is the handshake frame sent right after the socket opens.
type connectRequest struct {
	Type   string        `json:"type"`
	Method string        `json:"method"`
	Params connectParams `json:"params"`
}

type connectParams struct {
	MinProtocol int      `json:"minProtocol"`
	MaxProtocol int      `json:"maxProtocol"`
	Client      string   `json:"client"`
	Scopes      []string `json:"scopes,omitempty"`
}

// Dial opens the WebSocket, sends the connect handshake, and returns a
// ready-to-read connection. The bearer token travels as an Authorization
// header and never appears in any frame payload.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	ws, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	// Snapshots and event bursts can be large.
	ws.SetReadLimit(4 * 1024 * 1024)

	hello := connectRequest{
		Type:   "request",
		Method: "connect",
		Params: connectParams{
			MinProtocol: c.opts.MinProtocol,
			MaxProtocol: c.opts.MaxProtocol,
			Client:      c.opts.ClientName,
			Scopes:      c.opts.Scopes,
		},
	}
	data, err := json.Marshal(hello)
	if err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("encoding connect request: %w", err)
	}
	if err := ws.Write(dialCtx, websocket.MessageText, data); err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("sending connect request: %w", err)
	}

	debug.LogKV("gateway", "connected", "url", c.opts.URL, "client", c.opts.ClientName)
	return &Conn{ws: ws}, nil
}

// Conn is a single established gateway connection. It is read by exactly one
// consumer at a time.
type Conn struct {
	ws *websocket.Conn
}

// ReadFrame blocks until the next frame arrives or the connection fails.
// Undecodable messages are skipped; the caller only ever sees well-formed
// envelopes or a transport error.
func (conn *Conn) ReadFrame(ctx context.Context) (*Frame, error) {
	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading frame: %w", err)
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			debug.LogKV("gateway", "dropping malformed frame", "size", len(data), "error", err)
			continue
		}
		return frame, nil
	}
}

// Close closes the connection with a normal-closure status.
func (conn *Conn) Close() error {
	return conn.ws.Close(websocket.StatusNormalClosure, "")
}
