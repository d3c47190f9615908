package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salexandr0s/scry/internal/debug"
)

// Poller reads the gateway's recent-events endpoint. It serves as the
// request/response fallback when the WebSocket cannot be established.
type Poller struct {
	url    string
	token  string
	client *http.Client
}

// NewPoller creates a poller for the given gateway base URL. The URL may be
// the ws:// form used for dialing; its scheme is rewritten to http(s) and the
// socket path is dropped.
func NewPoller(baseURL, token string) *Poller {
	base := strings.TrimSuffix(baseURL, "/")
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		base = u.Scheme + "://" + u.Host
	}
	return &Poller{
		url:    base + "/v1/events/recent",
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type pollResponse struct {
	Events []Frame `json:"events"`
}

// Poll fetches the gateway's recent event frames. The result runs through
// the same redaction and normalization pipeline as socket frames.
func (p *Poller) Poll(ctx context.Context) ([]Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polling gateway: unexpected status %d", resp.StatusCode)
	}

	var body pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}

	debug.LogKV("gateway", "polled recent events", "count", len(body.Events))
	return body.Events, nil
}
