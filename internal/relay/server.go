// Package relay serves the mirrored graph to local UI clients over HTTP:
// a snapshot read, an SSE stream of snapshot-then-deltas, and the mirror's
// connection status. Clients of this server never see raw gateway frames
// or credentials.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/salexandr0s/scry/internal/debug"
	"github.com/salexandr0s/scry/internal/mirror"
)

// Options configures the relay server.
type Options struct {
	Host      string
	Port      int
	AuthToken string
}

// Server hosts the snapshot/delta HTTP API.
type Server struct {
	mirror     *mirror.Service
	httpServer *http.Server
	host       string
	port       int
	authToken  string
}

// New constructs a relay over the given mirror service.
func New(svc *mirror.Service, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 7717
	}

	srv := &Server{
		mirror:    svc,
		host:      host,
		port:      port,
		authToken: strings.TrimSpace(opts.AuthToken),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/graph", srv.handleGraph)
	mux.HandleFunc("GET /api/graph/stream", srv.handleGraphStream)
	mux.HandleFunc("GET /api/status", srv.handleStatus)

	handler := corsMiddleware(logMiddleware(authMiddleware(srv.authToken, mux)))
	srv.httpServer = &http.Server{
		Addr:              srv.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Start binds the listener and serves in a background goroutine.
func (srv *Server) Start() error {
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("relay: listen on %s: %w", srv.Addr(), err)
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		srv.port = tcpAddr.Port
		srv.httpServer.Addr = srv.Addr()
	}

	go func() {
		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogKV("relay", "server stopped with error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	return srv.httpServer.Shutdown(ctx)
}

// Addr returns the bound host:port address.
func (srv *Server) Addr() string {
	return net.JoinHostPort(srv.host, strconv.Itoa(srv.port))
}

func (srv *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.mirror.Snapshot())
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.mirror.Status())
}

// handleGraphStream sends one full snapshot event followed by a delta event
// per graph mutation pass, until the client disconnects.
func (srv *Server) handleGraphStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, snap, deltas := srv.mirror.Subscribe()
	defer srv.mirror.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", snap); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case delta, open := <-deltas:
			if !open {
				return
			}
			if err := writeSSE(w, "delta", delta); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
