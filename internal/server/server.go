// Package server exposes the dispatch orchestrator over HTTP: the
// single-model /api/chat contract used by the web UI, a multi-model
// /api/compare endpoint, a websocket stream of per-model progress, and
// read-only views of models, history, usage and logs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/leandrotocalini/promptlab/internal/dispatch"
	"github.com/leandrotocalini/promptlab/internal/history"
	"github.com/leandrotocalini/promptlab/internal/ledger"
	"github.com/leandrotocalini/promptlab/internal/logging"
	"github.com/leandrotocalini/promptlab/internal/registry"
)

// Dispatcher runs a fan-out. Satisfied by *dispatch.Orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (map[string]dispatch.Result, error)
	DispatchObserved(ctx context.Context, req dispatch.Request, observe dispatch.Observer) (map[string]dispatch.Result, error)
}

// UsageSource reports ledger totals. Satisfied by *ledger.Ledger.
type UsageSource interface {
	Totals(ctx context.Context) ([]ledger.ModelTotals, error)
}

// LogSource exposes recent log lines. Satisfied by *logging.Ring.
type LogSource interface {
	Entries() []logging.Entry
}

// Server is the HTTP front end.
type Server struct {
	dispatcher Dispatcher
	catalog    *registry.Registry
	history    *history.Store
	usage      UsageSource
	logs       LogSource
	limiter    *rate.Limiter
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	started    time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithUsage enables /api/usage.
func WithUsage(u UsageSource) Option {
	return func(s *Server) {
		s.usage = u
	}
}

// WithLogs enables /api/logs.
func WithLogs(l LogSource) Option {
	return func(s *Server) {
		s.logs = l
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRateLimit allows at most perHour dispatches per hour, with bursts up
// to the same amount. Zero disables limiting.
func WithRateLimit(perHour int) Option {
	return func(s *Server) {
		if perHour > 0 {
			s.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
		}
	}
}

// New creates a server.
func New(d Dispatcher, catalog *registry.Registry, hist *history.Store, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		catalog:    catalog,
		history:    hist,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", s.limited(http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /api/compare", s.limited(http.HandlerFunc(s.handleCompare)))
	mux.Handle("GET /api/compare/stream", s.limited(http.HandlerFunc(s.handleCompareStream)))
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.recoverer(s.logRequests(mux))
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}
