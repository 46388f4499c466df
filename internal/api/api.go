// Package api provides the HTTP surface of SlimLine: the LINE webhook
// callback plus administrative endpoints for logs, summaries, stats, and
// operator-initiated pushes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BTreeMap/SlimLine/internal/flow"
	"github.com/BTreeMap/SlimLine/internal/messaging"
	"github.com/BTreeMap/SlimLine/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultEventTimeout bounds processing of a single webhook event batch.
const DefaultEventTimeout = 30 * time.Second

// Replier sends reply messages bound to a LINE reply token.
// Implemented by messaging.LineService.
type Replier interface {
	Reply(ctx context.Context, replyToken string, bodies []string) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (host:port).
	Addr string
	// ChannelSecret verifies webhook signatures.
	ChannelSecret string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithChannelSecret sets the LINE channel secret used to verify webhook
// signatures.
func WithChannelSecret(secret string) Option {
	return func(o *Opts) { o.ChannelSecret = secret }
}

// Server wires the store, router, and messaging services behind HTTP
// handlers.
type Server struct {
	addr          string
	channelSecret string

	st         store.Store
	router     *flow.Router
	summary    *flow.SummaryFlow
	replier    Replier
	msgService messaging.Service

	httpSrv *http.Server
	// wg tracks in-flight webhook event processing so shutdown can drain it.
	wg sync.WaitGroup
}

// NewServer creates an API server from its dependencies.
func NewServer(st store.Store, router *flow.Router, summary *flow.SummaryFlow, replier Replier, msgService messaging.Service, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	return &Server{
		addr:          o.Addr,
		channelSecret: o.ChannelSecret,
		st:            st,
		router:        router,
		summary:       summary,
		replier:       replier,
		msgService:    msgService,
	}
}

// Handler builds the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.callbackHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/logs", s.logsHandler)
	mux.HandleFunc("/summary", s.summaryHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/", s.rootHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails. On cancellation it shuts down gracefully and drains
// in-flight webhook events.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: HTTP server shutdown failed", "error", err)
		return err
	}

	// Webhook events already acknowledged with 200 still need to finish.
	s.wg.Wait()
	slog.Info("Server.Run: API server stopped")
	return nil
}
