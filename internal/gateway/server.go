// Package gateway serves the webhook endpoints of every configured
// application plus the admin and diagnostic routes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/janitor"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/store"
	"github.com/soyeahso/voicehook/internal/version"
	"github.com/soyeahso/voicehook/internal/webhook"
)

// Server is the voicehook HTTP server.
type Server struct {
	cfg        config.ServerConfig
	adminToken string
	apps       []*webhook.Application
	router     *webhook.Router
	log        *logging.Logger
	version    string

	// Optional collaborators; nil disables the related feature.
	dispatcher *hooks.Dispatcher
	janitor    *janitor.Janitor
	reports    store.ReportStore
	events     *EventHub

	mu          sync.RWMutex
	addr        string
	startedAt   time.Time
	httpServer  *http.Server
	authLimiter *authRateLimiter
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithApplications mounts the given applications at their paths.
func WithApplications(apps ...*webhook.Application) ServerOption {
	return func(s *Server) {
		s.apps = append(s.apps, apps...)
	}
}

// WithDispatcher sets the dispatcher drained on shutdown.
func WithDispatcher(d *hooks.Dispatcher) ServerOption {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// WithJanitor sets the cache janitor run alongside the server.
func WithJanitor(j *janitor.Janitor) ServerOption {
	return func(s *Server) {
		s.janitor = j
	}
}

// WithReports enables the /reports endpoint.
func WithReports(r store.ReportStore) ServerOption {
	return func(s *Server) {
		s.reports = r
	}
}

// WithEvents enables the /events websocket stream.
func WithEvents(h *EventHub) ServerOption {
	return func(s *Server) {
		s.events = h
	}
}

// WithAdminToken protects the admin routes with a bearer token.
func WithAdminToken(token string) ServerOption {
	return func(s *Server) {
		s.adminToken = token
	}
}

// New creates a server. cfg should already have defaults applied.
func New(cfg config.ServerConfig, router *webhook.Router, log *logging.Logger, opts ...ServerOption) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultMaxBodyBytes
	}
	if cfg.SecretHeader == "" {
		cfg.SecretHeader = config.DefaultSecretHeader
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		cfg.ShutdownTimeoutSeconds = config.DefaultShutdownSeconds
	}

	s := &Server{
		cfg:         cfg,
		router:      router,
		log:         log.Sub("gateway"),
		version:     version.Version,
		startedAt:   time.Now(),
		authLimiter: newAuthRateLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full handler chain: routes plus middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log)
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down the HTTP server, the event stream and the
// dispatcher, in that order.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.dispatcher != nil {
		s.dispatcher.Start()
	}
	if s.janitor != nil {
		go s.janitor.Run(ctx)
	}
	go s.sweepAuthFailures(ctx)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int("applications", len(s.apps)).
		Bool("adminAuth", s.adminToken != "").
		Msg("gateway server ready")

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	return s.shutdown(httpServer)
}

func (s *Server) shutdown(httpServer *http.Server) error {
	s.log.Info().Msg("shutting down gateway server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()

	var errs []error
	if s.events != nil {
		s.events.CloseAll()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher drain: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) sweepAuthFailures(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.authLimiter.sweep()
		}
	}
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startedAt)
}
