// Package server exposes the board over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/server/middleware"
	"github.com/alanyoungcy/oddsdesk/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// RateLimit is the per-IP budget per RateWindow. Zero disables it.
	RateLimit   int
	RateWindow  time.Duration
	Entitlement middleware.EntitlementConfig
}

// Handlers groups the endpoint handlers. Alerts and Archive are optional and
// their routes are only registered when set.
type Handlers struct {
	Health  *handler.HealthHandler
	Board   *handler.BoardHandler
	Alerts  *handler.AlertHandler
	Archive *handler.ArchiveHandler
}

// Server is the HTTP + websocket front end.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers routes and builds the middleware chain:
// CORS, logging, per-IP rate limit, then entitlement on the gated views.
// limiter may be nil, which disables both rate limiting and the free
// allowance.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))
	mux := http.NewServeMux()

	gate := middleware.Entitlement(cfg.Entitlement, limiter, logger)

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.Handle("GET /api/board", gate(http.HandlerFunc(handlers.Board.GetBoard)))
	mux.Handle("GET /api/movers", gate(http.HandlerFunc(handlers.Board.GetMovers)))
	mux.HandleFunc("GET /api/sport", handlers.Board.GetSport)
	mux.HandleFunc("POST /api/sport", handlers.Board.SetSport)

	if handlers.Alerts != nil {
		mux.HandleFunc("GET /api/alerts/status", handlers.Alerts.GetStatus)
	}
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.ListArchive)
		mux.HandleFunc("GET /api/archive/object", handlers.Archive.GetArchiveObject)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Name returns "http".
func (s *Server) Name() string { return "http" }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return ctx.Err()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
