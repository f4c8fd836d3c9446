// Package server is the reference notification backend behind `inbox serve`.
// It exposes the REST API consumed by gateway/httpapi on top of the SQLite
// store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server serves the notification API.
type Server struct {
	router *gin.Engine
	store  store.Store
	logger *zap.Logger
	clock  clockwork.Clock
	secret string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJWTSecret enables Bearer authentication. Each token may only touch
// notifications owned by its user.
func WithJWTSecret(secret string) Option {
	return func(s *Server) { s.secret = secret }
}

// WithClock sets the clock used for read timestamps and expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a Server backed by st.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(Recovery(s.logger), Metrics(), RequestLogger(s.logger))
	s.router = router
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("notification server listening",
			zap.String("addr", addr),
			zap.Bool("auth", s.secret != ""),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("notification server stopped")
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	if s.secret != "" {
		api.Use(JWTAuth(s.secret))
	}
	{
		users := api.Group("/users/:userId/notifications")
		{
			users.GET("", s.handleList())
			users.GET("/unread-count", s.handleUnreadCount())
			users.PUT("/read-all", s.handleMarkAllRead())
		}

		notifications := api.Group("/notifications")
		{
			notifications.POST("", s.handleCreate())
			notifications.POST("/template", s.handleCreateFromTemplate())
			notifications.PUT("/:id/read", s.handleMarkRead())
			notifications.DELETE("/:id", s.handleDelete())
		}
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "inbox"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
