// Package httpapi serves the chat pipeline over HTTP and WebSocket.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/db"
	"github.com/mindfulai/naina/internal/metrics"
	"github.com/mindfulai/naina/internal/session"
)

// Version is reported by the health endpoint.
var Version = "dev"

// EventLog lists and forgets audited crisis events.
type EventLog interface {
	ListCrisisEvents(ctx context.Context, userID string, limit int) ([]*db.CrisisEvent, error)
	DeleteCrisisEvents(ctx context.Context, userID string) (int, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Deps are the services the handlers call.
type Deps struct {
	Chat     *chat.Service
	Sessions session.Store
	Library  *crisis.Library
	Events   EventLog
	Metrics  *metrics.Recorder
	Logger   *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	deps   Deps
	logger *log.Logger
	engine *gin.Engine
	srv    *http.Server
}

// New builds the router. deps.Chat is required.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("httpapi: chat service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if deps.Library == nil {
		deps.Library = crisis.DefaultLibrary()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.recovery(), requestID(), s.accessLog(), cors(s.cfg.AllowedOrigins))

	api := r.Group("/api")
	{
		api.POST("/chat", s.handleChat)
		api.GET("/health", s.handleHealth)
		api.GET("/resources", s.handleResources)
		api.GET("/conversations/:user", s.handleHistory)
		api.DELETE("/conversations/:user", s.handleDeleteConversation)
		api.GET("/analytics/:user", s.handleAnalytics)
		api.GET("/export/:user", s.handleExport)
		api.GET("/events", s.handleEvents)

		// Paths used by earlier web clients.
		api.POST("/chat/chat/", s.handleChat)
		api.GET("/chat/health/", s.handleHealth)
	}
	r.GET("/ws/chat", s.handleWebSocket)

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "path": c.Request.URL.Path})
	})
	return r
}
