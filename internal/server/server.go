package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"assistant/internal/assistant"
	"assistant/internal/config"
)

// Server 面向助手会话的薄 HTTP 层；会话状态由 Registry 按用户持有
// Server is the thin HTTP surface over assistant sessions. Session state
// lives in the Registry, keyed by user identity; handlers only translate
// between JSON and assistant operations.
type Server struct {
	httpServer *http.Server
	registry   *assistant.Registry
	logger     *slog.Logger
}

// NewServer wires the routes and returns a server ready to Start.
func NewServer(cfg config.ServerConfig, registry *assistant.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)

	r.Get("/api/tasks", s.handleListTasks)
	r.Post("/api/tasks", s.handleAddTask)
	r.Post("/api/tasks/{id}/complete", s.handleCompleteTask)
	r.Delete("/api/tasks/{id}", s.handleDeleteTask)

	r.Post("/api/session/clear", s.handleClearSession)
	r.Post("/api/session/save", s.handleSaveSession)

	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/preferences", s.handleListPreferences)
	r.Post("/api/preferences", s.handleSetPreference)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
	}
	return s
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("assistant API listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
