package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/simonbystrom/teamboard/internal/hub"
)

const readHeaderTimeout = 5 * time.Second

// Server is the HTTP listener for the API and the push channel.
type Server struct {
	server *http.Server
}

// NewServer wires routes and middleware onto a new http.Server.
func NewServer(h *Handler, registry *hub.Registry, addr, staticDir string) *Server {
	mux := http.NewServeMux()
	SetupRoutes(mux, h, registry, staticDir)

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           chainMiddlewares(mux, withCORS, withLogging),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
