// Package api exposes the admin surface: stage triggers, issue
// previews, recompiles, and execution-log listings.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the HTTP listener around the admin handlers.
type Server struct {
	server *http.Server
}

// NewServer builds the admin server on the given host:port.
func NewServer(addr string, h *Handlers) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      Routes(h),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
	}
}

// Routes wires the router.
func Routes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/run/{stage}", h.RunStage)
		r.Get("/issues/{variant}/preview", h.Preview)
		r.Post("/issues/{variant}/recompile", h.Recompile)
		r.Get("/logs", h.Logs)
	})

	return r
}

// Start begins serving. Blocks until shutdown.
func (s *Server) Start() error {
	log.Printf("[API] listening on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
