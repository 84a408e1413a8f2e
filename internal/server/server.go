package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/mentor/internal/app"
	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/storage"
)

// Server is the HTTP server for the mentor web API.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	mentor   *app.Mentor
	sessions *SessionManager
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, mentor *app.Mentor) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		mentor:   mentor,
		sessions: NewSessionManager(mentor.NewOrchestrator),
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// One-shot execution and suggestions
		r.Post("/execute", s.handleExecute)
		r.Post("/suggestions", s.handleSuggestions)

		// Sessions
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/run", s.handleRunSession)

		// WebSocket (no JSON content-type)
		r.Get("/sessions/{id}/ws", s.handleWebSocket)

		// Saved scripts
		r.Get("/scripts", s.handleListScripts)
		r.Post("/scripts", s.handleCreateScript)
		r.Get("/scripts/{id}", s.handleGetScript)
		r.Put("/scripts/{id}", s.handleUpdateScript)
		r.Delete("/scripts/{id}", s.handleDeleteScript)
		r.Post("/scripts/{id}/run", s.handleRunScript)
		r.Get("/scripts/{id}/export", s.handleExportScript)

		// Providers
		r.Get("/providers", s.handleListProviders)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("Mentor server starting on http://localhost%s (suggestions: %s)", addr, s.mentor.Describe())
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.sessions.CloseAll()

	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
