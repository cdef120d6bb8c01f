package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generator runs the program pipeline. *generation.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, userID int) (*generation.Outcome, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  storage.Store
	gen    Generator
	log    *slog.Logger
	apiKey string
	router chi.Router
	whois  WhoIser
	devID  int
	mcp    http.Handler
}

// New creates a new Server with all routes configured.
func New(store storage.Store, gen Generator, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		gen:    gen,
		log:    log,
		apiKey: apiKey,
		devID:  devUserID,
	}
	s.routes()
	return s
}

// SetTailscale switches identity from the dev user to tailnet WhoIs lookups.
// Call it before serving.
func (s *Server) SetTailscale(lc WhoIser) {
	s.whois = lc
	s.routes()
}

// SetDevUser sets the user id requests run as without Tailscale. Call it
// before serving.
func (s *Server) SetDevUser(id int) {
	s.devID = id
	s.routes()
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp. Call it before serving.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
	s.routes()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) identify() func(http.Handler) http.Handler {
	if s.whois == nil {
		return DevIdentity(s.devID)
	}
	return TailscaleIdentity(s.whois, s.store.GetOrCreateUser, s.log)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(RequestLogging(s.log))
	r.Use(CORS)

	r.Handle("/metrics", promhttp.Handler())

	// Catalog administration (API key required)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/exercises", s.handleImportExercises)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.identify())

		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/exercises", s.handleListExercises)
		r.Get("/api/v1/preferences", s.handleGetPreferences)
		r.Put("/api/v1/preferences", s.handlePutPreferences)
		r.Post("/api/v1/programs/generate", s.handleGenerate)
		r.Get("/api/v1/programs", s.handleListPrograms)
		r.Get("/api/v1/programs/{id}", s.handleGetProgram)
		r.Get("/api/v1/generations", s.handleGenerationLogs)
		r.Post("/api/v1/sessions/{id}/logs", s.handleLogSession)
		r.Get("/api/v1/sessions/{id}/logs/count", s.handleCountSessionLogs)

		if s.mcp != nil {
			r.Handle("/mcp", s.mcpWithUser(s.mcp))
		}
	})

	s.router = r
}

// mcpWithUser hands the identity user to the MCP tool handlers.
func (s *Server) mcpWithUser(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := mcp.WithUserID(r.Context(), userIDFromContext(r))
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
