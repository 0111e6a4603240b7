// Package server exposes the ViewScout analysis API over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/db"
	"github.com/unklstewy/viewscout/pkg/config"
)

// SessionHeader names the header a client sets to make its analyses
// last-request-wins: a newer request with the same value supersedes an
// older one still in flight.
const SessionHeader = "X-ViewScout-Session"

// sessionIdleTTL is how long an unused session is kept.
const sessionIdleTTL = 10 * time.Minute

// ViewpointStore persists saved viewpoints. *db.ViewpointRepository
// implements it.
type ViewpointStore interface {
	List(ctx context.Context) ([]db.Viewpoint, error)
	GetByID(ctx context.Context, id int64) (*db.Viewpoint, error)
	Create(ctx context.Context, v *db.Viewpoint) error
	Update(ctx context.Context, v *db.Viewpoint) error
	Delete(ctx context.Context, id int64) error
}

// Options configures a Server.
type Options struct {
	Config   config.ServerConfig
	Analysis *analysis.Service

	// Viewpoints enables the /api/v1/viewpoints routes when non-nil
	Viewpoints ViewpointStore

	// DB is reported by /health when non-nil
	DB *db.DB
}

// Server holds the HTTP router and its dependencies.
type Server struct {
	router     *chi.Mux
	cfg        config.ServerConfig
	analysis   *analysis.Service
	viewpoints ViewpointStore
	db         *db.DB

	mu       sync.Mutex
	sessions map[string]*clientSession
}

type clientSession struct {
	session  *analysis.Session
	lastUsed time.Time
}

// New creates a server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		cfg:        opts.Config,
		analysis:   opts.Analysis,
		viewpoints: opts.Viewpoints,
		db:         opts.DB,
		sessions:   make(map[string]*clientSession),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 && s.cfg.RateLimitWindow > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
		}

		r.Post("/viewshed", s.handleViewshed)
		r.Get("/profile", s.handleProfile)
		r.Get("/heights", s.handleHeights)

		if s.viewpoints != nil {
			r.Route("/viewpoints", func(r chi.Router) {
				r.Get("/", s.handleListViewpoints)
				r.Post("/", s.handleCreateViewpoint)
				r.Get("/{id}", s.handleGetViewpoint)
				r.Put("/{id}", s.handleUpdateViewpoint)
				r.Delete("/{id}", s.handleDeleteViewpoint)
				r.Post("/{id}/analyze", s.handleAnalyzeViewpoint)
			})
		}
	})
}

// run executes an analysis, through the caller's session when the request
// names one.
func (s *Server) run(r *http.Request, req analysis.Request) (*analysis.Report, error) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return s.analysis.Analyze(r.Context(), req)
	}
	return s.session(id).Run(r.Context(), req)
}

// session returns the session for id, creating it if needed, and drops
// sessions idle for longer than sessionIdleTTL.
func (s *Server) session(id string) *analysis.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, cs := range s.sessions {
		if now.Sub(cs.lastUsed) > sessionIdleTTL {
			delete(s.sessions, key)
		}
	}

	cs, ok := s.sessions[id]
	if !ok {
		cs = &clientSession{session: analysis.NewSession(s.analysis)}
		s.sessions[id] = cs
	}
	cs.lastUsed = now
	return cs.session
}
