package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wisbric/corpreg/internal/docs"
)

// ServerConfig carries the subset of application config the HTTP layer needs.
type ServerConfig struct {
	CORSAllowedOrigins []string
}

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // authenticated /api sub-router; domain handlers mount here
	Logger    *slog.Logger
	startedAt time.Time
}

// NewServer creates an HTTP server with ambient middleware and health/docs
// endpoints mounted. authMiddleware is applied only to APIRouter; health,
// metrics, and docs remain unauthenticated per spec.
func NewServer(cfg ServerConfig, logger *slog.Logger, metricsReg *prometheus.Registry, authMiddleware func(http.Handler) http.Handler) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "correlation-id", "x-correlation-id", "x-request-id"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (unauthenticated, unthrottled).
	s.Router.Get("/api/health", s.handleHealth)
	s.Router.Get("/api/health/live", s.handleLive)
	s.Router.Get("/api/health/ready", s.handleReady)

	// Prometheus metrics (unauthenticated).
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	// API documentation (unauthenticated).
	s.Router.Get("/api/docs", docs.SwaggerUIHandler())
	s.Router.Get("/api/docs/openapi.yaml", docs.OpenAPISpecHandler())

	// Authenticated API routes.
	s.Router.Route("/api", func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok", "uptime": time.Since(s.startedAt).String()})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	// This service holds no persistent connections of its own — readiness
	// degrades to liveness. Upstream registry availability is surfaced per
	// request, not polled out of band.
	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
