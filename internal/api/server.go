// Package api provides the HTTP server: session bootstrap endpoints, the WebSocket upgrade
// and operational endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures the router.
type Options struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// BootstrapRate and BootstrapBurst limit bootstrap requests per client IP. Zero disables
	// the limit.
	BootstrapRate  float64
	BootstrapBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	router   *chi.Mux
	limiter  *RateLimiter
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services: services,
		router:   chi.NewRouter(),
		opts:     opts,
		logger:   logger,
	}
	if opts.BootstrapRate > 0 {
		s.limiter = NewRateLimiter(opts.BootstrapRate, opts.BootstrapBurst)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown releases the server's background resources.
func (s *Server) Shutdown() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return nil
}

func (s *Server) setupMiddleware() {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)
	if s.services.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.services.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(RateLimitMiddleware(s.limiter, s.logger))
			}

			r.Post("/hosts", s.handleCreateHost)
			r.Put("/hosts/{hostID}/credential", s.handleUpdateCredential)
			if s.services.Tokens != nil {
				r.Get("/hosts/{hostID}/token", s.handleHostToken)
			}

			r.Post("/jams", s.handleCreateJam)
			r.Get("/jams/{jamID}", s.handleGetJam)
			r.Post("/jams/{jamID}/users", s.handleJoinJam)
		})

		// Socket commands are limited per connection by the dispatcher.
		if s.services.Realtime != nil {
			r.Get("/jams/ws", s.services.Realtime.ServeHTTP)
			r.Get("/jams/ws/{id}", s.services.Realtime.ServeHTTP)
		}
	})
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
