package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duck-gateway/internal/engine"
	"duck-gateway/internal/middleware"
)

// RouterOptions configures the optional middleware of the router.
type RouterOptions struct {
	// APIToken enables bearer authentication on /query when set.
	APIToken string
	// RateLimit enables per-client rate limiting when non-nil.
	RateLimit *middleware.RateLimitConfig
	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

// NewRouter builds the gateway's HTTP handler around session.
func NewRouter(session *engine.Session, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger.With("component", "http")))
	r.Use(chimw.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if opts.RateLimit != nil {
		r.Use(middleware.RateLimiter(*opts.RateLimit))
	}
	r.Use(withSession(session))

	r.Get("/", h.Root)
	r.Get("/_health", h.Health)
	r.With(middleware.BearerToken(opts.APIToken)).Post("/query", h.Query)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)
	return r
}

func withSession(s *engine.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(engine.WithSession(r.Context(), s)))
		})
	}
}
