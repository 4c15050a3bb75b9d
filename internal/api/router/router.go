package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/veldmed/practice-platform/internal/http/handlers"
	httpmiddleware "github.com/veldmed/practice-platform/internal/http/middleware"
	"github.com/veldmed/practice-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Prescriptions      *handlers.PrescriptionEmailHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Rate limiting for the send endpoint (optional, requires Redis)
	Redis              *redis.Client
	RateLimitPerMinute int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(send chi.Router) {
		if cfg.Redis != nil && cfg.RateLimitPerMinute > 0 {
			send.Use(httpmiddleware.RateLimit(cfg.Redis, cfg.RateLimitPerMinute, cfg.Logger))
		}
		send.Post("/prescriptions/email", cfg.Prescriptions.Send)
	})

	return r
}
