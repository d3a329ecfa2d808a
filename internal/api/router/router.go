package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/clinic-reminders/internal/http/middleware"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	RemindersHandler *reminders.Handler
	AdminAuthSecret  string
	MetricsHandler   http.Handler

	// Per-IP limit on /api/v1. Zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.RateLimitPerSecond > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}
		if cfg.RemindersHandler != nil {
			cfg.RemindersHandler.RegisterRoutes(api)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
