package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/middleware"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

// RouterConfig configures the stub backend routes.
type RouterConfig struct {
	MaxUploadBytes    int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Ready             func() bool
}

// NewRouter builds the stub backend: health, metrics and the assistant API.
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(cfg.Ready)
	chatHandler := NewChatHandler(log)
	uploadHandler := NewUploadHandler(cfg.MaxUploadBytes, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/chat", chatHandler.Chat)
		r.Post("/upload/pdf", uploadHandler.PDF)
		r.Post("/upload/csv", uploadHandler.Tabular)
	})

	return r
}
