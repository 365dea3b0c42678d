package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textra-ai/textra/internal/api"
	"github.com/textra-ai/textra/internal/database"
	mw "github.com/textra-ai/textra/internal/middleware"
	inats "github.com/textra-ai/textra/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Detection handlers
	DetectText http.HandlerFunc
	DetectFile http.HandlerFunc
	DetectURL  http.HandlerFunc

	// User account handlers
	GetLimits     http.HandlerFunc
	ListHistory   http.HandlerFunc
	GetStats      http.HandlerFunc
	DeleteHistory http.HandlerFunc

	// Administrative handlers
	UpdateUserLimits http.HandlerFunc
	ResetRateLimit   http.HandlerFunc

	// Middleware
	AuthMiddleware      func(http.Handler) http.Handler
	UserRateLimit       func(http.Handler) http.Handler
	AdminOnlyMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		api.JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public), optionally rate-limited per IP
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Detection routes consume quota and pass the per-user throttle
			r.Route("/detect", func(r chi.Router) {
				r.Use(h.UserRateLimit)
				r.Post("/text", h.DetectText)
				r.Post("/file", h.DetectFile)
				r.Post("/url", h.DetectURL)
			})

			// Account routes: limits, history, stats
			r.Route("/user", func(r chi.Router) {
				r.Get("/limits", h.GetLimits)
				r.Get("/history", h.ListHistory)
				r.Get("/stats", h.GetStats)
				r.Delete("/history", h.DeleteHistory)
			})

			// Administrative overrides
			r.Route("/admin", func(r chi.Router) {
				if h.AdminOnlyMiddleware != nil {
					r.Use(h.AdminOnlyMiddleware)
				}
				r.Put("/users/{userID}/limits", h.UpdateUserLimits)
				r.Post("/users/{userID}/ratelimit/reset", h.ResetRateLimit)
			})
		})
	})

	return r
}
