package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"xpose-triage/internal/api/handlers"
	apimiddleware "xpose-triage/internal/api/middleware"
	"xpose-triage/internal/config"
	"xpose-triage/pkg/logger"
)

const defaultRequestTimeout = 60 * time.Second

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateLimitChecker
	metrics  http.Handler
	logger   *logger.Logger
}

// NewRouter creates a new Router. limiter and metricsHandler may be nil.
func NewRouter(cfg config.Config, h *handlers.Handlers, limiter apimiddleware.RateLimitChecker, metricsHandler http.Handler, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		metrics:  metricsHandler,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	timeout := r.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Probes
	router.Get("/health", r.handlers.Health.Check)
	router.Get("/ready", r.handlers.Health.Ready)
	if r.metrics != nil {
		path := r.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, r.metrics)
	}

	auth := apimiddleware.JWTAuth(r.config.JWT.Secret, r.config.JWT.Issuer)

	router.Route("/api/v1", func(api chi.Router) {
		// Citizen endpoints
		api.Group(func(pub chi.Router) {
			if r.config.RateLimit.Enabled && r.limiter != nil {
				pub.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
			}
			pub.Post("/reports", r.handlers.Reports.Submit)
			pub.Get("/reports/{id}/status", r.handlers.Reports.Status)
			pub.Get("/reports/{id}/verify", r.handlers.Reports.VerifyTrackingID)

			pub.Route("/districts", func(d chi.Router) {
				d.Get("/states", r.handlers.Assignment.States)
				d.Get("/states/{state}", r.handlers.Assignment.Districts)
				d.Get("/nearest", r.handlers.Assignment.Nearest)
				d.Get("/stations", r.handlers.Assignment.Stations)
			})
		})

		// Staff endpoints. Any verified token may change review state.
		api.Group(func(priv chi.Router) {
			priv.Use(auth)

			priv.Get("/reports/{id}", r.handlers.Reports.Get)
			priv.Put("/reports/{id}/police-status", r.handlers.Review.UpdatePoliceStatus)
			priv.Post("/reports/{id}/action-proof", r.handlers.Review.AppendActionProof)
			priv.Put("/reports/{id}/admin-status", r.handlers.Review.UpdateAdminStatus)
			priv.Post("/reports/{id}/assign", r.handlers.Assignment.Assign)
			priv.Post("/reports/{id}/assign/auto", r.handlers.Assignment.AutoAssign)

			if r.handlers.Ledger != nil {
				priv.Get("/reports/{id}/ledger", r.handlers.Ledger.ReportBlock)
				priv.Get("/ledger/chain", r.handlers.Ledger.Chain)
				priv.Get("/ledger/validate", r.handlers.Ledger.Validate)
			}
		})
	})

	return router
}
