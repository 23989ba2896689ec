package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tallyapp/tally/internal/config"
	"github.com/tallyapp/tally/internal/handler"
	"github.com/tallyapp/tally/internal/metrics"
	"github.com/tallyapp/tally/internal/middleware"
)

// routerDeps collects everything the router mounts.
type routerDeps struct {
	cfg    *config.Config
	logger *slog.Logger

	root     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	expenses *handler.ExpenseHandler
	accounts *handler.AuthHandler

	tokens      middleware.TokenParser
	users       middleware.UserLookup
	identities  middleware.IdentityCache
	rateLimiter middleware.RateLimiter
	recorder    metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware, outermost first.
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: d.cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	r.Get("/", d.root.Hello)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	if d.cfg.MetricsEnabled {
		r.Get("/metrics", d.metrics.Metrics)
	}

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:  d.logger,
		Tokens:  d.tokens,
		Users:   d.users,
		Cache:   d.identities,
		Metrics: d.recorder,
	})

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      d.logger,
		Limiter:     d.rateLimiter,
		Metrics:     d.recorder,
		APIEnabled:  d.cfg.RateLimitAPIEnabled,
		APIRPM:      d.cfg.RateLimitAPIRPM,
		APIBurst:    d.cfg.RateLimitAPIBurst,
		AuthEnabled: d.cfg.RateLimitAuthEnabled,
		AuthRPS:     d.cfg.RateLimitAuthRPS,
		AuthBurst:   d.cfg.RateLimitAuthBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/register", d.accounts.Register)
			r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/login", d.accounts.Login)
			r.With(requireAuth, middleware.RateLimitAPI(rateLimitCfg)).Get("/me", d.accounts.Me)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Post("/", d.expenses.Create)
			r.Get("/", d.expenses.List)
			r.Get("/summary", d.expenses.Summary)
			r.Get("/{id}", d.expenses.Get)
			r.Put("/{id}", d.expenses.Update)
			r.Patch("/{id}", d.expenses.Update)
			r.Delete("/{id}", d.expenses.Delete)
		})
	})

	r.NotFound(d.root.NotFound)
	r.MethodNotAllowed(d.root.MethodNotAllowed)

	return r
}
