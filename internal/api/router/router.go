package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pratik-mahalle/fleetfix/internal/api/handlers"
	"github.com/pratik-mahalle/fleetfix/internal/api/middleware"
	"github.com/pratik-mahalle/fleetfix/internal/config"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/ratelimit"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	CheckIn   *handlers.CheckInHandler
	Action    *handlers.ActionHandler
	Host      *handlers.HostHandler
	Whitelist *handlers.WhitelistHandler
}

// Deps are the non-handler collaborators the routes need.
type Deps struct {
	HostAuth middleware.HostAuthenticator
	// CheckInLimiter is charged per host; APILimiter per client address.
	CheckInLimiter ratelimit.Limiter
	APILimiter     ratelimit.Limiter
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Probes and scrape endpoint
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Agent heartbeat
		r.Group(func(r chi.Router) {
			if deps.CheckInLimiter != nil {
				r.Use(middleware.RateLimit(deps.CheckInLimiter, middleware.KeyByHost, "checkin", log))
			}
			r.Use(middleware.HostAuth(deps.HostAuth))
			r.Post("/agent/checkin", h.CheckIn.CheckIn)
		})

		// Management API
		r.Group(func(r chi.Router) {
			if deps.APILimiter != nil {
				r.Use(middleware.RateLimit(deps.APILimiter, middleware.KeyByIP, "api", log))
			}
			r.Use(middleware.OperatorAuth(cfg.Auth.JWTSecret))

			r.Get("/whitelist", h.Whitelist.List)

			r.Route("/actions", func(r chi.Router) {
				r.Get("/", h.Action.List)
				r.Get("/summary", h.Action.Summary)
				r.Get("/{id}", h.Action.Get)
				r.Get("/{id}/audit", h.Action.Audit)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOperator)
					r.Post("/", h.Action.Create)
					r.Post("/{id}/approve", h.Action.Approve)
					r.Post("/{id}/reject", h.Action.Reject)
				})
			})

			r.Route("/hosts", func(r chi.Router) {
				r.Get("/", h.Host.List)
				r.Get("/{id}", h.Host.Get)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOperator)
					r.Post("/", h.Host.Register)
					r.Put("/{id}/maintenance", h.Host.SetMaintenance)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "fleetfix",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/healthz" && req.URL.Path != "/readyz" && req.URL.Path != "/metrics"
		}),
	)
}
