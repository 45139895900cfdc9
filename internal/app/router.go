package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqualedger/aqualedger/internal/billing"
	"github.com/aqualedger/aqualedger/internal/customers"
	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/observability"
	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/route"
	"github.com/aqualedger/aqualedger/internal/tenant"
	"github.com/aqualedger/aqualedger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Auth    tenant.Middleware
	Metrics *observability.Metrics

	DeliveryHandler *delivery.Handler
	CustomerHandler *customers.Handler
	RouteHandler    *route.Handler
	BillingHandler  *billing.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("health ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)

		if params.DeliveryHandler != nil {
			r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
		}
		if params.CustomerHandler != nil {
			r.Route("/customers", func(r chi.Router) {
				r.Use(tenant.RequireRole(tenant.RoleSuperAdmin, tenant.RoleOwner, tenant.RoleManager))
				params.CustomerHandler.MountRoutes(r)
			})
		}
		if params.RouteHandler != nil {
			r.Route("/routes", func(r chi.Router) {
				r.Use(tenant.RequireFeature(tenant.FeatureRoutes))
				params.RouteHandler.MountRoutes(r)
			})
			r.Route("/agent/routes", func(r chi.Router) {
				r.Use(tenant.RequireFeature(tenant.FeatureRoutes))
				params.RouteHandler.MountAgentRoutes(r)
			})
		}
		if params.BillingHandler != nil {
			r.Route("/billing", func(r chi.Router) {
				r.Use(tenant.RequireFeature(tenant.FeatureBilling))
				params.BillingHandler.MountRoutes(r)
			})
		}
	})

	return r
}
