package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alba-Tab/backend-boutique/internal/catalog"
	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
	"github.com/Alba-Tab/backend-boutique/internal/payments"
	"github.com/Alba-Tab/backend-boutique/internal/platform/httpx"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
	"github.com/Alba-Tab/backend-boutique/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
	SalesHandler       *sales.Handler
	PaymentsHandler    *payments.Handler
	InstallmentHandler *installment.Handler
	CatalogHandler     *catalog.Handler
	UsersHandler       *users.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(api)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(api)
		}
		if params.InstallmentHandler != nil {
			params.InstallmentHandler.MountRoutes(api)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(api)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(api)
		}
	})

	return r
}
