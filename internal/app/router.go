package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mealpoint/mealpoint/internal/auth"
	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/masterdata"
	"github.com/mealpoint/mealpoint/internal/observability"
	"github.com/mealpoint/mealpoint/internal/sales"
	"github.com/mealpoint/mealpoint/internal/stock"
	"github.com/mealpoint/mealpoint/internal/supply"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler       *auth.Handler
	CanteenHandler    *canteen.Handler
	MasterDataHandler *masterdata.Handler
	StockHandler      *stock.Handler
	SalesHandler      *sales.Handler
	SupplyHandler     *supply.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with MealPoint defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/time", serverTimeHandler(time.Now))

		params.AuthHandler.MountPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthService.Middleware)

			params.AuthHandler.MountRoutes(r)
			params.CanteenHandler.MountRoutes(r)
			params.MasterDataHandler.MountRoutes(r)
			params.StockHandler.MountRoutes(r)
			params.SalesHandler.MountRoutes(r)
			params.SupplyHandler.MountRoutes(r)
		})
	})

	return r
}
