package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

// Dependencies are the services mounted on the API router. Nil services
// still mount their routes and answer with INTERNAL_ERROR.
type Dependencies struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	IdempotencyStore redis.IdempotencyStore
	Checkout         checkoutsvc.Service
	StripeWebhook    webhookcontrollers.StripeWebhookService
	CartMerge        cartcontrollers.Merger
	Ship             ordercontrollers.Shipper
	Gatherer         prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Stripe authenticates with the signature header, not a bearer token.
	r.Post("/api/v1/payments/webhook", webhookcontrollers.StripeWebhook(deps.StripeWebhook, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.Idempotency(deps.IdempotencyStore, cfg.Checkout.IdempotencyTTL, logg)).Group(func(r chi.Router) {
			r.Post("/checkout/session", controllers.CheckoutSession(deps.Checkout, logg))
			r.Post("/cart/merge", cartcontrollers.Merge(deps.CartMerge, logg))
			r.Post("/orders/{orderId}/ship", ordercontrollers.Ship(deps.Ship, logg))
		})
	})

	return r
}
