package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printforge/printforge-backend/api/controllers"
	ordercontrollers "github.com/printforge/printforge-backend/api/controllers/orders"
	webhookcontrollers "github.com/printforge/printforge-backend/api/controllers/webhooks"
	"github.com/printforge/printforge-backend/api/middleware"
	"github.com/printforge/printforge-backend/internal/audit"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/internal/fulfillment"
	"github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/internal/payments"
	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/gateway"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/redis"
)

type RouterParams struct {
	Config             *config.Config
	Logger             *logger.Logger
	DBPinger           db.Pinger
	RedisClient        *redis.Client
	GatewayClient      *gateway.Client
	CheckoutService    checkoutsvc.Service
	OrdersService      orders.Service
	PaymentsService    payments.Service
	FulfillmentService fulfillment.Service
	AuditService       audit.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DBPinger, p.RedisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(p.PaymentsService, p.GatewayClient, p.Logger))
		r.Post("/fulfillment", webhookcontrollers.FulfillmentWebhook(p.FulfillmentService, p.Config.Fulfillment.Secret, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.RedisClient, p.Logger))

		r.Post("/checkout", controllers.Checkout(p.CheckoutService, p.Logger))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.OrdersService, p.Logger))
			r.Get("/{orderId}", ordercontrollers.Detail(p.OrdersService, p.Logger))
			r.Post("/{orderId}/cancel", ordercontrollers.CancelOrder(p.OrdersService, p.Logger))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.RedisClient, p.Logger))

		r.Get("/deliveries", controllers.DeliveryLog(p.AuditService, p.Logger))
		r.Post("/transitions/{transitionId}/redispatch", controllers.RedispatchTransition(p.AuditService, p.Logger))
	})

	return r
}
