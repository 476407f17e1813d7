package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/printforge/printforge-backend/api/routes"
	"github.com/printforge/printforge-backend/internal/audit"
	"github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/internal/fulfillment"
	"github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/internal/payments"
	"github.com/printforge/printforge-backend/internal/pricing"
	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/gateway"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/migrate"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/outbox/idempotency"
	"github.com/printforge/printforge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gateway client", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		ordersRepo,
		dbClient,
		outboxSvc,
		gatewayClient,
		pricing.FixedRateTax(cfg.Pricing.TaxRateBps),
		pricing.FlatShipping(int64(cfg.Pricing.ShippingFlatCents)),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Reconciler.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.NewRepository(dbClient.DB()), ordersSvc, ordersRepo, guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	fulfillmentSvc, err := fulfillment.NewService(ordersSvc, guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	auditSvc, err := audit.NewService(audit.NewRepository(dbClient.DB()), outbox.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:             cfg,
			Logger:             logg,
			DBPinger:           dbClient,
			RedisClient:        redisClient,
			GatewayClient:      gatewayClient,
			CheckoutService:    checkoutSvc,
			OrdersService:      ordersSvc,
			PaymentsService:    paymentsSvc,
			FulfillmentService: fulfillmentSvc,
			AuditService:       auditSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
