package api

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Apurer/delivery-order-engine/internal/clients/http/paymentgateway"
	ordersmemory "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/observability"
	ordersoutbox "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/outbox"
	orderspostgres "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/persistence/postgres"
	ordersredis "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/redis"
	ordersapp "github.com/Apurer/delivery-order-engine/internal/domains/orders/application"
	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	paymentsgateway "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/gateway"
	paymentsmemory "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/memory"
	paymentsobs "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/observability"
	paymentsorders "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/orders"
	paymentspostgres "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/persistence/postgres"
	paymentsworkflows "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/workflows"
	paymentsapp "github.com/Apurer/delivery-order-engine/internal/domains/payments/application"
	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/migrations"
	platformobservability "github.com/Apurer/delivery-order-engine/internal/platform/observability"
	"github.com/Apurer/delivery-order-engine/internal/platform/outbox"
	platformpostgres "github.com/Apurer/delivery-order-engine/internal/platform/postgres"
	platformredis "github.com/Apurer/delivery-order-engine/internal/platform/redis"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

// Components is the object graph shared by the API, worker, and purger processes.
type Components struct {
	Orders      ordersports.Service
	Stores      ordersports.StoreReader
	Payments    paymentsports.Service
	Coordinator paymentsports.Coordinator
	Outbox      outbox.Store
	Relay       *outbox.Relay
	DB          *gorm.DB
	Redis       *goredis.Client

	// Catalog is set only in memory mode so local runs can seed stores and products.
	Catalog *ordersmemory.Catalog
	Gateway paymentsports.Gateway
}

// adapters is the storage-specific half of the graph.
type adapters struct {
	tx          txn.Manager
	orders      ordersports.Repository
	catalog     ordersports.CatalogReader
	stores      ordersports.StoreReader
	idempotency ordersports.IdempotencyStore
	payments    paymentsports.Repository
	outbox      outbox.Store
}

// Build connects storage, falling back to memory when Postgres is not configured,
// and wires both bounded contexts. The returned cleanup closes connections.
func Build(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*Components, func(), error) {
	logger := effectiveLogger(instruments)

	db, closeDB := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	rdb, closeRedis := platformredis.ConnectOrFallback(ctx, cfg.RedisAddr, logger)
	cleanup := func() {
		closeRedis()
		closeDB()
	}

	var (
		store   adapters
		catalog *ordersmemory.Catalog
	)
	if db != nil {
		if err := migrations.Run(db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		store = postgresAdapters(db)
	} else {
		catalog = ordersmemory.NewCatalog()
		store = memoryAdapters(catalog)
	}
	if rdb != nil {
		store.idempotency = ordersredis.NewIdempotencyStore(rdb)
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	relay := outbox.NewRelay(store.outbox,
		outbox.WithLogger(logger),
		outbox.WithMeter(instruments.Meter("internal.platform.outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithConcurrency(cfg.OutboxConcurrency),
	)

	coordinator := paymentsobs.NewCoordinator(
		paymentsapp.NewCoordinator(store.payments, paymentsorders.NewSettlement(store.orders), gateway, store.tx,
			paymentsapp.WithGatewayTimeout(cfg.GatewayTimeout)),
		paymentsobs.WithLogger(logger),
		paymentsobs.WithTracer(instruments.Tracer("internal.payments.application")),
		paymentsobs.WithMeter(instruments.Meter("internal.payments.application")),
	)

	orders := ordersobs.New(
		ordersapp.NewService(store.orders, store.catalog, store.stores, ordersoutbox.NewPublisher(store.outbox, relay), store.tx,
			ordersapp.WithIdempotencyStore(store.idempotency),
			ordersapp.WithPaymentCanceller(paymentsapp.NewRefunds(store.payments)),
		),
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	return &Components{
		Orders:      orders,
		Stores:      store.stores,
		Payments:    paymentsapp.NewService(store.payments),
		Coordinator: coordinator,
		Outbox:      store.outbox,
		Relay:       relay,
		DB:          db,
		Redis:       rdb,
		Catalog:     catalog,
		Gateway:     gateway,
	}, cleanup, nil
}

// UseDispatcher routes committed payment requests to dispatcher.
func (c *Components) UseDispatcher(dispatcher paymentsports.Dispatcher) {
	c.Relay.Register(ordersdomain.PaymentRequestedEvent, paymentsworkflows.NewPaymentRequestedHandler(dispatcher))
}

func postgresAdapters(db *gorm.DB) adapters {
	catalog := orderspostgres.NewCatalog(db)
	return adapters{
		tx:          platformpostgres.NewTxManager(db),
		orders:      orderspostgres.NewRepository(db),
		catalog:     catalog,
		stores:      catalog,
		idempotency: orderspostgres.NewIdempotencyStore(db),
		payments:    paymentspostgres.NewRepository(db),
		outbox:      outbox.NewPostgresStore(db),
	}
}

func memoryAdapters(catalog *ordersmemory.Catalog) adapters {
	return adapters{
		tx:          txn.NewLocalManager(),
		orders:      ordersmemory.NewRepository(),
		catalog:     catalog,
		stores:      catalog,
		idempotency: ordersmemory.NewIdempotencyStore(),
		payments:    paymentsmemory.NewRepository(),
		outbox:      outbox.NewMemoryStore(),
	}
}

func buildGateway(cfg Config, logger *slog.Logger) (paymentsports.Gateway, error) {
	if cfg.GatewayURL == "" {
		logger.Warn("PAYMENT_GATEWAY_URL not set, charging against the in-process sandbox gateway")
		return paymentsgateway.NewSandbox(), nil
	}
	client, err := paymentgateway.NewClient(cfg.GatewayURL,
		paymentgateway.WithSecretKey(cfg.GatewaySecret),
		paymentgateway.WithRateLimit(cfg.GatewayRPS, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("configure payment gateway client: %w", err)
	}
	logger.Info("payment gateway configured", slog.String("url", cfg.GatewayURL))
	return paymentsgateway.NewHTTPGateway(client), nil
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.Default()
}
