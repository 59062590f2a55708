package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/app/api"
	orderspostgres "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/persistence/postgres"
	"github.com/Apurer/delivery-order-engine/internal/platform/observability"
	"github.com/Apurer/delivery-order-engine/internal/platform/outbox"
	platformpostgres "github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

// Deletes dispatched outbox messages and stale idempotency keys older than
// OUTBOX_RETENTION. Meant to run as a cron job.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(observability.NewTraceHandler(slog.NewJSONHandler(os.Stdout, nil)))
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	db, cleanup := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; nothing to purge")
	}

	cutoff := time.Now().UTC().Add(-cfg.OutboxRetention)
	messages, err := outbox.NewPostgresStore(db).PurgeDispatched(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge outbox messages: %v", err)
	}
	keys, err := orderspostgres.NewIdempotencyStore(db).Purge(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge idempotency keys: %v", err)
	}
	logger.Info("purge completed",
		slog.Time("cutoff", cutoff),
		slog.Int64("outbox_messages", messages),
		slog.Int64("idempotency_keys", keys))
}
