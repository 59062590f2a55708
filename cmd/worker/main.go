package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/delivery-order-engine/internal/app/api"
	platformobservability "github.com/Apurer/delivery-order-engine/internal/platform/observability"
	platformtemporal "github.com/Apurer/delivery-order-engine/internal/platform/temporal"
	paymentactivities "github.com/Apurer/delivery-order-engine/internal/platform/temporal/activities/payments"
	paymentworkflows "github.com/Apurer/delivery-order-engine/internal/platform/temporal/workflows/payments"
)

func main() {
	ctx := context.Background()
	const serviceName = "delivery-payment-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := api.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set; the worker will settle payments against its own in-memory store")
	}
	components, cleanup, err := api.Build(ctx, cfg, instruments)
	if err != nil {
		logger.Error("failed to build components", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	temporalClient, err := platformtemporal.Dial(platformtemporal.ClientConfig{
		Address:   cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	}, instruments.Tracer("temporal-worker"), logger)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	activities := paymentactivities.NewActivities(components.Coordinator)
	w := worker.New(temporalClient, paymentworkflows.PaymentRequestTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(paymentworkflows.PaymentRequestWorkflow, workflow.RegisterOptions{Name: paymentworkflows.PaymentRequestWorkflowName})
	w.RegisterActivityWithOptions(activities.HandlePaymentRequested, activity.RegisterOptions{Name: paymentactivities.HandlePaymentRequestedActivityName})

	logger.Info("worker listening", slog.String("taskQueue", paymentworkflows.PaymentRequestTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
