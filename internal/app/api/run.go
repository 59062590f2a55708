package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	orderserver "github.com/Apurer/delivery-order-engine/go"
	paymentsworkflows "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/workflows"
	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	platformobservability "github.com/Apurer/delivery-order-engine/internal/platform/observability"
	platformtemporal "github.com/Apurer/delivery-order-engine/internal/platform/temporal"
)

const serviceName = "delivery-order-api"

// Run boots the order API with observability, storage, the outbox relay, and the
// payment dispatcher wired. It returns when ctx is canceled or a component fails.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	components, cleanup, err := Build(ctx, cfg, instruments)
	if err != nil {
		return err
	}
	defer cleanup()

	dispatcher, closeDispatcher := buildDispatcher(cfg, components, instruments)
	defer closeDispatcher()
	components.UseDispatcher(dispatcher)

	responder := orderserver.NewResponder(logger)
	gin.SetMode(gin.ReleaseMode)
	router := orderserver.NewRouter(orderserver.RouterConfig{
		ServiceName:    serviceName,
		Responder:      responder,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        instruments.MetricsHandler(),
		HealthChecks:   healthChecks(components),
	}, orderserver.ApiHandleFunctions{
		OrderAPI: orderserver.NewOrderAPI(components.Orders, components.Payments, components.Stores, responder),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return components.Relay.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("order API listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("order API server exited: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("order API stopped with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("order API stopped")
	return nil
}

// buildDispatcher prefers Temporal and falls back to settling payments in-process.
func buildDispatcher(cfg Config, components *Components, instruments *platformobservability.Instruments) (paymentsports.Dispatcher, func()) {
	logger := effectiveLogger(instruments)
	inline := paymentsworkflows.NewInlineDispatcher(components.Coordinator, logger)
	if cfg.TemporalDisabled {
		logger.Warn("Temporal disabled, settling payments inline")
		return inline, func() {}
	}
	temporalClient, err := platformtemporal.Dial(platformtemporal.ClientConfig{
		Address:   cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	}, instruments.Tracer("temporal-client"), logger)
	if err != nil {
		logger.Warn("Temporal workflows unavailable, settling payments inline", slog.String("error", err.Error()))
		return inline, func() {}
	}
	logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	return paymentsworkflows.NewTemporalDispatcher(temporalClient), temporalClient.Close
}

func healthChecks(components *Components) map[string]orderserver.HealthCheck {
	checks := map[string]orderserver.HealthCheck{}
	if components.DB != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := components.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if components.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return components.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
