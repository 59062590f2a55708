package observability

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

const tracerName = "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/observability/coordinator"

// Coordinator decorates the payment coordinator with tracing, logging, and outcome metrics.
type Coordinator struct {
	inner   ports.Coordinator
	tracer  trace.Tracer
	logger  *slog.Logger
	outcome metric.Int64Counter
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(c *Coordinator) {
		if m == nil {
			return
		}
		c.outcome, _ = m.Int64Counter("payments.coordinator.outcomes",
			metric.WithDescription("Payment requests handled, by resulting payment status"))
	}
}

func NewCoordinator(inner ports.Coordinator, opts ...Option) ports.Coordinator {
	c := &Coordinator{
		inner:  inner,
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.tracer == nil {
		c.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return c
}

func (c *Coordinator) OnPaymentRequested(ctx context.Context, req ports.PaymentRequest) (*domain.Payment, error) {
	ctx, span := c.tracer.Start(ctx, "PaymentCoordinator.OnPaymentRequested",
		trace.WithAttributes(
			attribute.String("order.id", req.OrderID),
			attribute.String("payment.id", req.PaymentID),
			attribute.Int64("payment.amount", req.Amount),
		))
	defer span.End()

	payment, err := c.inner.OnPaymentRequested(ctx, req)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicatePayment) {
			c.record(ctx, "DUPLICATE")
			c.log(ctx, slog.LevelInfo, "duplicate payment request ignored", slog.String("order.id", req.OrderID))
			return payment, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log(ctx, slog.LevelError, "payment request failed",
			slog.String("order.id", req.OrderID), slog.String("error", err.Error()))
		return payment, err
	}

	span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
	c.record(ctx, string(payment.Status))
	attrs := []slog.Attr{
		slog.String("order.id", payment.OrderID),
		slog.String("payment.id", payment.ID),
		slog.String("payment.status", string(payment.Status)),
	}
	if payment.FailureCode != "" {
		attrs = append(attrs, slog.String("payment.failure_code", payment.FailureCode))
		c.log(ctx, slog.LevelWarn, "payment settled without charge", attrs...)
		return payment, nil
	}
	c.log(ctx, slog.LevelInfo, "payment settled", attrs...)
	return payment, nil
}

func (c *Coordinator) record(ctx context.Context, status string) {
	if c.outcome != nil {
		c.outcome.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.status", status)))
	}
}

func (c *Coordinator) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}

var _ ports.Coordinator = (*Coordinator)(nil)
