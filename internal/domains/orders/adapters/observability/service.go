package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/observability/service"

// Service decorates the order service with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core order service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.Default(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) PlaceOrder(ctx context.Context, input ports.PlaceOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder",
		trace.WithAttributes(
			attribute.String("order.customer_id", input.CustomerID),
			attribute.String("order.store_id", input.StoreID),
			attribute.Int("order.item_lines", len(input.Items)),
		))
	defer span.End()

	s.logInfo(ctx, "placing order", slog.String("store.id", input.StoreID), slog.String("customer.id", input.CustomerID))
	result, err := s.inner.PlaceOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to place order", slog.String("store.id", input.StoreID))
	}
	span.SetAttributes(attribute.String("order.id", result.ID), attribute.Int64("order.total_price", result.TotalPrice))
	s.metrics.recordPlaced(ctx, result.Status)
	s.logInfo(ctx, "order placed",
		slog.String("order.id", result.ID),
		slog.Int64("order.total_price", result.TotalPrice),
		slog.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", orderID))
	}
	span.SetAttributes(attribute.String("order.status", string(result.Status)))
	return result, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, "OrderService.CancelOrder", orderID, actor, s.inner.CancelOrder)
}

func (s *Service) AcceptOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, "OrderService.AcceptOrder", orderID, actor, s.inner.AcceptOrder)
}

func (s *Service) RejectOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, "OrderService.RejectOrder", orderID, actor, s.inner.RejectOrder)
}

func (s *Service) StartDelivery(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, "OrderService.StartDelivery", orderID, actor, s.inner.StartDelivery)
}

func (s *Service) CompleteDelivery(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, "OrderService.CompleteDelivery", orderID, actor, s.inner.CompleteDelivery)
}

func (s *Service) DeleteOrder(ctx context.Context, orderID, actor string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	s.logInfo(ctx, "deleting order", slog.String("order.id", orderID), slog.String("actor", actor))
	if err := s.inner.DeleteOrder(ctx, orderID, actor); err != nil {
		return s.handleError(ctx, span, err, "failed to delete order", slog.String("order.id", orderID))
	}
	s.metrics.recordDeleted(ctx)
	s.logInfo(ctx, "order deleted", slog.String("order.id", orderID))
	return nil
}

type transitionFunc func(ctx context.Context, orderID, actor string) (ports.TransitionResult, error)

func (s *Service) transition(ctx context.Context, op, orderID, actor string, fn transitionFunc) (ports.TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	result, err := fn(ctx, orderID, actor)
	if err != nil {
		return ports.TransitionResult{}, s.handleError(ctx, span, err, "order transition rejected",
			slog.String("operation", op), slog.String("order.id", orderID), slog.String("actor", actor))
	}
	span.SetAttributes(attribute.String("order.status", string(result.Status)))
	s.metrics.recordTransition(ctx, result.Status)
	s.logInfo(ctx, "order transitioned",
		slog.String("order.id", result.OrderID),
		slog.String("status", string(result.Status)),
		slog.String("actor", actor))
	return result, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

type serviceMetrics struct {
	ordersPlaced  metric.Int64Counter
	transitions   metric.Int64Counter
	ordersDeleted metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	ordersPlaced, _ := m.Int64Counter("orders.service.orders_placed", metric.WithDescription("Number of orders placed"))
	transitions, _ := m.Int64Counter("orders.service.transitions", metric.WithDescription("Order status transitions by resulting status"))
	ordersDeleted, _ := m.Int64Counter("orders.service.orders_deleted", metric.WithDescription("Number of orders soft deleted"))
	return serviceMetrics{ordersPlaced: ordersPlaced, transitions: transitions, ordersDeleted: ordersDeleted}
}

func (m serviceMetrics) recordPlaced(ctx context.Context, status domain.Status) {
	if m.ordersPlaced != nil {
		m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m serviceMetrics) recordTransition(ctx context.Context, status domain.Status) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m serviceMetrics) recordDeleted(ctx context.Context) {
	if m.ordersDeleted != nil {
		m.ordersDeleted.Add(ctx, 1)
	}
}

var _ ports.Service = (*Service)(nil)
