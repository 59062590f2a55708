package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	paymentworkflows "github.com/Apurer/delivery-order-engine/internal/platform/temporal/workflows/payments"
)

var (
	_ ports.Dispatcher = (*TemporalDispatcher)(nil)
	_ ports.Dispatcher = (*InlineDispatcher)(nil)
)

// TemporalDispatcher starts one durable workflow per order. The workflow id is derived
// from the order id, so redelivered requests collapse onto the first execution.
type TemporalDispatcher struct {
	client    client.Client
	taskQueue string
}

func NewTemporalDispatcher(c client.Client) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: paymentworkflows.PaymentRequestTaskQueue}
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, req ports.PaymentRequest) error {
	if d == nil || d.client == nil {
		return errors.New("temporal payment dispatcher not configured")
	}
	options := client.StartWorkflowOptions{
		ID:                    PaymentRequestWorkflowID(req.OrderID),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	_, err := d.client.ExecuteWorkflow(
		ctx,
		options,
		paymentworkflows.PaymentRequestWorkflowName,
		paymentworkflows.PaymentRequestWorkflowInput{Request: req, TraceID: workflowTraceID(ctx)},
	)
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		return nil
	}
	return err
}

// PaymentRequestWorkflowID is the deterministic workflow id for an order's payment.
func PaymentRequestWorkflowID(orderID string) string {
	return fmt.Sprintf("payment-request-%s", orderID)
}

// InlineDispatcher runs the coordinator in the caller's goroutine, useful for tests or
// dev fallbacks without Temporal.
type InlineDispatcher struct {
	coordinator ports.Coordinator
	logger      *slog.Logger
}

func NewInlineDispatcher(coordinator ports.Coordinator, logger *slog.Logger) *InlineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InlineDispatcher{coordinator: coordinator, logger: logger}
}

// Dispatch acknowledges duplicates and requests for orders that no longer exist,
// since redelivering them cannot succeed. Other errors are returned for retry.
func (d *InlineDispatcher) Dispatch(ctx context.Context, req ports.PaymentRequest) error {
	if d == nil || d.coordinator == nil {
		return errors.New("inline payment dispatcher not configured")
	}
	_, err := d.coordinator.OnPaymentRequested(ctx, req)
	switch {
	case errors.Is(err, ports.ErrDuplicatePayment):
		d.logger.InfoContext(ctx, "payment request already handled", slog.String("order.id", req.OrderID))
		return nil
	case errors.Is(err, ports.ErrOrderNotFound):
		d.logger.WarnContext(ctx, "payment requested for unknown order", slog.String("order.id", req.OrderID))
		return nil
	}
	return err
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
