package payments

import (
	"go.temporal.io/sdk/workflow"

	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	paymentactivities "github.com/Apurer/delivery-order-engine/internal/platform/temporal/activities/payments"
	"github.com/Apurer/delivery-order-engine/internal/platform/temporal/sequences"
)

const (
	// PaymentRequestWorkflowName is the public identifier for registering the workflow.
	PaymentRequestWorkflowName = "payments.workflows.PaymentRequest"
	// PaymentRequestTaskQueue is the queue consumed by the payment worker.
	PaymentRequestTaskQueue = "PAYMENT_REQUESTS"
)

// PaymentRequestWorkflowInput captures the committed payment request.
type PaymentRequestWorkflowInput struct {
	Request paymentsports.PaymentRequest
	TraceID string
}

// PaymentRequestWorkflow settles one order's payment.
func PaymentRequestWorkflow(ctx workflow.Context, input PaymentRequestWorkflowInput) (*paymentactivities.PaymentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	orderID := input.Request.OrderID
	logger.Info("PaymentRequestWorkflow started", withTraceID(input.TraceID, "orderId", orderID)...)
	outcome, err := sequences.RunPaymentRequestSequence(ctx, input.Request)
	if err != nil {
		logger.Error("PaymentRequestWorkflow failed", withTraceID(input.TraceID, "orderId", orderID, "error", err)...)
		return nil, err
	}
	logger.Info("PaymentRequestWorkflow completed", withTraceID(input.TraceID, "orderId", orderID, "status", outcome.Status)...)
	return outcome, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
