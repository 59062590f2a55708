package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	paymentactivities "github.com/Apurer/delivery-order-engine/internal/platform/temporal/activities/payments"
)

// RunPaymentRequestSequence executes the coordinator activity with a retry policy for
// infrastructure failures.
func RunPaymentRequestSequence(ctx workflow.Context, req paymentsports.PaymentRequest) (*paymentactivities.PaymentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("payment request sequence started", "orderId", req.OrderID)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    10,
		},
	}

	var outcome paymentactivities.PaymentOutcome
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), paymentactivities.HandlePaymentRequestedActivityName, req).Get(ctx, &outcome)
	if err != nil {
		logger.Error("payment request sequence failed", "orderId", req.OrderID, "error", err)
		return nil, err
	}
	logger.Info("payment request sequence completed", "orderId", req.OrderID, "status", outcome.Status, "duplicate", outcome.Duplicate)
	return &outcome, nil
}
