package payments

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

const (
	// HandlePaymentRequestedActivityName runs the payment coordinator for one request.
	HandlePaymentRequestedActivityName = "payments.activities.HandlePaymentRequested"

	errTypeOrderNotFound = "OrderNotFound"
)

// PaymentOutcome is the activity result recorded in workflow history.
type PaymentOutcome struct {
	PaymentID string
	OrderID   string
	Status    string
	Duplicate bool
}

// Activities groups activities that operate on the payments bounded context.
type Activities struct {
	coordinator paymentsports.Coordinator
}

func NewActivities(coordinator paymentsports.Coordinator) *Activities {
	return &Activities{coordinator: coordinator}
}

// HandlePaymentRequested charges the order. Infrastructure errors are retried by the
// workflow; the gateway itself is called at most once per committed attempt because a
// failed attempt rolls back and a settled one turns later attempts into duplicates.
func (a *Activities) HandlePaymentRequested(ctx context.Context, req paymentsports.PaymentRequest) (*PaymentOutcome, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.coordinator == nil {
		logger.Error("payment activity not initialized", "orderId", req.OrderID)
		return nil, errors.New("payment activity not initialized")
	}
	logger.Info("HandlePaymentRequested activity started", "orderId", req.OrderID, "paymentId", req.PaymentID, "attempt", activity.GetInfo(ctx).Attempt)
	payment, err := a.coordinator.OnPaymentRequested(ctx, req)
	switch {
	case errors.Is(err, paymentsports.ErrDuplicatePayment):
		logger.Info("HandlePaymentRequested skipped duplicate", "orderId", req.OrderID)
		return &PaymentOutcome{PaymentID: req.PaymentID, OrderID: req.OrderID, Duplicate: true}, nil
	case errors.Is(err, paymentsports.ErrOrderNotFound):
		logger.Error("HandlePaymentRequested order missing", "orderId", req.OrderID)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeOrderNotFound, err)
	case err != nil:
		logger.Error("HandlePaymentRequested activity failed", "orderId", req.OrderID, "error", err)
		return nil, err
	}
	logger.Info("HandlePaymentRequested activity completed", "orderId", req.OrderID, "paymentId", payment.ID, "status", string(payment.Status))
	return &PaymentOutcome{PaymentID: payment.ID, OrderID: payment.OrderID, Status: string(payment.Status)}, nil
}
