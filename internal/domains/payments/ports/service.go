package ports

import (
	"context"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
)

// PaymentRequest mirrors the orders.payment.requested event payload.
type PaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
}

// Coordinator charges an order and applies the result to both aggregates.
type Coordinator interface {
	OnPaymentRequested(ctx context.Context, req PaymentRequest) (*domain.Payment, error)
}

// Dispatcher hands a payment request to whatever runs the Coordinator. A nil error
// means the request was accepted and need not be redelivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, req PaymentRequest) error
}

// Service exposes payment queries to adapters.
type Service interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
}
