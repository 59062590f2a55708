package ports

import (
	"context"
	"errors"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrDuplicatePayment is returned when an order already has a payment.
	ErrDuplicatePayment = errors.New("duplicate payment")
)

// Repository persists payments. Each order has at most one payment.
type Repository interface {
	// Create returns ErrDuplicatePayment when the order already has a payment.
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
}
