package ports

import (
	"context"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
)

// EventPublisher hands domain events to the transport. Publish must be called inside a
// transaction; the event becomes visible to consumers only after that transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// PaymentCanceller voids the payment attached to an order that a customer canceled.
type PaymentCanceller interface {
	CancelForOrder(ctx context.Context, orderID, actor string) error
}
