package ports

import (
	"context"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
)

// ItemRequest asks for Quantity units of ProductID.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput carries a placement request.
type PlaceOrderInput struct {
	CustomerID     string
	StoreID        string
	Items          []ItemRequest
	Address        string
	Memo           string
	IdempotencyKey string
}

// TransitionResult is returned by every status-changing action.
type TransitionResult struct {
	OrderID string
	Status  domain.Status
}

// Service exposes the order lifecycle use cases to adapters.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, actor string) (TransitionResult, error)
	AcceptOrder(ctx context.Context, orderID, actor string) (TransitionResult, error)
	RejectOrder(ctx context.Context, orderID, actor string) (TransitionResult, error)
	StartDelivery(ctx context.Context, orderID, actor string) (TransitionResult, error)
	CompleteDelivery(ctx context.Context, orderID, actor string) (TransitionResult, error)
	DeleteOrder(ctx context.Context, orderID, actor string) error
}
