package ports

import (
	"context"
	"errors"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
)

var ErrNotFound = errors.New("order not found")

// Repository persists orders. Soft-deleted orders are invisible to every read.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetForUpdate loads the order and holds a row lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
}
