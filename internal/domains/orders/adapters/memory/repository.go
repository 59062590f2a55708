package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter. Writes must run inside a
// txn.LocalManager unit of work and are undone when it rolls back.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewRepository() *Repository {
	return &Repository{orders: map[string]*domain.Order{}}
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}
	if !txn.InTx(ctx) {
		return txn.ErrNoTransaction
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	return txn.OnRollback(ctx, func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.orders, order.ID)
	})
}

func (r *Repository) Update(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}
	if !txn.InTx(ctx) {
		return txn.ErrNoTransaction
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.orders[order.ID]
	if !ok {
		return ports.ErrNotFound
	}
	r.orders[order.ID] = order.Clone()
	return txn.OnRollback(ctx, func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.orders[previous.ID] = previous
	})
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok || order.Deleted() {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

// GetForUpdate relies on txn.LocalManager serializing units of work.
func (r *Repository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}
