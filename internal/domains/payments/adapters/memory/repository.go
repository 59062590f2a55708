package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory payment store keyed by order id.
type Repository struct {
	mu      sync.RWMutex
	byOrder map[string]*domain.Payment
}

func NewRepository() *Repository {
	return &Repository{byOrder: map[string]*domain.Payment{}}
}

func (r *Repository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return errors.New("payment is nil")
	}
	if !txn.InTx(ctx) {
		return txn.ErrNoTransaction
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byOrder[payment.OrderID]; ok {
		return fmt.Errorf("%w: order %s already has payment %s", ports.ErrDuplicatePayment, payment.OrderID, existing.ID)
	}
	r.byOrder[payment.OrderID] = payment.Clone()
	return txn.OnRollback(ctx, func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byOrder, payment.OrderID)
	})
}

func (r *Repository) Update(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return errors.New("payment is nil")
	}
	if !txn.InTx(ctx) {
		return txn.ErrNoTransaction
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.byOrder[payment.OrderID]
	if !ok || previous.ID != payment.ID {
		return ports.ErrNotFound
	}
	r.byOrder[payment.OrderID] = payment.Clone()
	return txn.OnRollback(ctx, func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byOrder[previous.OrderID] = previous
	})
}

func (r *Repository) GetByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment, ok := r.byOrder[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return payment.Clone(), nil
}
