// Package orders adapts the orders bounded context to the payment coordinator.
package orders

import (
	"context"
	"errors"
	"time"

	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

var _ ports.Orders = (*Settlement)(nil)

// Settlement applies payment outcomes through the order repository.
type Settlement struct {
	repo ordersports.Repository
	now  func() time.Time
}

func NewSettlement(repo ordersports.Repository) *Settlement {
	return &Settlement{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source for deterministic testing.
func (s *Settlement) WithClock(now func() time.Time) *Settlement {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Settlement) LockForPayment(ctx context.Context, orderID string) (*ports.OrderSnapshot, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &ports.OrderSnapshot{
		ID:              order.ID,
		TotalPrice:      order.TotalPrice,
		Status:          string(order.Status),
		AwaitingPayment: order.Status == ordersdomain.StatusPaymentPending,
	}, nil
}

func (s *Settlement) MarkPaid(ctx context.Context, orderID, actor string) error {
	return s.apply(ctx, orderID, func(order *ordersdomain.Order) error {
		return order.MarkPaid(actor, s.now())
	})
}

func (s *Settlement) CancelUnpaid(ctx context.Context, orderID, actor string) error {
	return s.apply(ctx, orderID, func(order *ordersdomain.Order) error {
		return order.CancelForFailedPayment(actor, s.now())
	})
}

func (s *Settlement) apply(ctx context.Context, orderID string, change func(*ordersdomain.Order) error) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if err := change(order); err != nil {
		return err
	}
	return s.repo.Update(ctx, order)
}

func (s *Settlement) load(ctx context.Context, orderID string) (*ordersdomain.Order, error) {
	order, err := s.repo.GetForUpdate(ctx, orderID)
	if errors.Is(err, ordersports.ErrNotFound) {
		return nil, errors.Join(ports.ErrOrderNotFound, err)
	}
	return order, err
}
