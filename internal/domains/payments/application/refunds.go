package application

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

// Refunds voids the payment of an order the customer canceled. Captured payments
// are marked refunded; the money movement itself is settled with the gateway offline.
type Refunds struct {
	repo ports.Repository
	now  func() time.Time
}

func NewRefunds(repo ports.Repository) *Refunds {
	return &Refunds{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source for deterministic testing.
func (r *Refunds) WithClock(now func() time.Time) *Refunds {
	if now != nil {
		r.now = now
	}
	return r
}

// CancelForOrder runs inside the caller's transaction. Orders without a payment,
// or whose payment already ended, are left alone.
func (r *Refunds) CancelForOrder(ctx context.Context, orderID, _ string) error {
	payment, err := r.repo.GetByOrderID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	switch payment.Status {
	case domain.StatusCaptured:
		err = payment.Refund(r.now())
	case domain.StatusPending, domain.StatusAuthorized:
		err = payment.Cancel(r.now())
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return r.repo.Update(ctx, payment)
}
