package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

const (
	// SystemActor is recorded as modifier for changes made by the coordinator.
	SystemActor = "system"

	defaultGatewayTimeout = 10 * time.Second
)

// Failure codes stored on failed payments.
const (
	FailureDeclined       = "DECLINED"
	FailureAmountMismatch = "AMOUNT_MISMATCH"
	FailureTimeout        = "GATEWAY_TIMEOUT"
	FailureGateway        = "GATEWAY_ERROR"
	FailureInvalid        = "INVALID_REQUEST"
)

// Coordinator charges orders through the gateway once their placement committed.
// The payment row, the gateway call, and the resulting order status change share
// one transaction that holds the order row lock.
type Coordinator struct {
	repo    ports.Repository
	orders  ports.Orders
	gateway ports.Gateway
	tx      txn.Manager
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type CoordinatorOption func(*Coordinator)

// WithGatewayTimeout bounds each gateway round trip. An expired deadline counts as a failure.
func WithGatewayTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoordinator(repo ports.Repository, orders ports.Orders, gateway ports.Gateway, tx txn.Manager, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		repo:    repo,
		orders:  orders,
		gateway: gateway,
		tx:      tx,
		timeout: defaultGatewayTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// OnPaymentRequested creates the order's payment and settles it. A second delivery
// for the same order fails with ports.ErrDuplicatePayment. Invalid requests and
// gateway failures are not returned: they are compensated by failing the payment and
// canceling the order. Only infrastructure errors abort the transaction.
func (c *Coordinator) OnPaymentRequested(ctx context.Context, req ports.PaymentRequest) (*domain.Payment, error) {
	var result *domain.Payment
	err := c.tx.Do(ctx, func(ctx context.Context) error {
		order, err := c.orders.LockForPayment(ctx, req.OrderID)
		if err != nil {
			return err
		}
		existing, err := c.repo.GetByOrderID(ctx, req.OrderID)
		switch {
		case err == nil && existing != nil:
			return fmt.Errorf("%w: order %s already has payment %s", ports.ErrDuplicatePayment, req.OrderID, existing.ID)
		case err != nil && !errors.Is(err, ports.ErrNotFound):
			return err
		}

		id := req.PaymentID
		if id == "" {
			id = c.newID()
		}
		payment, err := domain.NewPayment(id, req.OrderID, req.Amount, c.now())
		if domain.IsValidation(err) {
			result, err = c.reject(ctx, id, req, order, err)
			return err
		}
		if err != nil {
			return err
		}
		if err := c.repo.Create(ctx, payment); err != nil {
			return err
		}

		if !order.AwaitingPayment {
			// The customer canceled before the charge; nothing is sent to the gateway.
			if err := payment.Cancel(c.now()); err != nil {
				return err
			}
		} else if chargeErr := c.charge(ctx, payment, order); chargeErr != nil {
			if err := payment.Fail(failureCode(chargeErr), chargeErr.Error(), c.now()); err != nil {
				return err
			}
			if err := c.orders.CancelUnpaid(ctx, order.ID, SystemActor); err != nil {
				return err
			}
		} else if err := c.orders.MarkPaid(ctx, order.ID, SystemActor); err != nil {
			return err
		}

		if err := c.repo.Update(ctx, payment); err != nil {
			return err
		}
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reject stores a FAILED payment for a request that cannot be charged and releases
// the order if it is still waiting on this payment.
func (c *Coordinator) reject(ctx context.Context, id string, req ports.PaymentRequest, order *ports.OrderSnapshot, cause error) (*domain.Payment, error) {
	payment := domain.NewRejectedPayment(id, req.OrderID, req.Amount, failureCode(cause), cause.Error(), c.now())
	if err := c.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	if order.AwaitingPayment {
		if err := c.orders.CancelUnpaid(ctx, order.ID, SystemActor); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// charge runs intent creation and confirmation. Any returned error means the
// payment must be compensated; an unknown gateway outcome is treated as a failure.
func (c *Coordinator) charge(ctx context.Context, payment *domain.Payment, order *ports.OrderSnapshot) error {
	if payment.Amount != order.TotalPrice {
		return fmt.Errorf("%w: requested %d, order total %d", domain.ErrAmountMismatch, payment.Amount, order.TotalPrice)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	intent, err := c.gateway.CreateIntent(callCtx, ports.IntentRequest{OrderID: order.ID, Amount: payment.Amount})
	if err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	payment.AttachIntent(intent.PaymentKey, order.ID, c.now())

	confirmation, err := c.gateway.Confirm(callCtx, ports.ConfirmRequest{
		PaymentKey: intent.PaymentKey,
		OrderRef:   order.ID,
		Amount:     payment.Amount,
	})
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	if !confirmation.Approved {
		return fmt.Errorf("%w: %s %s", ports.ErrPaymentDeclined, confirmation.Code, confirmation.Message)
	}
	if err := payment.Authorize(c.now()); err != nil {
		return err
	}
	return payment.Capture(confirmation.ApprovedAmount, c.now())
}

func failureCode(err error) string {
	switch {
	case domain.IsValidation(err):
		return FailureInvalid
	case errors.Is(err, domain.ErrAmountMismatch):
		return FailureAmountMismatch
	case errors.Is(err, ports.ErrPaymentDeclined):
		return FailureDeclined
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureGateway
	}
}

var _ ports.Coordinator = (*Coordinator)(nil)
