package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/shared/statemachine"
)

// Status enumerates payment progression.
type Status string

const (
	StatusPending    Status = "PAYMENT_PENDING"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCaptured   Status = "CAPTURED"
	StatusCanceled   Status = "CANCELED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
)

var (
	ErrMissingOrder           = errors.New("payment order id is required")
	ErrNegativeAmount         = errors.New("payment amount must not be negative")
	ErrAmountMismatch         = errors.New("payment amount does not match order total")
	ErrInvalidStateTransition = errors.New("invalid payment state transition")
)

var transitions = statemachine.New[Status]("payment").
	Allow(StatusPending, StatusAuthorized, StatusCaptured, StatusCanceled, StatusFailed).
	Allow(StatusAuthorized, StatusCaptured, StatusCanceled, StatusFailed).
	Allow(StatusCaptured, StatusRefunded)

// Payment is the single charge attempt for an order.
type Payment struct {
	ID              string
	OrderID         string
	Amount          int64
	Status          Status
	PaymentKey      string
	GatewayOrderRef string
	FailureCode     string
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPayment creates a pending payment for orderID.
func NewPayment(id, orderID string, amount int64, now time.Time) (*Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrMissingOrder
	}
	if amount < 0 {
		return nil, ErrNegativeAmount
	}
	return &Payment{
		ID:        id,
		OrderID:   orderID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRejectedPayment records a request that never reached the gateway because it
// failed validation. The payment starts and stays FAILED.
func NewRejectedPayment(id, orderID string, amount int64, code, reason string, now time.Time) *Payment {
	return &Payment{
		ID:            id,
		OrderID:       orderID,
		Amount:        amount,
		Status:        StatusFailed,
		FailureCode:   code,
		FailureReason: reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsValidation reports whether err is a rejected payment request rather than an
// infrastructure failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingOrder) || errors.Is(err, ErrNegativeAmount)
}

// AttachIntent records the gateway correlation returned by intent creation.
func (p *Payment) AttachIntent(paymentKey, orderRef string, now time.Time) {
	p.PaymentKey = paymentKey
	p.GatewayOrderRef = orderRef
	p.UpdatedAt = now
}

// Authorize marks the gateway approval before the amount is verified.
func (p *Payment) Authorize(now time.Time) error {
	return p.transition(StatusAuthorized, now)
}

// Capture settles the payment. approved must equal Amount.
func (p *Payment) Capture(approved int64, now time.Time) error {
	if approved != p.Amount {
		return fmt.Errorf("%w: approved %d, expected %d", ErrAmountMismatch, approved, p.Amount)
	}
	return p.transition(StatusCaptured, now)
}

// Fail records a terminal gateway failure.
func (p *Payment) Fail(code, reason string, now time.Time) error {
	if err := p.transition(StatusFailed, now); err != nil {
		return err
	}
	p.FailureCode = code
	p.FailureReason = reason
	return nil
}

func (p *Payment) Cancel(now time.Time) error {
	return p.transition(StatusCanceled, now)
}

func (p *Payment) Refund(now time.Time) error {
	return p.transition(StatusRefunded, now)
}

// Terminal reports whether no further transitions are possible.
func (p *Payment) Terminal() bool {
	return transitions.Terminal(p.Status)
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Payment) transition(to Status, now time.Time) error {
	if err := transitions.Check(p.Status, to); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStateTransition, err)
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}
