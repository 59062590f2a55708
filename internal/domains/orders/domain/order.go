package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Apurer/delivery-order-engine/internal/shared/statemachine"
)

// Status enumerates order progression.
type Status string

const (
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusPaid           Status = "PAID"
	StatusAccepted       Status = "ACCEPTED"
	StatusRejected       Status = "REJECTED"
	StatusCanceled       Status = "CANCELED"
	StatusDelivering     Status = "DELIVERING"
	StatusDelivered      Status = "DELIVERED"
)

const (
	// CancelWindow bounds how long after placement a customer may cancel.
	CancelWindow = 5 * time.Minute

	MaxAddressLength = 255
	MaxMemoLength    = 500
	// MaxLineQuantity caps the units of one product in a single order.
	MaxLineQuantity = 999
)

var (
	ErrMissingCustomer  = errors.New("customer id is required")
	ErrMissingStore     = errors.New("store id is required")
	ErrNoLineItems      = errors.New("order must contain at least one line item")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrQuantityTooLarge = fmt.Errorf("quantity exceeds %d", MaxLineQuantity)
	ErrTotalOverflow    = errors.New("order total exceeds the supported amount")
	ErrInvalidUnitPrice = errors.New("unit price must not be negative")
	ErrMissingProduct   = errors.New("line item product id is required")
	ErrAddressTooLong   = fmt.Errorf("address exceeds %d characters", MaxAddressLength)
	ErrMemoTooLong      = fmt.Errorf("memo exceeds %d characters", MaxMemoLength)

	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrCancelWindowExpired    = fmt.Errorf("%w: cancel window of %s expired", ErrInvalidStateTransition, CancelWindow)
	ErrAlreadyDeleted         = errors.New("order already deleted")
)

var transitions = statemachine.New[Status]("order").
	Allow(StatusPaymentPending, StatusPaid, StatusCanceled).
	Allow(StatusPaid, StatusCanceled, StatusAccepted, StatusRejected).
	Allow(StatusAccepted, StatusDelivering, StatusDelivered).
	Allow(StatusDelivering, StatusDelivered)

// Audit tracks who created, modified, and soft deleted a record.
type Audit struct {
	CreatedAt  time.Time
	CreatedBy  string
	ModifiedAt time.Time
	ModifiedBy string
	DeletedAt  *time.Time
	DeletedBy  string
}

// Deleted reports whether the record was soft deleted.
func (a Audit) Deleted() bool { return a.DeletedAt != nil }

func (a *Audit) touch(actor string, at time.Time) {
	a.ModifiedAt = at
	a.ModifiedBy = actor
}

// LineItem is a priced snapshot of a catalog product taken at placement time.
// Later catalog edits never change it.
type LineItem struct {
	ProductID   string
	ProductName string
	UnitPrice   int64
	Quantity    int
}

// Subtotal is UnitPrice * Quantity.
func (l LineItem) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Order models the customer order aggregate. Amounts are in the currency's minor unit.
type Order struct {
	ID           string
	CustomerID   string
	StoreID      string
	LineItems    []LineItem
	TotalPrice   int64
	ProductCount int
	Status       Status
	Address      string
	Memo         string
	Audit
}

// NewOrderParams groups the inputs for NewOrder.
type NewOrderParams struct {
	ID         string
	CustomerID string
	StoreID    string
	LineItems  []LineItem
	Address    string
	Memo       string
	PlacedAt   time.Time
}

// NewOrder validates the snapshots and builds an order awaiting payment.
func NewOrder(p NewOrderParams) (*Order, error) {
	order := &Order{
		ID:         p.ID,
		CustomerID: strings.TrimSpace(p.CustomerID),
		StoreID:    strings.TrimSpace(p.StoreID),
		LineItems:  append([]LineItem(nil), p.LineItems...),
		Status:     StatusPaymentPending,
		Address:    p.Address,
		Memo:       p.Memo,
		Audit: Audit{
			CreatedAt:  p.PlacedAt,
			CreatedBy:  strings.TrimSpace(p.CustomerID),
			ModifiedAt: p.PlacedAt,
			ModifiedBy: strings.TrimSpace(p.CustomerID),
		},
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	total, count, err := Totals(order.LineItems)
	if err != nil {
		return nil, err
	}
	order.TotalPrice, order.ProductCount = total, count
	return order, nil
}

// Totals sums price and quantity across items. It fails with ErrTotalOverflow
// instead of wrapping around.
func Totals(items []LineItem) (total int64, count int, err error) {
	for _, item := range items {
		if item.Quantity > 0 && item.UnitPrice > math.MaxInt64/int64(item.Quantity) {
			return 0, 0, fmt.Errorf("%w: product %s", ErrTotalOverflow, item.ProductID)
		}
		subtotal := item.Subtotal()
		if total > math.MaxInt64-subtotal {
			return 0, 0, ErrTotalOverflow
		}
		total += subtotal
		count += item.Quantity
	}
	return total, count, nil
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if o.CustomerID == "" {
		return ErrMissingCustomer
	}
	if o.StoreID == "" {
		return ErrMissingStore
	}
	if len(o.LineItems) == 0 {
		return ErrNoLineItems
	}
	for _, item := range o.LineItems {
		if strings.TrimSpace(item.ProductID) == "" {
			return ErrMissingProduct
		}
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if item.Quantity > MaxLineQuantity {
			return ErrQuantityTooLarge
		}
		if item.UnitPrice < 0 {
			return ErrInvalidUnitPrice
		}
	}
	if utf8.RuneCountInString(o.Address) > MaxAddressLength {
		return ErrAddressTooLong
	}
	if utf8.RuneCountInString(o.Memo) > MaxMemoLength {
		return ErrMemoTooLong
	}
	return nil
}

// Terminal reports whether no further transitions are possible.
func (o *Order) Terminal() bool {
	return transitions.Terminal(o.Status)
}

// CheckCancelable allows cancellation from PAYMENT_PENDING or PAID while now is
// within CancelWindow of placement.
func (o *Order) CheckCancelable(now time.Time) error {
	if err := o.check(StatusCanceled); err != nil {
		return err
	}
	if !statemachine.WithinWindow(o.CreatedAt, now, CancelWindow) {
		return ErrCancelWindowExpired
	}
	return nil
}

func (o *Order) CheckAcceptable() error { return o.check(StatusAccepted) }

func (o *Order) CheckRejectable() error { return o.check(StatusRejected) }

// CheckDeliverable allows completion from ACCEPTED or DELIVERING.
func (o *Order) CheckDeliverable() error { return o.check(StatusDelivered) }

func (o *Order) CheckDispatchable() error { return o.check(StatusDelivering) }

// Cancel applies a customer cancellation.
func (o *Order) Cancel(actor string, now time.Time) error {
	if err := o.CheckCancelable(now); err != nil {
		return err
	}
	o.apply(StatusCanceled, actor, now)
	return nil
}

func (o *Order) Accept(actor string, now time.Time) error {
	return o.transition(StatusAccepted, actor, now)
}

func (o *Order) Reject(actor string, now time.Time) error {
	return o.transition(StatusRejected, actor, now)
}

func (o *Order) StartDelivery(actor string, now time.Time) error {
	return o.transition(StatusDelivering, actor, now)
}

func (o *Order) CompleteDelivery(actor string, now time.Time) error {
	return o.transition(StatusDelivered, actor, now)
}

// MarkPaid records a successful gateway capture.
func (o *Order) MarkPaid(actor string, now time.Time) error {
	if o.Status != StatusPaymentPending {
		return fmt.Errorf("%w: order %s is %s, not %s", ErrInvalidStateTransition, o.ID, o.Status, StatusPaymentPending)
	}
	o.apply(StatusPaid, actor, now)
	return nil
}

// CancelForFailedPayment compensates a failed payment. The cancel window does not apply.
func (o *Order) CancelForFailedPayment(actor string, now time.Time) error {
	if o.Status != StatusPaymentPending {
		return fmt.Errorf("%w: order %s is %s, not %s", ErrInvalidStateTransition, o.ID, o.Status, StatusPaymentPending)
	}
	o.apply(StatusCanceled, actor, now)
	return nil
}

// SoftDelete hides a finished order from every read path.
func (o *Order) SoftDelete(actor string, now time.Time) error {
	if o.Deleted() {
		return ErrAlreadyDeleted
	}
	if !o.Terminal() {
		return fmt.Errorf("%w: order %s is %s and cannot be deleted", ErrInvalidStateTransition, o.ID, o.Status)
	}
	at := now
	o.DeletedAt = &at
	o.DeletedBy = actor
	o.touch(actor, now)
	return nil
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.LineItems = append([]LineItem(nil), o.LineItems...)
	if o.DeletedAt != nil {
		at := *o.DeletedAt
		clone.DeletedAt = &at
	}
	return &clone
}

func (o *Order) transition(to Status, actor string, now time.Time) error {
	if err := o.check(to); err != nil {
		return err
	}
	o.apply(to, actor, now)
	return nil
}

func (o *Order) check(to Status) error {
	if err := transitions.Check(o.Status, to); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStateTransition, err)
	}
	return nil
}

func (o *Order) apply(to Status, actor string, now time.Time) {
	o.Status = to
	o.touch(actor, now)
}

// IsValidStatus reports whether status is a known order status.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPaymentPending, StatusPaid, StatusAccepted, StatusRejected,
		StatusCanceled, StatusDelivering, StatusDelivered:
		return true
	default:
		return false
	}
}
