package ports

import (
	"context"
	"errors"
)

var ErrOrderNotFound = errors.New("order not found for payment")

// OrderSnapshot is what the coordinator needs to know about the order being paid.
type OrderSnapshot struct {
	ID              string
	TotalPrice      int64
	Status          string
	AwaitingPayment bool
}

// Orders applies payment outcomes to the order side. Every call must run inside
// the coordinator's transaction.
type Orders interface {
	// LockForPayment loads the order and holds its row lock until the transaction ends.
	LockForPayment(ctx context.Context, orderID string) (*OrderSnapshot, error)
	MarkPaid(ctx context.Context, orderID, actor string) error
	// CancelUnpaid is the compensation for a failed payment.
	CancelUnpaid(ctx context.Context, orderID, actor string) error
}
