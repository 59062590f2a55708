package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	Timestamp time.Time `json:"occurredAt"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// PaymentRequestedEvent is the event name carried on the outbox.
const PaymentRequestedEvent = "orders.payment.requested"

// PaymentRequested asks the payment side to charge Amount for OrderID. It is only
// observable once the order that raised it has committed.
type PaymentRequested struct {
	BaseEvent
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
}

func (e PaymentRequested) EventName() string {
	return PaymentRequestedEvent
}
