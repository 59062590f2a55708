// Package outbox implements a transactional outbox: messages are written in the same
// transaction as the state change that produced them and relayed after commit.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownTopic is returned when no handler is registered for a message.
var ErrUnknownTopic = errors.New("no handler registered for topic")

// Message is one pending or dispatched event.
type Message struct {
	ID           string
	Topic        string
	AggregateID  string
	Payload      []byte
	CreatedAt    time.Time
	AvailableAt  time.Time
	Attempts     int
	LastError    string
	DispatchedAt *time.Time
}

// NewMessage encodes payload as JSON.
func NewMessage(topic, aggregateID string, payload any, now time.Time) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     body,
		CreatedAt:   now,
		AvailableAt: now,
	}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Store persists outbox messages.
type Store interface {
	// Append writes messages inside the caller's transaction.
	Append(ctx context.Context, messages ...Message) error
	// Claim leases up to limit messages that are due at now, hiding them from other
	// relays until now+lease, and bumps their attempt counter.
	Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]Message, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	// MarkFailed records the failure and schedules the next attempt at retryAt.
	MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error
	// PurgeDispatched deletes dispatched messages older than before.
	PurgeDispatched(ctx context.Context, before time.Time) (int64, error)
}

// Handler delivers a message to its consumer. A nil error acknowledges it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
