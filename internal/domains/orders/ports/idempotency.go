package ports

import (
	"context"
	"errors"
	"time"
)

// ErrIdempotencyConflict indicates the same key was used with a different payload.
var ErrIdempotencyConflict = errors.New("idempotency conflict")

// IdempotencyRecord ties a client-supplied key to the order it produced.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	OrderID     string
	CreatedAt   time.Time
}

// IdempotencyStore remembers placement keys so retried requests replay the original order.
type IdempotencyStore interface {
	// Get returns the stored record for the key, or nil when unknown.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Save stores the record within the caller's transaction. When the key is already
	// taken the stored record is returned; if its hash differs ErrIdempotencyConflict
	// is returned alongside it.
	Save(ctx context.Context, record IdempotencyRecord) (*IdempotencyRecord, error)
}
