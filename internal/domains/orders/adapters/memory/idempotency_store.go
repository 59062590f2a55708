package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore provides an in-memory implementation for development and tests.
type IdempotencyStore struct {
	mu      sync.RWMutex
	records map[string]ports.IdempotencyRecord
	now     func() time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: map[string]ports.IdempotencyRecord{},
		now:     time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (s *IdempotencyStore) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	copy := record
	return &copy, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	if !txn.InTx(ctx) {
		return nil, txn.ErrNoTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.Key]; ok {
		copy := existing
		if existing.RequestHash != record.RequestHash {
			return &copy, ports.ErrIdempotencyConflict
		}
		return &copy, nil
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	s.records[record.Key] = record
	if err := txn.OnRollback(ctx, func(context.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.records, record.Key)
	}); err != nil {
		delete(s.records, record.Key)
		return nil, err
	}
	saved := record
	return &saved, nil
}
