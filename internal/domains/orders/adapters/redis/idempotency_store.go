package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// DefaultTTL bounds how long a placement key is remembered.
const DefaultTTL = 24 * time.Hour

// IdempotencyStore keeps placement keys in Redis with a TTL. A key claimed inside a
// transaction that later rolls back is released again.
type IdempotencyStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*IdempotencyStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *IdempotencyStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *IdempotencyStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *IdempotencyStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewIdempotencyStore(client *goredis.Client, opts ...Option) *IdempotencyStore {
	s := &IdempotencyStore{client: client, prefix: "orders:idempotency", ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type storedRecord struct {
	RequestHash string    `json:"requestHash"`
	OrderID     string    `json:"orderId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	return &ports.IdempotencyRecord{
		Key:         key,
		RequestHash: stored.RequestHash,
		OrderID:     stored.OrderID,
		CreatedAt:   stored.CreatedAt,
	}, nil
}

// Save claims the key with SET NX.
func (s *IdempotencyStore) Save(ctx context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	body, err := json.Marshal(storedRecord{
		RequestHash: record.RequestHash,
		OrderID:     record.OrderID,
		CreatedAt:   record.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	redisKey := s.redisKey(record.Key)
	claimed, err := s.client.SetNX(ctx, redisKey, body, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		_ = txn.OnRollback(ctx, func(ctx context.Context) {
			_ = s.client.Del(ctx, redisKey).Err()
		})
		return &record, nil
	}

	existing, err := s.Get(ctx, record.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("idempotency key expired during claim")
	}
	if existing.RequestHash != record.RequestHash {
		return existing, ports.ErrIdempotencyConflict
	}
	return existing, nil
}

func (s *IdempotencyStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *IdempotencyStore) ensureClient() error {
	if s == nil || s.client == nil {
		return errors.New("redis idempotency store not configured")
	}
	return nil
}
