package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps placement keys next to the orders they produced, so the key
// and the order commit or roll back together.
type IdempotencyStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// IdempotencyRecord maps a key to the order it created.
type IdempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:idempotency_key;size:200"`
	RequestHash string    `gorm:"column:request_hash;size:64;not null"`
	OrderID     string    `gorm:"column:order_id;size:64;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
}

func (IdempotencyRecord) TableName() string { return "order_idempotency_keys" }

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var rec IdempotencyRecord
	if err := postgres.Conn(ctx, s.db).First(&rec, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := rec.toPort()
	return &out, nil
}

// Save inserts with ON CONFLICT DO NOTHING. A concurrent insert of the same key
// blocks on the unique index until the other transaction ends.
func (s *IdempotencyStore) Save(ctx context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	rec := IdempotencyRecord{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		OrderID:     record.OrderID,
		CreatedAt:   record.CreatedAt,
	}
	result := postgres.Conn(ctx, s.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return &record, nil
	}

	existing, err := s.Get(ctx, record.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("idempotency key vanished after conflict")
	}
	if existing.RequestHash != record.RequestHash {
		return existing, ports.ErrIdempotencyConflict
	}
	return existing, nil
}

// Purge removes keys older than before.
func (s *IdempotencyStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := postgres.Conn(ctx, s.db).Where("created_at < ?", before).Delete(&IdempotencyRecord{})
	return result.RowsAffected, result.Error
}

func (s *IdempotencyStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres idempotency store not configured")
	}
	return nil
}

func (r IdempotencyRecord) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:         r.Key,
		RequestHash: r.RequestHash,
		OrderID:     r.OrderID,
		CreatedAt:   r.CreatedAt,
	}
}
