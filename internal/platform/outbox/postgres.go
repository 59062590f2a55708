package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore persists messages in the outbox_messages table.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// MessageRecord is the outbox_messages row.
type MessageRecord struct {
	ID           string     `gorm:"primaryKey;column:id;size:64"`
	Topic        string     `gorm:"column:topic;size:128;not null"`
	AggregateID  string     `gorm:"column:aggregate_id;size:64;index"`
	Payload      []byte     `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	AvailableAt  time.Time  `gorm:"column:available_at;not null;index:idx_outbox_pending,where:dispatched_at IS NULL"`
	Attempts     int        `gorm:"column:attempts;not null;default:0"`
	LastError    string     `gorm:"column:last_error;type:text"`
	DispatchedAt *time.Time `gorm:"column:dispatched_at;index"`
}

func (MessageRecord) TableName() string { return "outbox_messages" }

// claimSQL leases due rows. SKIP LOCKED lets several relays share the table.
const claimSQL = `
UPDATE outbox_messages SET available_at = ?, attempts = attempts + 1
WHERE id IN (
	SELECT id FROM outbox_messages
	WHERE dispatched_at IS NULL AND available_at <= ?
	ORDER BY created_at
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING id, topic, aggregate_id, payload, created_at, available_at, attempts, last_error, dispatched_at`

func (s *PostgresStore) Append(ctx context.Context, messages ...Message) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if !postgres.InTx(ctx) {
		return errors.New("outbox append requires an open transaction")
	}
	if len(messages) == 0 {
		return nil
	}
	records := make([]MessageRecord, 0, len(messages))
	for _, msg := range messages {
		records = append(records, toRecord(msg))
	}
	return postgres.Conn(ctx, s.db).Create(&records).Error
}

func (s *PostgresStore) Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]Message, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var records []MessageRecord
	if err := postgres.Conn(ctx, s.db).Raw(claimSQL, now.Add(lease), now, limit).Scan(&records).Error; err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toMessage())
	}
	return messages, nil
}

func (s *PostgresStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	return postgres.Conn(ctx, s.db).Model(&MessageRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"dispatched_at": at, "last_error": ""}).Error
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	return postgres.Conn(ctx, s.db).Model(&MessageRecord{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Updates(map[string]any{"available_at": retryAt, "last_error": reason}).Error
}

func (s *PostgresStore) PurgeDispatched(ctx context.Context, before time.Time) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := postgres.Conn(ctx, s.db).
		Where("dispatched_at IS NOT NULL AND dispatched_at < ?", before).
		Delete(&MessageRecord{})
	return result.RowsAffected, result.Error
}

func (s *PostgresStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres outbox store not configured")
	}
	return nil
}

func toRecord(msg Message) MessageRecord {
	return MessageRecord{
		ID:           msg.ID,
		Topic:        msg.Topic,
		AggregateID:  msg.AggregateID,
		Payload:      msg.Payload,
		CreatedAt:    msg.CreatedAt,
		AvailableAt:  msg.AvailableAt,
		Attempts:     msg.Attempts,
		LastError:    msg.LastError,
		DispatchedAt: msg.DispatchedAt,
	}
}

func (r MessageRecord) toMessage() Message {
	return Message{
		ID:           r.ID,
		Topic:        r.Topic,
		AggregateID:  r.AggregateID,
		Payload:      r.Payload,
		CreatedAt:    r.CreatedAt,
		AvailableAt:  r.AvailableAt,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
		DispatchedAt: r.DispatchedAt,
	}
}
