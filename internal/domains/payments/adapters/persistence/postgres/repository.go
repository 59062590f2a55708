package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists payments in PostgreSQL using GORM. The unique index on
// order_id backs the one-payment-per-order rule.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Schema is owned by platform/migrations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PaymentRecord maps the payment aggregate to the payments table.
type PaymentRecord struct {
	ID              string    `gorm:"primaryKey;column:id;size:64"`
	OrderID         string    `gorm:"column:order_id;size:64;not null;uniqueIndex:ux_payments_order_id"`
	Amount          int64     `gorm:"column:amount;not null"`
	Status          string    `gorm:"column:status;type:varchar(32);not null;index"`
	PaymentKey      string    `gorm:"column:payment_key;size:200;index"`
	GatewayOrderRef string    `gorm:"column:gateway_order_ref;size:64"`
	FailureCode     string    `gorm:"column:failure_code;size:64"`
	FailureReason   string    `gorm:"column:failure_reason;type:text"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (PaymentRecord) TableName() string { return "payments" }

func (r *Repository) Create(ctx context.Context, payment *domain.Payment) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if payment == nil {
		return errors.New("payment is nil")
	}
	record := toRecord(payment)
	if err := postgres.Conn(ctx, r.db).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: order %s", ports.ErrDuplicatePayment, payment.OrderID)
		}
		return err
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, payment *domain.Payment) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if payment == nil {
		return errors.New("payment is nil")
	}
	record := toRecord(payment)
	result := postgres.Conn(ctx, r.db).Model(&PaymentRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"status":            record.Status,
			"payment_key":       record.PaymentKey,
			"gateway_order_ref": record.GatewayOrderRef,
			"failure_code":      record.FailureCode,
			"failure_reason":    record.FailureReason,
			"updated_at":        record.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record PaymentRecord
	if err := postgres.Conn(ctx, r.db).First(&record, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres payment repository not configured")
	}
	return nil
}

func toRecord(p *domain.Payment) PaymentRecord {
	return PaymentRecord{
		ID:              p.ID,
		OrderID:         p.OrderID,
		Amount:          p.Amount,
		Status:          string(p.Status),
		PaymentKey:      p.PaymentKey,
		GatewayOrderRef: p.GatewayOrderRef,
		FailureCode:     p.FailureCode,
		FailureReason:   p.FailureReason,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (r PaymentRecord) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Amount:          r.Amount,
		Status:          domain.Status(r.Status),
		PaymentKey:      r.PaymentKey,
		GatewayOrderRef: r.GatewayOrderRef,
		FailureCode:     r.FailureCode,
		FailureReason:   r.FailureReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
