package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// OrderRecord maps the order aggregate to the orders table. Line items are
// denormalized into a jsonb column since they never change after placement.
type OrderRecord struct {
	ID           string          `gorm:"primaryKey;column:id;size:64"`
	CustomerID   string          `gorm:"column:customer_id;size:64;not null;index:idx_orders_customer"`
	StoreID      string          `gorm:"column:store_id;size:64;not null;index:idx_orders_store_status"`
	Status       string          `gorm:"column:status;type:varchar(32);not null;index:idx_orders_store_status"`
	TotalPrice   int64           `gorm:"column:total_price;not null"`
	ProductCount int             `gorm:"column:product_count;not null"`
	LineItems    []LineItemValue `gorm:"column:line_items;type:jsonb;serializer:json;not null"`
	Address      string          `gorm:"column:address;size:255"`
	Memo         string          `gorm:"column:memo;size:500"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null"`
	CreatedBy    string          `gorm:"column:created_by;size:64"`
	ModifiedAt   time.Time       `gorm:"column:modified_at;not null"`
	ModifiedBy   string          `gorm:"column:modified_by;size:64"`
	DeletedAt    *time.Time      `gorm:"column:deleted_at;index"`
	DeletedBy    string          `gorm:"column:deleted_by;size:64"`
}

func (OrderRecord) TableName() string { return "orders" }

// LineItemValue is the JSON shape of one stored line item.
type LineItemValue struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil {
		return errors.New("order is nil")
	}
	record := toRecord(order)
	return postgres.Conn(ctx, r.db).Create(&record).Error
}

// Update writes the mutable columns. Line items and totals are fixed at placement.
func (r *Repository) Update(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil {
		return errors.New("order is nil")
	}
	record := toRecord(order)
	result := postgres.Conn(ctx, r.db).Model(&OrderRecord{}).
		Where("id = ? AND deleted_at IS NULL", record.ID).
		Updates(map[string]any{
			"status":      record.Status,
			"modified_at": record.ModifiedAt,
			"modified_by": record.ModifiedBy,
			"deleted_at":  record.DeletedAt,
			"deleted_by":  record.DeletedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(ctx, id, false)
}

// GetForUpdate issues SELECT ... FOR UPDATE, so it only serializes writers when
// called inside a transaction.
func (r *Repository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(ctx, id, true)
}

func (r *Repository) find(ctx context.Context, id string, lock bool) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := postgres.Conn(ctx, r.db)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record OrderRecord
	if err := query.First(&record, "id = ? AND deleted_at IS NULL", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func toRecord(order *domain.Order) OrderRecord {
	items := make([]LineItemValue, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, LineItemValue{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return OrderRecord{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		StoreID:      order.StoreID,
		Status:       string(order.Status),
		TotalPrice:   order.TotalPrice,
		ProductCount: order.ProductCount,
		LineItems:    items,
		Address:      order.Address,
		Memo:         order.Memo,
		CreatedAt:    order.Audit.CreatedAt,
		CreatedBy:    order.Audit.CreatedBy,
		ModifiedAt:   order.Audit.ModifiedAt,
		ModifiedBy:   order.Audit.ModifiedBy,
		DeletedAt:    order.Audit.DeletedAt,
		DeletedBy:    order.Audit.DeletedBy,
	}
}

func (r OrderRecord) toDomain() *domain.Order {
	items := make([]domain.LineItem, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		items = append(items, domain.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return &domain.Order{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		StoreID:      r.StoreID,
		LineItems:    items,
		TotalPrice:   r.TotalPrice,
		ProductCount: r.ProductCount,
		Status:       domain.Status(r.Status),
		Address:      r.Address,
		Memo:         r.Memo,
		Audit: domain.Audit{
			CreatedAt:  r.CreatedAt,
			CreatedBy:  r.CreatedBy,
			ModifiedAt: r.ModifiedAt,
			ModifiedBy: r.ModifiedBy,
			DeletedAt:  r.DeletedAt,
			DeletedBy:  r.DeletedBy,
		},
	}
}
