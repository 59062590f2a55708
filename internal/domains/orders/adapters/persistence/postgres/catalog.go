package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/postgres"
)

var (
	_ ports.CatalogReader = (*Catalog)(nil)
	_ ports.StoreReader   = (*Catalog)(nil)
)

// Catalog reads products and stores owned by the catalog context. Orders never
// write these tables.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// ProductRecord is the read model of a catalog product.
type ProductRecord struct {
	ID        string     `gorm:"primaryKey;column:id;size:64"`
	StoreID   string     `gorm:"column:store_id;size:64;not null;index"`
	Name      string     `gorm:"column:name;size:200;not null"`
	Price     int64      `gorm:"column:price;not null"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (ProductRecord) TableName() string { return "products" }

// StoreRecord is the read model of a store.
type StoreRecord struct {
	ID        string     `gorm:"primaryKey;column:id;size:64"`
	Name      string     `gorm:"column:name;size:200;not null"`
	OwnerID   string     `gorm:"column:owner_id;size:64;not null;index"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (StoreRecord) TableName() string { return "stores" }

// ResolveByIDs loads the live products among ids in a single query.
func (c *Catalog) ResolveByIDs(ctx context.Context, ids []string) (map[string]ports.Product, error) {
	if err := c.ensureDB(); err != nil {
		return nil, err
	}
	out := make(map[string]ports.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var records []ProductRecord
	if err := postgres.Conn(ctx, c.db).
		Where("id = ANY(?) AND deleted_at IS NULL", pq.Array(ids)).
		Find(&records).Error; err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.ID] = ports.Product{ID: rec.ID, StoreID: rec.StoreID, Name: rec.Name, Price: rec.Price}
	}
	return out, nil
}

func (c *Catalog) ResolveSummary(ctx context.Context, storeID string) (*ports.StoreSummary, error) {
	if err := c.ensureDB(); err != nil {
		return nil, err
	}
	var rec StoreRecord
	if err := postgres.Conn(ctx, c.db).First(&rec, "id = ? AND deleted_at IS NULL", storeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrStoreNotFound
		}
		return nil, err
	}
	return &ports.StoreSummary{ID: rec.ID, Name: rec.Name, OwnerID: rec.OwnerID}, nil
}

func (c *Catalog) ensureDB() error {
	if c == nil || c.db == nil {
		return errors.New("postgres catalog not configured")
	}
	return nil
}
