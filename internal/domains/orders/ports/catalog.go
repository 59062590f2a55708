package ports

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStoreNotFound   = errors.New("store not found")
)

// Product is the catalog view needed to price a line item.
type Product struct {
	ID      string
	StoreID string
	Name    string
	Price   int64
}

// StoreSummary identifies a store and its owner.
type StoreSummary struct {
	ID      string
	Name    string
	OwnerID string
}

// CatalogReader resolves products in one batch. Unknown ids are omitted from the result.
type CatalogReader interface {
	ResolveByIDs(ctx context.Context, ids []string) (map[string]Product, error)
}

// StoreReader resolves store summaries. It returns ErrStoreNotFound for unknown or deleted stores.
type StoreReader interface {
	ResolveSummary(ctx context.Context, storeID string) (*StoreSummary, error)
}
