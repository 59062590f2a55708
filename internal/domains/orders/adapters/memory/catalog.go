package memory

import (
	"context"
	"sync"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
)

var (
	_ ports.CatalogReader = (*Catalog)(nil)
	_ ports.StoreReader   = (*Catalog)(nil)
)

// Catalog is a seedable, read-only stand-in for the catalog and store services.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]ports.Product
	stores   map[string]ports.StoreSummary
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: map[string]ports.Product{},
		stores:   map[string]ports.StoreSummary{},
	}
}

// PutStore registers or replaces a store.
func (c *Catalog) PutStore(store ports.StoreSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[store.ID] = store
}

// PutProduct registers or replaces a product. Existing orders keep their snapshots.
func (c *Catalog) PutProduct(product ports.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

func (c *Catalog) RemoveProduct(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *Catalog) ResolveByIDs(_ context.Context, ids []string) (map[string]ports.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]ports.Product, len(ids))
	for _, id := range ids {
		if product, ok := c.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (c *Catalog) ResolveSummary(_ context.Context, storeID string) (*ports.StoreSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	store, ok := c.stores[storeID]
	if !ok {
		return nil, ports.ErrStoreNotFound
	}
	return &store, nil
}
