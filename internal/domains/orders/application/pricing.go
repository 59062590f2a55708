package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
)

// mergeItems validates requested lines and folds repeated products into one line,
// keeping first-occurrence order.
func mergeItems(items []ports.ItemRequest) ([]ports.ItemRequest, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoLineItems
	}
	merged := make([]ports.ItemRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" {
			return nil, domain.ErrMissingProduct
		}
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		if item.Quantity > domain.MaxLineQuantity {
			return nil, fmt.Errorf("%w: product %s", domain.ErrQuantityTooLarge, id)
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > domain.MaxLineQuantity {
				return nil, fmt.Errorf("%w: product %s", domain.ErrQuantityTooLarge, id)
			}
			continue
		}
		index[id] = len(merged)
		merged = append(merged, ports.ItemRequest{ProductID: id, Quantity: item.Quantity})
	}
	return merged, nil
}

// resolveLineItems prices every request from a single catalog lookup. A product that
// is missing, or that belongs to another store, fails the whole placement.
func (s *Service) resolveLineItems(ctx context.Context, storeID string, requests []ports.ItemRequest) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ProductID)
	}
	products, err := s.catalog.ResolveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	items := make([]domain.LineItem, 0, len(requests))
	for _, req := range requests {
		product, ok := products[req.ProductID]
		if !ok || (product.StoreID != "" && product.StoreID != storeID) {
			return nil, fmt.Errorf("%w: %s", ports.ErrProductNotFound, req.ProductID)
		}
		items = append(items, domain.LineItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    req.Quantity,
		})
	}
	return items, nil
}
