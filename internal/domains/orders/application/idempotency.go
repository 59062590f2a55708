package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
)

type normalizedPlaceOrder struct {
	CustomerID string           `json:"customerId"`
	StoreID    string           `json:"storeId"`
	Items      []normalizedItem `json:"items"`
	Address    string           `json:"address"`
	Memo       string           `json:"memo"`
}

type normalizedItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// FingerprintPlaceOrder hashes the placement request, excluding the idempotency key.
// Duplicate product lines are merged first so equivalent requests hash the same.
func FingerprintPlaceOrder(input ports.PlaceOrderInput) (string, error) {
	items, err := mergeItems(input.Items)
	if err != nil {
		return "", err
	}
	normalized := normalizedPlaceOrder{
		CustomerID: strings.TrimSpace(input.CustomerID),
		StoreID:    strings.TrimSpace(input.StoreID),
		Items:      make([]normalizedItem, 0, len(items)),
		Address:    input.Address,
		Memo:       input.Memo,
	}
	for _, item := range items {
		normalized.Items = append(normalized.Items, normalizedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
