package mapper

import (
	"time"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
)

// PlaceOrderItem is one requested product line.
type PlaceOrderItem struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// PlaceOrderRequest is the body of POST /v1/orders. The customer comes from the
// caller identity, never from the body.
type PlaceOrderRequest struct {
	StoreID string           `json:"storeId" binding:"required"`
	Items   []PlaceOrderItem `json:"items" binding:"required"`
	Address string           `json:"address,omitempty"`
	Memo    string           `json:"memo,omitempty"`
}

// LineItem is the HTTP view of a priced line.
type LineItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

// Order is the HTTP view of an order.
type Order struct {
	OrderID      string     `json:"orderId"`
	CustomerID   string     `json:"customerId"`
	StoreID      string     `json:"storeId"`
	Status       string     `json:"status"`
	TotalPrice   int64      `json:"totalPrice"`
	ProductCount int        `json:"productCount"`
	LineItems    []LineItem `json:"lineItems"`
	Address      string     `json:"address,omitempty"`
	Memo         string     `json:"memo,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ModifiedAt   time.Time  `json:"modifiedAt"`
}

// StatusResponse answers placement and every transition.
type StatusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// ToPlaceOrderInput binds a request to the acting customer.
func ToPlaceOrderInput(customerID, idempotencyKey string, req PlaceOrderRequest) ports.PlaceOrderInput {
	items := make([]ports.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ports.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return ports.PlaceOrderInput{
		CustomerID:     customerID,
		StoreID:        req.StoreID,
		Items:          items,
		Address:        req.Address,
		Memo:           req.Memo,
		IdempotencyKey: idempotencyKey,
	}
}

func FromOrder(order *domain.Order) Order {
	if order == nil {
		return Order{}
	}
	items := make([]LineItem, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal(),
		})
	}
	return Order{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		StoreID:      order.StoreID,
		Status:       string(order.Status),
		TotalPrice:   order.TotalPrice,
		ProductCount: order.ProductCount,
		LineItems:    items,
		Address:      order.Address,
		Memo:         order.Memo,
		CreatedAt:    order.CreatedAt,
		ModifiedAt:   order.ModifiedAt,
	}
}

func FromTransition(result ports.TransitionResult) StatusResponse {
	return StatusResponse{OrderID: result.OrderID, Status: string(result.Status)}
}
