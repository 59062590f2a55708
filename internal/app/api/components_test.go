package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	paymentsgateway "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/gateway"
	paymentsworkflows "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/workflows"
	paymentsdomain "github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

func memoryConfig() Config {
	return Config{
		Port:               "0",
		GatewayTimeout:     time.Second,
		GatewayRPS:         20,
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    10,
		OutboxConcurrency:  2,
		OutboxRetention:    time.Hour,
	}
}

func TestBuildInMemoryGraphSettlesPayments(t *testing.T) {
	ctx := context.Background()
	components, cleanup, err := Build(ctx, memoryConfig(), nil)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, components.Catalog)
	assert.Nil(t, components.DB)
	assert.IsType(t, &paymentsgateway.Sandbox{}, components.Gateway)

	components.Catalog.PutStore(ordersports.StoreSummary{ID: "store-1", Name: "Hansik", OwnerID: "owner-1"})
	components.Catalog.PutProduct(ordersports.Product{ID: "p-1", StoreID: "store-1", Name: "Bibimbap", Price: 9000})
	components.UseDispatcher(paymentsworkflows.NewInlineDispatcher(components.Coordinator, nil))

	order, err := components.Orders.PlaceOrder(ctx, ordersports.PlaceOrderInput{
		CustomerID: "customer-1",
		StoreID:    "store-1",
		Items:      []ordersports.ItemRequest{{ProductID: "p-1", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, ordersdomain.StatusPaymentPending, order.Status)
	assert.Equal(t, int64(27000), order.TotalPrice)

	delivered, err := components.Relay.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	paid, err := components.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordersdomain.StatusPaid, paid.Status)

	payment, err := components.Payments.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentsdomain.StatusCaptured, payment.Status)
	assert.Equal(t, order.TotalPrice, payment.Amount)

	// a redelivered request must not charge twice
	err = paymentsworkflows.NewInlineDispatcher(components.Coordinator, nil).
		Dispatch(ctx, paymentsports.PaymentRequest{PaymentID: "pay-again", OrderID: order.ID, Amount: order.TotalPrice})
	require.NoError(t, err)
	assert.Len(t, components.Gateway.(*paymentsgateway.Sandbox).Confirms(), 1)
}
