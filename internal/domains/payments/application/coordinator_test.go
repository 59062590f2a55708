package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordersmemory "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/memory"
	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/gateway"
	paymentsmemory "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/memory"
	paymentsorders "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/orders"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/application"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var placedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type coordinatorFixture struct {
	coordinator *application.Coordinator
	tx          *txn.LocalManager
	orders      *ordersmemory.Repository
	payments    *paymentsmemory.Repository
	gateway     *gateway.Sandbox
}

func newCoordinatorFixture(t *testing.T, opts ...application.CoordinatorOption) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		orders:   ordersmemory.NewRepository(),
		payments: paymentsmemory.NewRepository(),
		gateway:  gateway.NewSandbox(),
		tx:       txn.NewLocalManager(),
	}
	clock := func() time.Time { return placedAt.Add(time.Second) }
	f.coordinator = application.NewCoordinator(
		f.payments,
		paymentsorders.NewSettlement(f.orders).WithClock(clock),
		f.gateway,
		f.tx,
		append([]application.CoordinatorOption{application.WithClock(clock)}, opts...)...,
	)
	return f
}

func (f *coordinatorFixture) seedOrder(t *testing.T, id string) *ordersdomain.Order {
	t.Helper()
	order, err := ordersdomain.NewOrder(ordersdomain.NewOrderParams{
		ID:         id,
		CustomerID: "customer-1",
		StoreID:    "store-1",
		LineItems:  []ordersdomain.LineItem{{ProductID: "A", ProductName: "Bibimbap", UnitPrice: 10000, Quantity: 2}},
		PlacedAt:   placedAt,
	})
	require.NoError(t, err)
	require.NoError(t, f.tx.Do(context.Background(), func(ctx context.Context) error {
		return f.orders.Create(ctx, order)
	}))
	return order
}

func (f *coordinatorFixture) orderStatus(t *testing.T, id string) ordersdomain.Status {
	t.Helper()
	order, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func request(orderID string, amount int64) ports.PaymentRequest {
	return ports.PaymentRequest{PaymentID: "pay-" + orderID, OrderID: orderID, Amount: amount}
}

func TestCoordinatorCapturesAndMarksPaid(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.seedOrder(t, "order-1")

	payment, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 20000))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCaptured, payment.Status)
	assert.Equal(t, "pay-order-1", payment.ID)
	assert.Equal(t, "sandbox_order-1", payment.PaymentKey)
	assert.Equal(t, ordersdomain.StatusPaid, f.orderStatus(t, "order-1"))

	stored, err := f.payments.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCaptured, stored.Status)
	assert.EqualValues(t, 20000, stored.Amount)
}

func TestCoordinatorCompensatesFailures(t *testing.T) {
	cases := []struct {
		name     string
		setup    func(f *coordinatorFixture)
		opts     []application.CoordinatorOption
		amount   int64
		wantCode string
	}{
		{
			name:     "declined",
			setup:    func(f *coordinatorFixture) { f.gateway.Decline("order-1", "REJECT_CARD_COMPANY", "card rejected") },
			amount:   20000,
			wantCode: application.FailureDeclined,
		},
		{
			name:     "gateway unreachable",
			setup:    func(f *coordinatorFixture) { f.gateway.Fail("order-1", ports.ErrGatewayUnavailable) },
			amount:   20000,
			wantCode: application.FailureGateway,
		},
		{
			name:     "gateway timeout",
			setup:    func(f *coordinatorFixture) { f.gateway.WithLatency(time.Second) },
			opts:     []application.CoordinatorOption{application.WithGatewayTimeout(10 * time.Millisecond)},
			amount:   20000,
			wantCode: application.FailureTimeout,
		},
		{
			name:     "event amount differs from order total",
			setup:    func(*coordinatorFixture) {},
			amount:   19000,
			wantCode: application.FailureAmountMismatch,
		},
		{
			name:     "gateway approved a different amount",
			setup:    func(f *coordinatorFixture) { f.gateway.ApproveAmount("order-1", 100) },
			amount:   20000,
			wantCode: application.FailureAmountMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, tc.opts...)
			f.seedOrder(t, "order-1")
			tc.setup(f)

			payment, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", tc.amount))
			require.NoError(t, err)
			assert.Equal(t, domain.StatusFailed, payment.Status)
			assert.Equal(t, tc.wantCode, payment.FailureCode)
			assert.Equal(t, ordersdomain.StatusCanceled, f.orderStatus(t, "order-1"))

			stored, err := f.payments.GetByOrderID(context.Background(), "order-1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusFailed, stored.Status)
		})
	}
}

func TestCoordinatorSkipsGatewayForMismatchedEventAmount(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.seedOrder(t, "order-1")

	_, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 1))
	require.NoError(t, err)
	assert.Empty(t, f.gateway.Confirms())
}

func TestCoordinatorRejectsDuplicateDelivery(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.seedOrder(t, "order-1")

	_, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 20000))
	require.NoError(t, err)

	_, err = f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 20000))
	require.ErrorIs(t, err, ports.ErrDuplicatePayment)
	assert.Len(t, f.gateway.Confirms(), 1)
	assert.Equal(t, ordersdomain.StatusPaid, f.orderStatus(t, "order-1"))
}

func TestCoordinatorCancelsPaymentForCanceledOrder(t *testing.T) {
	f := newCoordinatorFixture(t)
	order := f.seedOrder(t, "order-1")
	require.NoError(t, order.Cancel("customer-1", placedAt.Add(time.Second)))
	require.NoError(t, f.tx.Do(context.Background(), func(ctx context.Context) error {
		return f.orders.Update(ctx, order)
	}))

	payment, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 20000))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, payment.Status)
	assert.Empty(t, f.gateway.Confirms())
	assert.Equal(t, ordersdomain.StatusCanceled, f.orderStatus(t, "order-1"))
}

func TestCoordinatorMissingOrder(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.OnPaymentRequested(context.Background(), request("ghost", 20000))
	require.ErrorIs(t, err, ports.ErrOrderNotFound)
	_, err = f.payments.GetByOrderID(context.Background(), "ghost")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

type failingUpdateRepo struct {
	*paymentsmemory.Repository
}

func (failingUpdateRepo) Update(context.Context, *domain.Payment) error {
	return errors.New("disk full")
}

func TestCoordinatorRollsBackPaymentRowOnInfrastructureError(t *testing.T) {
	orders := ordersmemory.NewRepository()
	payments := paymentsmemory.NewRepository()
	tx := txn.NewLocalManager()
	coordinator := application.NewCoordinator(
		failingUpdateRepo{payments},
		paymentsorders.NewSettlement(orders),
		gateway.NewSandbox(),
		tx,
	)
	order, err := ordersdomain.NewOrder(ordersdomain.NewOrderParams{
		ID: "order-1", CustomerID: "c", StoreID: "s",
		LineItems: []ordersdomain.LineItem{{ProductID: "A", UnitPrice: 100, Quantity: 1}},
		PlacedAt:  time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Do(context.Background(), func(ctx context.Context) error {
		return orders.Create(ctx, order)
	}))

	_, err = coordinator.OnPaymentRequested(context.Background(), request("order-1", 100))
	require.Error(t, err)

	_, err = payments.GetByOrderID(context.Background(), "order-1")
	require.ErrorIs(t, err, ports.ErrNotFound, "redelivery must be able to retry")
	loaded, err := orders.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, ordersdomain.StatusPaymentPending, loaded.Status)
}

func TestRefundsCancelForOrder(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.seedOrder(t, "order-1")
	_, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", 20000))
	require.NoError(t, err)

	refunds := application.NewRefunds(f.payments)
	cancel := func(orderID string) error {
		return f.tx.Do(context.Background(), func(ctx context.Context) error {
			return refunds.CancelForOrder(ctx, orderID, "customer-1")
		})
	}
	require.NoError(t, cancel("order-1"))
	stored, err := f.payments.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, stored.Status)

	require.NoError(t, cancel("order-1"))
	require.NoError(t, cancel("no-payment"))
}

func TestCoordinatorCompensatesInvalidRequest(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.seedOrder(t, "order-1")

	payment, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", -20000))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, payment.Status)
	assert.Equal(t, application.FailureInvalid, payment.FailureCode)
	assert.Empty(t, f.gateway.Confirms())
	assert.Equal(t, ordersdomain.StatusCanceled, f.orderStatus(t, "order-1"))

	stored, err := f.payments.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	_, err = f.coordinator.OnPaymentRequested(context.Background(), request("order-1", -20000))
	require.ErrorIs(t, err, ports.ErrDuplicatePayment, "redelivery must settle instead of retrying")
}

func TestCoordinatorRecordsInvalidRequestForCanceledOrder(t *testing.T) {
	f := newCoordinatorFixture(t)
	order := f.seedOrder(t, "order-1")
	require.NoError(t, order.Cancel("customer-1", placedAt.Add(time.Second)))
	require.NoError(t, f.tx.Do(context.Background(), func(ctx context.Context) error {
		return f.orders.Update(ctx, order)
	}))

	payment, err := f.coordinator.OnPaymentRequested(context.Background(), request("order-1", -1))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, payment.Status)
	assert.Equal(t, ordersdomain.StatusCanceled, f.orderStatus(t, "order-1"))
}

func TestMemoryRepositoryRequiresTransaction(t *testing.T) {
	repo := paymentsmemory.NewRepository()
	payment, err := domain.NewPayment("pay-1", "order-1", 100, placedAt)
	require.NoError(t, err)

	require.ErrorIs(t, repo.Create(context.Background(), payment), txn.ErrNoTransaction)
	_, err = repo.GetByOrderID(context.Background(), "order-1")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, txn.NewLocalManager().Do(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, payment)
	}))
	require.ErrorIs(t, repo.Update(context.Background(), payment), txn.ErrNoTransaction)
}
