package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder(NewOrderParams{
		ID:         "order-1",
		CustomerID: "customer-1",
		StoreID:    "store-1",
		LineItems: []LineItem{
			{ProductID: "A", ProductName: "Bibimbap", UnitPrice: 10000, Quantity: 2},
			{ProductID: "B", ProductName: "Kimchi", UnitPrice: 5000, Quantity: 1},
		},
		PlacedAt: placedAt,
	})
	require.NoError(t, err)
	return order
}

func TestNewOrderComputesTotals(t *testing.T) {
	order := newTestOrder(t)

	assert.Equal(t, StatusPaymentPending, order.Status)
	assert.EqualValues(t, 25000, order.TotalPrice)
	assert.Equal(t, 3, order.ProductCount)
	assert.Equal(t, "customer-1", order.CreatedBy)
	assert.Equal(t, placedAt, order.CreatedAt)
}

func TestNewOrderValidation(t *testing.T) {
	base := NewOrderParams{
		ID:         "order-1",
		CustomerID: "customer-1",
		StoreID:    "store-1",
		LineItems:  []LineItem{{ProductID: "A", UnitPrice: 100, Quantity: 1}},
		PlacedAt:   placedAt,
	}
	cases := []struct {
		name   string
		mutate func(p *NewOrderParams)
		want   error
	}{
		{"no items", func(p *NewOrderParams) { p.LineItems = nil }, ErrNoLineItems},
		{"zero quantity", func(p *NewOrderParams) { p.LineItems = []LineItem{{ProductID: "A", Quantity: 0}} }, ErrInvalidQuantity},
		{"quantity above cap", func(p *NewOrderParams) { p.LineItems = []LineItem{{ProductID: "A", UnitPrice: 100, Quantity: MaxLineQuantity + 1}} }, ErrQuantityTooLarge},
		{"negative price", func(p *NewOrderParams) { p.LineItems = []LineItem{{ProductID: "A", UnitPrice: -1, Quantity: 1}} }, ErrInvalidUnitPrice},
		{"missing customer", func(p *NewOrderParams) { p.CustomerID = " " }, ErrMissingCustomer},
		{"missing store", func(p *NewOrderParams) { p.StoreID = "" }, ErrMissingStore},
		{"long memo", func(p *NewOrderParams) { p.Memo = string(make([]rune, MaxMemoLength+1)) }, ErrMemoTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			tc.mutate(&params)
			_, err := NewOrder(params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTotalsRejectOverflow(t *testing.T) {
	huge := int64(math.MaxInt64/2 + 1)

	_, _, err := Totals([]LineItem{{ProductID: "A", UnitPrice: huge, Quantity: 2}})
	require.ErrorIs(t, err, ErrTotalOverflow)

	_, _, err = Totals([]LineItem{
		{ProductID: "A", UnitPrice: huge, Quantity: 1},
		{ProductID: "B", UnitPrice: huge, Quantity: 1},
	})
	require.ErrorIs(t, err, ErrTotalOverflow)

	_, err = NewOrder(NewOrderParams{
		ID: "o", CustomerID: "c", StoreID: "s", PlacedAt: placedAt,
		LineItems: []LineItem{{ProductID: "A", UnitPrice: math.MaxInt64 / 10, Quantity: MaxLineQuantity}},
	})
	require.ErrorIs(t, err, ErrTotalOverflow)

	total, count, err := Totals([]LineItem{{ProductID: "A", UnitPrice: math.MaxInt64 / MaxLineQuantity, Quantity: MaxLineQuantity}})
	require.NoError(t, err)
	assert.Positive(t, total)
	assert.Equal(t, MaxLineQuantity, count)
}

func TestLineItemsAreSnapshots(t *testing.T) {
	items := []LineItem{{ProductID: "A", ProductName: "Bibimbap", UnitPrice: 10000, Quantity: 1}}
	order, err := NewOrder(NewOrderParams{ID: "o", CustomerID: "c", StoreID: "s", LineItems: items, PlacedAt: placedAt})
	require.NoError(t, err)

	items[0].UnitPrice = 99999
	assert.EqualValues(t, 10000, order.LineItems[0].UnitPrice)

	clone := order.Clone()
	clone.LineItems[0].ProductName = "changed"
	assert.Equal(t, "Bibimbap", order.LineItems[0].ProductName)
}

func TestCancelWindow(t *testing.T) {
	t.Run("inside window", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.Cancel("customer-1", placedAt.Add(4*time.Minute)))
		assert.Equal(t, StatusCanceled, order.Status)
		assert.Equal(t, "customer-1", order.ModifiedBy)
	})
	t.Run("exactly five minutes", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.Cancel("customer-1", placedAt.Add(CancelWindow)))
	})
	t.Run("expired", func(t *testing.T) {
		order := newTestOrder(t)
		err := order.Cancel("customer-1", placedAt.Add(6*time.Minute))
		require.ErrorIs(t, err, ErrCancelWindowExpired)
		require.ErrorIs(t, err, ErrInvalidStateTransition)
		assert.Equal(t, StatusPaymentPending, order.Status)
	})
	t.Run("paid order inside window", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.MarkPaid("system", placedAt.Add(time.Second)))
		require.NoError(t, order.Cancel("customer-1", placedAt.Add(time.Minute)))
	})
	t.Run("accepted order", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.MarkPaid("system", placedAt))
		require.NoError(t, order.Accept("owner", placedAt))
		err := order.Cancel("customer-1", placedAt.Add(time.Minute))
		require.ErrorIs(t, err, ErrInvalidStateTransition)
		require.NotErrorIs(t, err, ErrCancelWindowExpired)
	})
}

func TestStoreTransitions(t *testing.T) {
	order := newTestOrder(t)
	require.ErrorIs(t, order.Accept("owner", placedAt), ErrInvalidStateTransition)
	require.ErrorIs(t, order.Reject("owner", placedAt), ErrInvalidStateTransition)
	require.ErrorIs(t, order.CompleteDelivery("owner", placedAt), ErrInvalidStateTransition)

	require.NoError(t, order.MarkPaid("system", placedAt))
	require.ErrorIs(t, order.CompleteDelivery("owner", placedAt), ErrInvalidStateTransition)
	require.NoError(t, order.Accept("owner", placedAt))
	require.ErrorIs(t, order.Reject("owner", placedAt), ErrInvalidStateTransition)
	require.NoError(t, order.StartDelivery("owner", placedAt))
	require.NoError(t, order.CompleteDelivery("owner", placedAt))
	assert.True(t, order.Terminal())
	require.ErrorIs(t, order.CompleteDelivery("owner", placedAt), ErrInvalidStateTransition)
}

func TestRejectOnlyFromPaid(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.MarkPaid("system", placedAt))
	require.NoError(t, order.Reject("owner", placedAt))
	assert.Equal(t, StatusRejected, order.Status)
	assert.True(t, order.Terminal())
}

func TestPaymentOutcomesRequirePendingOrder(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.Cancel("customer-1", placedAt))
	require.ErrorIs(t, order.MarkPaid("system", placedAt), ErrInvalidStateTransition)
	require.ErrorIs(t, order.CancelForFailedPayment("system", placedAt), ErrInvalidStateTransition)

	late := newTestOrder(t)
	require.NoError(t, late.CancelForFailedPayment("system", placedAt.Add(time.Hour)))
	assert.Equal(t, StatusCanceled, late.Status)
}

func TestSoftDelete(t *testing.T) {
	order := newTestOrder(t)
	require.ErrorIs(t, order.SoftDelete("manager", placedAt), ErrInvalidStateTransition)

	require.NoError(t, order.Cancel("customer-1", placedAt))
	require.NoError(t, order.SoftDelete("manager", placedAt.Add(time.Hour)))
	require.True(t, order.Deleted())
	assert.Equal(t, "manager", order.DeletedBy)
	require.ErrorIs(t, order.SoftDelete("manager", placedAt), ErrAlreadyDeleted)
}
