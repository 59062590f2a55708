package orderserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordersmemory "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/memory"
	ordersoutbox "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/outbox"
	ordersapp "github.com/Apurer/delivery-order-engine/internal/domains/orders/application"
	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	paymentsgateway "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/gateway"
	paymentsmemory "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/memory"
	paymentsorders "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/orders"
	paymentsworkflows "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/workflows"
	paymentsapp "github.com/Apurer/delivery-order-engine/internal/domains/payments/application"
	"github.com/Apurer/delivery-order-engine/internal/platform/outbox"
	apierrors "github.com/Apurer/delivery-order-engine/internal/shared/errors"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	router  *gin.Engine
	relay   *outbox.Relay
	gateway *paymentsgateway.Sandbox
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	catalog := ordersmemory.NewCatalog()
	catalog.PutStore(ordersports.StoreSummary{ID: "store-1", Name: "Hansik", OwnerID: "owner-1"})
	catalog.PutProduct(ordersports.Product{ID: "p-1", StoreID: "store-1", Name: "Bibimbap", Price: 9000})
	catalog.PutProduct(ordersports.Product{ID: "p-2", StoreID: "store-1", Name: "Kimchi", Price: 2000})

	tx := txn.NewLocalManager()
	orderRepo := ordersmemory.NewRepository()
	paymentRepo := paymentsmemory.NewRepository()
	store := outbox.NewMemoryStore()
	relay := outbox.NewRelay(store, outbox.WithClock(clock.Now))

	orders := ordersapp.NewService(orderRepo, catalog, catalog, ordersoutbox.NewPublisher(store, nil), tx,
		ordersapp.WithClock(clock.Now),
		ordersapp.WithIdempotencyStore(ordersmemory.NewIdempotencyStore()),
		ordersapp.WithPaymentCanceller(paymentsapp.NewRefunds(paymentRepo).WithClock(clock.Now)),
	)
	sandbox := paymentsgateway.NewSandbox()
	coordinator := paymentsapp.NewCoordinator(paymentRepo,
		paymentsorders.NewSettlement(orderRepo).WithClock(clock.Now), sandbox, tx,
		paymentsapp.WithClock(clock.Now))
	relay.Register(ordersdomain.PaymentRequestedEvent,
		paymentsworkflows.NewPaymentRequestedHandler(paymentsworkflows.NewInlineDispatcher(coordinator, nil)))

	responder := NewResponder(nil)
	router := NewRouter(RouterConfig{Responder: responder}, ApiHandleFunctions{
		OrderAPI: NewOrderAPI(orders, paymentsapp.NewService(paymentRepo), catalog, responder),
	})
	return &fixture{router: router, relay: relay, gateway: sandbox, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, viewer Viewer, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if viewer.UserID != "" {
		req.Header.Set(HeaderUserID, viewer.UserID)
		req.Header.Set(HeaderUserRole, string(viewer.Role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	_, err := f.relay.DispatchPending(context.Background())
	require.NoError(t, err)
}

var (
	customer      = Viewer{UserID: "customer-1", Role: RoleCustomer}
	otherCustomer = Viewer{UserID: "customer-2", Role: RoleCustomer}
	owner         = Viewer{UserID: "owner-1", Role: RoleOwner}
	otherOwner    = Viewer{UserID: "owner-2", Role: RoleOwner}
	manager       = Viewer{UserID: "manager-1", Role: RoleManager}
)

func placeBody() map[string]any {
	return map[string]any{
		"storeId": "store-1",
		"items": []map[string]any{
			{"productId": "p-1", "quantity": 2},
			{"productId": "p-2", "quantity": 1},
		},
		"address": "Seoul",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *fixture) place(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/orders", customer, placeBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)["orderId"]
}

func TestPlaceOrderThenPaymentSettles(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/orders", customer, placeBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[map[string]string](t, rec)
	assert.Equal(t, "PAYMENT_PENDING", placed["status"])
	assert.Equal(t, "/v1/orders/"+placed["orderId"], rec.Header().Get("Location"))

	f.settle(t)

	rec = f.do(t, http.MethodGet, "/v1/orders/"+placed["orderId"], customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[map[string]any](t, rec)
	assert.Equal(t, "PAID", order["status"])
	assert.EqualValues(t, 20000, order["totalPrice"])
	assert.EqualValues(t, 3, order["productCount"])

	rec = f.do(t, http.MethodGet, "/v1/orders/"+placed["orderId"]+"/payment", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CAPTURED", decode[map[string]any](t, rec)["status"])
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		viewer Viewer
		body   map[string]any
		status int
		ptype  string
	}{
		{
			name:   "malformed body",
			viewer: customer,
			body:   map[string]any{"items": "nope"},
			status: http.StatusBadRequest,
			ptype:  apierrors.TypeBadRequest,
		},
		{
			name:   "negative quantity",
			viewer: customer,
			body:   map[string]any{"storeId": "store-1", "items": []map[string]any{{"productId": "p-1", "quantity": -1}}},
			status: http.StatusBadRequest,
			ptype:  apierrors.TypeValidation,
		},
		{
			name:   "unknown product",
			viewer: customer,
			body:   map[string]any{"storeId": "store-1", "items": []map[string]any{{"productId": "p-404", "quantity": 1}}},
			status: http.StatusNotFound,
			ptype:  apierrors.TypeNotFound,
		},
		{
			name:   "owner cannot order",
			viewer: owner,
			body:   placeBody(),
			status: http.StatusForbidden,
			ptype:  apierrors.TypeForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/orders", tc.viewer, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.ptype, decode[apierrors.ProblemDetail](t, rec).Type)
		})
	}
}

func TestIdempotencyKeyReplaysAndConflicts(t *testing.T) {
	f := newFixture(t)

	first := f.do(t, http.MethodPost, "/v1/orders", customer, placeBody(), HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := f.do(t, http.MethodPost, "/v1/orders", customer, placeBody(), HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[map[string]string](t, first)["orderId"], decode[map[string]string](t, second)["orderId"])

	changed := placeBody()
	changed["memo"] = "extra spicy"
	conflict := f.do(t, http.MethodPost, "/v1/orders", customer, changed, HeaderIdempotencyKey, "key-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/orders/whatever", Viewer{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/orders/whatever", Viewer{UserID: "u", Role: "PIRATE"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewPermissions(t *testing.T) {
	f := newFixture(t)
	orderID := f.place(t)

	for _, tc := range []struct {
		viewer Viewer
		status int
	}{
		{customer, http.StatusOK},
		{owner, http.StatusOK},
		{manager, http.StatusOK},
		{otherCustomer, http.StatusForbidden},
		{otherOwner, http.StatusForbidden},
	} {
		rec := f.do(t, http.MethodGet, "/v1/orders/"+orderID, tc.viewer, nil)
		assert.Equal(t, tc.status, rec.Code, "viewer %s", tc.viewer.UserID)
	}

	rec := f.do(t, http.MethodGet, "/v1/orders/missing", manager, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKitchenAndDeliveryFlow(t *testing.T) {
	f := newFixture(t)
	orderID := f.place(t)

	// accept is only valid once paid
	rec := f.do(t, http.MethodPost, "/v1/orders/"+orderID+"/accept", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.TypeInvalidTransition, decode[apierrors.ProblemDetail](t, rec).Type)

	f.settle(t)

	rec = f.do(t, http.MethodPost, "/v1/orders/"+orderID+"/accept", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/orders/"+orderID+"/accept", otherOwner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, step := range []struct{ path, status string }{
		{"accept", "ACCEPTED"},
		{"dispatch", "DELIVERING"},
		{"deliver", "DELIVERED"},
	} {
		rec = f.do(t, http.MethodPost, "/v1/orders/"+orderID+"/"+step.path, owner, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, step.status, decode[map[string]string](t, rec)["status"])
	}

	rec = f.do(t, http.MethodDelete, "/v1/orders/"+orderID, owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodDelete, "/v1/orders/"+orderID, manager, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/orders/"+orderID, manager, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelWindow(t *testing.T) {
	f := newFixture(t)

	within := f.place(t)
	f.settle(t)
	f.clock.Advance(5 * time.Minute)
	rec := f.do(t, http.MethodPost, "/v1/orders/"+within+"/cancel", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELED", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/v1/orders/"+within+"/payment", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REFUNDED", decode[map[string]any](t, rec)["status"])

	late := f.place(t)
	f.clock.Advance(5*time.Minute + time.Second)
	rec = f.do(t, http.MethodPost, "/v1/orders/"+late+"/cancel", customer, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decode[apierrors.ProblemDetail](t, rec)
	assert.Equal(t, "cancel_window_expired", problem.Extensions["reason"])

	rec = f.do(t, http.MethodPost, "/v1/orders/"+late+"/cancel", otherCustomer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeclinedPaymentCancelsOrder(t *testing.T) {
	f := newFixture(t)
	orderID := f.place(t)
	f.gateway.Decline(orderID, "REJECT_CARD", "card refused")

	f.settle(t)

	rec := f.do(t, http.MethodGet, "/v1/orders/"+orderID, customer, nil)
	assert.Equal(t, "CANCELED", decode[map[string]any](t, rec)["status"])
	rec = f.do(t, http.MethodGet, "/v1/orders/"+orderID+"/payment", customer, nil)
	payment := decode[map[string]any](t, rec)
	assert.Equal(t, "FAILED", payment["status"])
	assert.Equal(t, "DECLINED", payment["failureCode"])
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	}, ApiHandleFunctions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
