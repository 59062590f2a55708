package paymentgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmSendsIdempotencyKeyAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pk_123/confirm", r.URL.Path)
		assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)

		var body ConfirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 25000, body.Amount)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ConfirmResponse{PaymentKey: "pk_123", OrderID: body.OrderID, Status: StatusDone, ApprovedAmount: body.Amount})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithSecretKey("sk_test"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	resp, err := client.Confirm(context.Background(), "pk_123", ConfirmRequest{OrderID: "order-1", Amount: 25000})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, resp.Status)
	assert.EqualValues(t, 25000, resp.ApprovedAmount)
}

func TestClientErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payments/declined/confirm":
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(Error{Code: "REJECT_CARD_COMPANY", Message: "card rejected"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithRateLimit(0, 0))
	require.NoError(t, err)

	_, err = client.Confirm(context.Background(), "declined", ConfirmRequest{OrderID: "o", Amount: 1})
	var declined *DeclinedError
	require.True(t, errors.As(err, &declined))
	assert.Equal(t, "REJECT_CARD_COMPANY", declined.Body.Code)

	_, err = client.Confirm(context.Background(), "broken", ConfirmRequest{OrderID: "o", Amount: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateIntentRequiresPaymentKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/intents", r.URL.Path)
		_ = json.NewEncoder(w).Encode(IntentResponse{})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = client.CreateIntent(context.Background(), CreateIntentRequest{OrderID: "o", Amount: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUnreachableGateway(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = client.CreateIntent(context.Background(), CreateIntentRequest{OrderID: "o", Amount: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}
