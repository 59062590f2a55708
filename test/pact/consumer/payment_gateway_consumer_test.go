//go:build pact
// +build pact

package consumer_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	pacttest "github.com/Apurer/delivery-order-engine/test/pact"

	"github.com/Apurer/delivery-order-engine/internal/clients/http/paymentgateway"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

func TestPaymentGatewayContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.GatewayConsumerName,
		Provider: pacttest.GatewayProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json", "application\\/json(?:;\\s?charset=utf-8)?")

	pact.AddInteraction().
		Given(pacttest.StateGatewayApproves).
		UponReceiving("a request to register a payment intent").
		WithRequest("POST", "/v1/payments/intents", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"orderId": matchers.Like(pacttest.ExistingOrderID),
				"amount":  matchers.Like(2 * pacttest.ProductPrice),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"paymentKey":  matchers.Like(pacttest.ApprovedPaymentKey),
				"redirectUrl": matchers.Like("https://pay.example/checkout/pk-pact"),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateGatewayApproves).
		UponReceiving("a request to confirm an approvable payment").
		WithRequest("POST", "/v1/payments/"+pacttest.ApprovedPaymentKey+"/confirm", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.Header("Idempotency-Key", matchers.S(pacttest.ExistingOrderID))
			b.JSONBody(matchers.Map{
				"orderId": matchers.S(pacttest.ExistingOrderID),
				"amount":  matchers.Like(2 * pacttest.ProductPrice),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"paymentKey":     matchers.S(pacttest.ApprovedPaymentKey),
				"orderId":        matchers.S(pacttest.ExistingOrderID),
				"status":         matchers.S(paymentgateway.StatusDone),
				"approvedAmount": matchers.Like(2 * pacttest.ProductPrice),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateGatewayDeclines).
		UponReceiving("a request to confirm a declined payment").
		WithRequest("POST", "/v1/payments/"+pacttest.DeclinedPaymentKey+"/confirm", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"orderId": matchers.S(pacttest.ExistingOrderID),
				"amount":  matchers.Like(2 * pacttest.ProductPrice),
			})
		}).
		WillRespondWith(http.StatusBadRequest, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"code":    matchers.Like("REJECT_CARD_PAYMENT"),
				"message": matchers.Like("card declined"),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		client, err := paymentgateway.NewClient(fmt.Sprintf("http://%s:%d", host, config.Port),
			paymentgateway.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
			paymentgateway.WithRateLimit(0, 0))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		intent, err := client.CreateIntent(ctx, paymentgateway.CreateIntentRequest{OrderID: pacttest.ExistingOrderID, Amount: 2 * pacttest.ProductPrice})
		if err != nil {
			return fmt.Errorf("create intent: %w", err)
		}
		if intent.PaymentKey == "" {
			return errors.New("expected a payment key")
		}

		confirmed, err := client.Confirm(ctx, pacttest.ApprovedPaymentKey, paymentgateway.ConfirmRequest{OrderID: pacttest.ExistingOrderID, Amount: 2 * pacttest.ProductPrice})
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if confirmed.Status != paymentgateway.StatusDone {
			return fmt.Errorf("expected %s, got %s", paymentgateway.StatusDone, confirmed.Status)
		}

		_, err = client.Confirm(ctx, pacttest.DeclinedPaymentKey, paymentgateway.ConfirmRequest{OrderID: pacttest.ExistingOrderID, Amount: 2 * pacttest.ProductPrice})
		var declined *paymentgateway.DeclinedError
		if !errors.As(err, &declined) {
			return fmt.Errorf("expected a declined error, got %v", err)
		}
		if declined.Body.Code == "" {
			return errors.New("expected a decline code")
		}
		return nil
	})
	require.NoError(t, err)
}
