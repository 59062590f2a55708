package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/delivery-order-engine/internal/clients/http/paymentgateway"
	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

var _ ports.Gateway = (*HTTPGateway)(nil)

// HTTPGateway maps the REST gateway client onto the payments port.
type HTTPGateway struct {
	client *paymentgateway.Client
}

func NewHTTPGateway(client *paymentgateway.Client) *HTTPGateway {
	return &HTTPGateway{client: client}
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, req ports.IntentRequest) (*ports.Intent, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway client not configured")
	}
	resp, err := g.client.CreateIntent(ctx, paymentgateway.CreateIntentRequest{OrderID: req.OrderID, Amount: req.Amount})
	if err != nil {
		return nil, translate(err)
	}
	return &ports.Intent{PaymentKey: resp.PaymentKey, RedirectURL: resp.RedirectURL}, nil
}

// Confirm reports 4xx answers as a decline and everything else that failed as an error.
func (g *HTTPGateway) Confirm(ctx context.Context, req ports.ConfirmRequest) (*ports.Confirmation, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway client not configured")
	}
	resp, err := g.client.Confirm(ctx, req.PaymentKey, paymentgateway.ConfirmRequest{OrderID: req.OrderRef, Amount: req.Amount})
	var declined *paymentgateway.DeclinedError
	if errors.As(err, &declined) {
		return &ports.Confirmation{Approved: false, Code: declined.Body.Code, Message: declined.Body.Message}, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	if resp.Status != paymentgateway.StatusDone {
		return &ports.Confirmation{Approved: false, Code: resp.Status, Message: "payment not completed"}, nil
	}
	return &ports.Confirmation{Approved: true, ApprovedAmount: resp.ApprovedAmount, Code: resp.Status}, nil
}

func translate(err error) error {
	if errors.Is(err, paymentgateway.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ports.ErrGatewayUnavailable, err)
	}
	return err
}
