package workflows

import (
	"context"
	"fmt"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	"github.com/Apurer/delivery-order-engine/internal/platform/outbox"
)

// PaymentRequestedHandler decodes orders.payment.requested messages and dispatches them.
type PaymentRequestedHandler struct {
	dispatcher ports.Dispatcher
}

func NewPaymentRequestedHandler(dispatcher ports.Dispatcher) *PaymentRequestedHandler {
	return &PaymentRequestedHandler{dispatcher: dispatcher}
}

func (h *PaymentRequestedHandler) Handle(ctx context.Context, msg outbox.Message) error {
	var req ports.PaymentRequest
	if err := msg.Decode(&req); err != nil {
		return fmt.Errorf("decode payment request %s: %w", msg.ID, err)
	}
	if req.OrderID == "" {
		req.OrderID = msg.AggregateID
	}
	return h.dispatcher.Dispatch(ctx, req)
}

var _ outbox.Handler = (*PaymentRequestedHandler)(nil)
