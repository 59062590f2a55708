package ports

import (
	"context"
	"errors"
)

var (
	// ErrGatewayUnavailable covers transport failures and 5xx responses.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentDeclined is returned when the gateway refuses the charge.
	ErrPaymentDeclined = errors.New("payment declined")
)

type IntentRequest struct {
	OrderID string
	Amount  int64
}

// Intent is the gateway handle for a charge about to be confirmed.
type Intent struct {
	PaymentKey  string
	RedirectURL string
}

type ConfirmRequest struct {
	PaymentKey string
	OrderRef   string
	Amount     int64
}

// Confirmation is the gateway verdict. Declines are reported with Approved=false
// rather than an error.
type Confirmation struct {
	Approved       bool
	ApprovedAmount int64
	Code           string
	Message        string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
}
