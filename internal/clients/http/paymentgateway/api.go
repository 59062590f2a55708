package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// CreateIntentRequest is the body of POST /v1/payments/intents.
type CreateIntentRequest struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

// IntentResponse is returned by intent creation.
type IntentResponse struct {
	PaymentKey  string `json:"paymentKey"`
	RedirectURL string `json:"redirectUrl"`
}

// ConfirmRequest is the body of POST /v1/payments/{paymentKey}/confirm.
type ConfirmRequest struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

// ConfirmResponse is returned by a successful confirmation.
type ConfirmResponse struct {
	PaymentKey     string `json:"paymentKey"`
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	ApprovedAmount int64  `json:"approvedAmount"`
}

// Error is the gateway error envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusDone marks a confirmed and captured payment.
const StatusDone = "DONE"

// RequestEditorFn can mutate an outgoing request, e.g. to add authentication.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// NewCreateIntentRequest builds the intent creation request.
func NewCreateIntentRequest(server string, body CreateIntentRequest) (*http.Request, error) {
	target, err := operationURL(server, "/v1/payments/intents")
	if err != nil {
		return nil, err
	}
	return newJSONRequest(target, body)
}

// NewConfirmRequest builds the confirmation request for paymentKey.
func NewConfirmRequest(server string, paymentKey string, body ConfirmRequest) (*http.Request, error) {
	pathParam, err := runtime.StyleParamWithLocation("simple", false, "paymentKey", runtime.ParamLocationPath, paymentKey)
	if err != nil {
		return nil, err
	}
	target, err := operationURL(server, fmt.Sprintf("/v1/payments/%s/confirm", pathParam))
	if err != nil {
		return nil, err
	}
	return newJSONRequest(target, body)
}

func operationURL(server, path string) (*url.URL, error) {
	serverURL, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	operationPath := strings.TrimPrefix(path, "/")
	if !strings.HasSuffix(serverURL.Path, "/") {
		serverURL.Path += "/"
	}
	return serverURL.Parse(operationPath)
}

func newJSONRequest(target *url.URL, body any) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, target.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decodeBody(resp *http.Response, v any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
