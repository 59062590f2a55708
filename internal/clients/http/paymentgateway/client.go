package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable covers transport failures and 5xx answers.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// DeclinedError carries a 4xx answer from the gateway.
type DeclinedError struct {
	StatusCode int
	Body       Error
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment gateway declined (%d): %s %s", e.StatusCode, e.Body.Code, e.Body.Message)
}

// Client talks to the payment gateway REST API.
type Client struct {
	server     string
	httpClient *http.Client
	limiter    *rate.Limiter
	editors    []RequestEditorFn
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithRateLimit caps outgoing calls per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(client *Client) {
		if perSecond <= 0 {
			client.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithSecretKey authenticates with HTTP basic auth using the secret key as user name.
func WithSecretKey(secret string) ClientOption {
	return func(client *Client) {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return
		}
		client.editors = append(client.editors, func(_ context.Context, req *http.Request) error {
			req.SetBasicAuth(secret, "")
			return nil
		})
	}
}

// NewClient instantiates the gateway client with sane defaults.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, errors.New("payment gateway base URL is required")
	}
	c := &Client{
		server: server,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// CreateIntent registers a charge and returns its payment key.
func (c *Client) CreateIntent(ctx context.Context, body CreateIntentRequest) (*IntentResponse, error) {
	req, err := NewCreateIntentRequest(c.server, body)
	if err != nil {
		return nil, err
	}
	var out IntentResponse
	if err := c.do(ctx, req, "", &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.PaymentKey) == "" {
		return nil, fmt.Errorf("%w: intent response without payment key", ErrUnavailable)
	}
	return &out, nil
}

// Confirm captures the payment. The order id doubles as idempotency key so that a
// retried confirmation is not charged twice.
func (c *Client) Confirm(ctx context.Context, paymentKey string, body ConfirmRequest) (*ConfirmResponse, error) {
	req, err := NewConfirmRequest(c.server, paymentKey, body)
	if err != nil {
		return nil, err
	}
	var out ConfirmResponse
	if err := c.do(ctx, req, body.OrderID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, idempotencyKey string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	req = req.WithContext(ctx)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return err
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		declined := &DeclinedError{StatusCode: resp.StatusCode}
		_ = decodeBody(resp, &declined.Body)
		return declined
	case resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}
	if err := decodeBody(resp, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}
