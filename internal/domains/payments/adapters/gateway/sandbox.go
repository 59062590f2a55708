package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
)

var _ ports.Gateway = (*Sandbox)(nil)

// Sandbox is an in-process gateway that approves every charge unless told otherwise.
// It backs local runs without a gateway URL and the coordinator tests.
type Sandbox struct {
	mu       sync.Mutex
	latency  time.Duration
	declines map[string]ports.Confirmation
	failures map[string]error
	approved map[string]int64
	confirms []ports.ConfirmRequest
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		declines: map[string]ports.Confirmation{},
		failures: map[string]error{},
		approved: map[string]int64{},
	}
}

// WithLatency delays every confirmation, honoring context cancellation.
func (s *Sandbox) WithLatency(d time.Duration) *Sandbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
	return s
}

// Decline makes confirmations for orderID come back declined.
func (s *Sandbox) Decline(orderID, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declines[orderID] = ports.Confirmation{Approved: false, Code: code, Message: message}
}

// Fail makes calls for orderID return err.
func (s *Sandbox) Fail(orderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[orderID] = err
}

// ApproveAmount makes the gateway report a different approved amount for orderID.
func (s *Sandbox) ApproveAmount(orderID string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved[orderID] = amount
}

// Confirms returns every confirmation request received so far.
func (s *Sandbox) Confirms() []ports.ConfirmRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ConfirmRequest(nil), s.confirms...)
}

func (s *Sandbox) CreateIntent(_ context.Context, req ports.IntentRequest) (*ports.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[req.OrderID]; ok {
		return nil, err
	}
	return &ports.Intent{PaymentKey: "sandbox_" + req.OrderID, RedirectURL: "/sandbox/checkout/" + req.OrderID}, nil
}

func (s *Sandbox) Confirm(ctx context.Context, req ports.ConfirmRequest) (*ports.Confirmation, error) {
	s.mu.Lock()
	latency := s.latency
	s.confirms = append(s.confirms, req)
	s.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[req.OrderRef]; ok {
		return nil, err
	}
	if decline, ok := s.declines[req.OrderRef]; ok {
		return &decline, nil
	}
	amount := req.Amount
	if override, ok := s.approved[req.OrderRef]; ok {
		amount = override
	}
	return &ports.Confirmation{Approved: true, ApprovedAmount: amount, Code: "DONE"}, nil
}
