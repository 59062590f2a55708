package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

// errReplayed aborts a placement whose idempotency key was claimed concurrently.
var errReplayed = errors.New("idempotency key replayed")

// Service orchestrates order placement and lifecycle transitions.
type Service struct {
	repo        ports.Repository
	catalog     ports.CatalogReader
	stores      ports.StoreReader
	events      ports.EventPublisher
	tx          txn.Manager
	idempotency ports.IdempotencyStore
	payments    ports.PaymentCanceller
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how order and payment ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithIdempotencyStore(store ports.IdempotencyStore) Option {
	return func(s *Service) {
		s.idempotency = store
	}
}

func WithPaymentCanceller(payments ports.PaymentCanceller) Option {
	return func(s *Service) {
		s.payments = payments
	}
}

func NewService(
	repo ports.Repository,
	catalog ports.CatalogReader,
	stores ports.StoreReader,
	events ports.EventPublisher,
	tx txn.Manager,
	opts ...Option,
) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		stores:  stores,
		events:  events,
		tx:      tx,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// PlaceOrder prices the requested items against the current catalog, stores the order
// awaiting payment, and requests payment once the placement commits.
func (s *Service) PlaceOrder(ctx context.Context, input ports.PlaceOrderInput) (*domain.Order, error) {
	requests, err := mergeItems(input.Items)
	if err != nil {
		return nil, mapError(err)
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	useKey := key != "" && s.idempotency != nil
	var fingerprint string
	if useKey {
		if fingerprint, err = FingerprintPlaceOrder(input); err != nil {
			return nil, mapError(err)
		}
		existing, err := s.idempotency.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, existing, fingerprint)
		}
	}

	var (
		placed   *domain.Order
		replayID string
	)
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		items, err := s.resolveLineItems(ctx, strings.TrimSpace(input.StoreID), requests)
		if err != nil {
			return err
		}
		store, err := s.stores.ResolveSummary(ctx, strings.TrimSpace(input.StoreID))
		if err != nil {
			return err
		}
		now := s.now()
		order, err := domain.NewOrder(domain.NewOrderParams{
			ID:         s.newID(),
			CustomerID: input.CustomerID,
			StoreID:    store.ID,
			LineItems:  items,
			Address:    input.Address,
			Memo:       input.Memo,
			PlacedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, order); err != nil {
			return err
		}
		event := domain.PaymentRequested{
			BaseEvent: domain.BaseEvent{Timestamp: now},
			PaymentID: s.newID(),
			OrderID:   order.ID,
			Amount:    order.TotalPrice,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish %s: %w", event.EventName(), err)
		}
		if useKey {
			saved, err := s.idempotency.Save(ctx, ports.IdempotencyRecord{
				Key:         key,
				RequestHash: fingerprint,
				OrderID:     order.ID,
				CreatedAt:   now,
			})
			if err != nil {
				return err
			}
			if saved != nil && saved.OrderID != order.ID {
				replayID = saved.OrderID
				return errReplayed
			}
		}
		placed = order
		return nil
	})
	if errors.Is(err, errReplayed) {
		return s.GetOrder(ctx, replayID)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return placed, nil
}

func (s *Service) replay(ctx context.Context, record *ports.IdempotencyRecord, fingerprint string) (*domain.Order, error) {
	if record.RequestHash != fingerprint {
		return nil, ports.ErrIdempotencyConflict
	}
	return s.GetOrder(ctx, record.OrderID)
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// CancelOrder cancels within the customer window and voids any attached payment.
func (s *Service) CancelOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, orderID, func(ctx context.Context, order *domain.Order) error {
		if err := order.Cancel(actor, s.now()); err != nil {
			return err
		}
		if s.payments == nil {
			return nil
		}
		return s.payments.CancelForOrder(ctx, order.ID, actor)
	})
}

func (s *Service) AcceptOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, orderID, func(_ context.Context, order *domain.Order) error {
		return order.Accept(actor, s.now())
	})
}

func (s *Service) RejectOrder(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, orderID, func(_ context.Context, order *domain.Order) error {
		return order.Reject(actor, s.now())
	})
}

func (s *Service) StartDelivery(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, orderID, func(_ context.Context, order *domain.Order) error {
		return order.StartDelivery(actor, s.now())
	})
}

func (s *Service) CompleteDelivery(ctx context.Context, orderID, actor string) (ports.TransitionResult, error) {
	return s.transition(ctx, orderID, func(_ context.Context, order *domain.Order) error {
		return order.CompleteDelivery(actor, s.now())
	})
}

// DeleteOrder soft deletes an order that reached a terminal status.
func (s *Service) DeleteOrder(ctx context.Context, orderID, actor string) error {
	_, err := s.transition(ctx, orderID, func(_ context.Context, order *domain.Order) error {
		return order.SoftDelete(actor, s.now())
	})
	return err
}

// transition loads the order under a row lock so the guard sees the latest committed status.
func (s *Service) transition(ctx context.Context, orderID string, apply func(context.Context, *domain.Order) error) (ports.TransitionResult, error) {
	var result ports.TransitionResult
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(ctx, order); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, order); err != nil {
			return err
		}
		result = ports.TransitionResult{OrderID: order.ID, Status: order.Status}
		return nil
	})
	if err != nil {
		return ports.TransitionResult{}, mapError(err)
	}
	return result, nil
}

var _ ports.Service = (*Service)(nil)
