package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
	defaultConcurrency  = 4
	defaultLease        = time.Minute
	maxBackoff          = 5 * time.Minute
)

// Relay moves committed messages from the Store to registered handlers. Delivery is
// at-least-once: a message is acknowledged only after its handler returned nil.
type Relay struct {
	store       Store
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	concurrency int
	lease       time.Duration
	now         func() time.Time
	notify      chan struct{}
	metrics     relayMetrics

	mu       sync.RWMutex
	handlers map[string]Handler
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMeter(m metric.Meter) RelayOption {
	return func(r *Relay) {
		r.metrics = newRelayMetrics(m)
	}
}

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithConcurrency(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLease sets how long a claimed message stays hidden from other relays.
func WithLease(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRelay(store Store, opts ...RelayOption) *Relay {
	r := &Relay{
		store:       store,
		logger:      slog.Default(),
		interval:    defaultPollInterval,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
		lease:       defaultLease,
		now:         func() time.Time { return time.Now().UTC() },
		notify:      make(chan struct{}, 1),
		handlers:    map[string]Handler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register routes messages of topic to h.
func (r *Relay) Register(topic string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = h
}

// Notify wakes the relay without waiting for the next poll. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info("outbox relay started", slog.Duration("poll_interval", r.interval), slog.Int("concurrency", r.concurrency))
	for {
		if _, err := r.DispatchPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("outbox relay pass failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-r.notify:
		}
	}
}

// DispatchPending claims one batch and delivers it. It returns how many messages
// were acknowledged.
func (r *Relay) DispatchPending(ctx context.Context) (int, error) {
	messages, err := r.store.Claim(ctx, r.batchSize, r.now(), r.lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}
	var (
		mu        sync.Mutex
		delivered int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			ok, err := r.deliver(gctx, msg)
			if ok {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
			return err
		})
	}
	return delivered, g.Wait()
}

// deliver hands msg to its handler and records the outcome. Only store failures are
// returned; handler failures are scheduled for retry.
func (r *Relay) deliver(ctx context.Context, msg Message) (bool, error) {
	attrs := []slog.Attr{
		slog.String("outbox.id", msg.ID),
		slog.String("outbox.topic", msg.Topic),
		slog.String("outbox.aggregate_id", msg.AggregateID),
		slog.Int("outbox.attempt", msg.Attempts),
	}
	r.mu.RLock()
	handler, ok := r.handlers[msg.Topic]
	r.mu.RUnlock()

	var handleErr error
	if !ok {
		handleErr = fmt.Errorf("%w: %s", ErrUnknownTopic, msg.Topic)
	} else {
		handleErr = handler.Handle(ctx, msg)
	}
	if handleErr != nil {
		retryAt := r.now().Add(backoff(msg.Attempts))
		r.metrics.recordFailed(ctx, msg.Topic)
		r.logger.LogAttrs(ctx, slog.LevelWarn, "outbox delivery failed, will retry",
			append(attrs, slog.String("error", handleErr.Error()), slog.Time("retry_at", retryAt))...)
		if err := r.store.MarkFailed(context.WithoutCancel(ctx), msg.ID, handleErr.Error(), retryAt); err != nil {
			return false, fmt.Errorf("mark outbox message %s failed: %w", msg.ID, err)
		}
		return false, nil
	}
	if err := r.store.MarkDispatched(context.WithoutCancel(ctx), msg.ID, r.now()); err != nil {
		return false, fmt.Errorf("mark outbox message %s dispatched: %w", msg.ID, err)
	}
	r.metrics.recordDispatched(ctx, msg.Topic)
	r.logger.LogAttrs(ctx, slog.LevelInfo, "outbox message delivered", attrs...)
	return true, nil
}

// backoff doubles from one second per attempt, capped at maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 9 {
		return maxBackoff
	}
	d := time.Second << (attempt - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

type relayMetrics struct {
	dispatched metric.Int64Counter
	failed     metric.Int64Counter
}

func newRelayMetrics(m metric.Meter) relayMetrics {
	if m == nil {
		return relayMetrics{}
	}
	dispatched, _ := m.Int64Counter("outbox.relay.dispatched", metric.WithDescription("Number of outbox messages delivered"))
	failed, _ := m.Int64Counter("outbox.relay.failed", metric.WithDescription("Number of failed outbox deliveries"))
	return relayMetrics{dispatched: dispatched, failed: failed}
}

func (m relayMetrics) recordDispatched(ctx context.Context, topic string) {
	if m.dispatched != nil {
		m.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("outbox.topic", topic)))
	}
}

func (m relayMetrics) recordFailed(ctx context.Context, topic string) {
	if m.failed != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("outbox.topic", topic)))
	}
}
