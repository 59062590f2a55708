package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func appendCommitted(t *testing.T, store Store, msgs ...Message) {
	t.Helper()
	require.NoError(t, txn.NewLocalManager().Do(context.Background(), func(ctx context.Context) error {
		return store.Append(ctx, msgs...)
	}))
}

func TestMemoryStoreAppendRequiresTransaction(t *testing.T) {
	store := NewMemoryStore()
	msg, err := NewMessage("topic", "agg", map[string]string{"k": "v"}, time.Now())
	require.NoError(t, err)

	require.ErrorIs(t, store.Append(context.Background(), msg), txn.ErrNoTransaction)
}

func TestMemoryStoreDiscardsRolledBackAppends(t *testing.T) {
	store := NewMemoryStore()
	msg, err := NewMessage("topic", "agg", struct{}{}, time.Now())
	require.NoError(t, err)

	err = txn.NewLocalManager().Do(context.Background(), func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, msg))
		return errors.New("rollback")
	})
	require.Error(t, err)
	require.Empty(t, store.Messages())
}

func TestMemoryStoreHidesAppendsUntilCommit(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	msg, err := NewMessage("topic", "agg", struct{}{}, now)
	require.NoError(t, err)

	err = txn.NewLocalManager().Do(context.Background(), func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, msg))
		claimed, err := store.Claim(context.Background(), 10, now.Add(time.Minute), time.Minute)
		require.NoError(t, err)
		assert.Empty(t, claimed)
		assert.Empty(t, store.Messages())
		return nil
	})
	require.NoError(t, err)

	claimed, err := store.Claim(context.Background(), 10, now.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, msg.ID, claimed[0].ID)
}

func TestRelayDeliversAndAcknowledges(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	msg, err := NewMessage("orders.payment.requested", "order-1", map[string]any{"orderId": "order-1"}, clock.Now())
	require.NoError(t, err)
	appendCommitted(t, store, msg)

	var got []Message
	var mu sync.Mutex
	relay := NewRelay(store, WithClock(clock.Now))
	relay.Register("orders.payment.requested", HandlerFunc(func(_ context.Context, m Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
		return nil
	}))

	delivered, err := relay.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, got, 1)

	var payload struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, "order-1", payload.OrderID)

	delivered, err = relay.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	require.NotNil(t, store.Messages()[0].DispatchedAt)
}

func TestRelayRetriesFailedDeliveries(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	msg, err := NewMessage("topic", "agg", struct{}{}, clock.Now())
	require.NoError(t, err)
	appendCommitted(t, store, msg)

	calls := 0
	relay := NewRelay(store, WithClock(clock.Now))
	relay.Register("topic", HandlerFunc(func(context.Context, Message) error {
		calls++
		if calls == 1 {
			return errors.New("consumer down")
		}
		return nil
	}))

	delivered, err := relay.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	stored := store.Messages()[0]
	assert.Equal(t, "consumer down", stored.LastError)
	assert.Equal(t, 1, stored.Attempts)

	delivered, err = relay.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered, "message is not due before its backoff elapses")

	clock.Advance(2 * time.Second)
	delivered, err = relay.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 2, calls)
}

func TestRelayKeepsMessagesWithoutHandler(t *testing.T) {
	store := NewMemoryStore()
	msg, err := NewMessage("unrouted", "agg", struct{}{}, time.Now().UTC())
	require.NoError(t, err)
	appendCommitted(t, store, msg)

	relay := NewRelay(store)
	_, err = relay.DispatchPending(context.Background())
	require.NoError(t, err)
	stored := store.Messages()[0]
	require.Nil(t, stored.DispatchedAt)
	require.Contains(t, stored.LastError, ErrUnknownTopic.Error())
}

func TestRelayRunWakesOnNotify(t *testing.T) {
	store := NewMemoryStore()
	relay := NewRelay(store, WithPollInterval(time.Hour))
	delivered := make(chan string, 1)
	relay.Register("topic", HandlerFunc(func(_ context.Context, m Message) error {
		delivered <- m.AggregateID
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	msg, err := NewMessage("topic", "agg-7", struct{}{}, time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	appendCommitted(t, store, msg)
	relay.Notify()

	select {
	case id := <-delivered:
		assert.Equal(t, "agg-7", id)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not deliver after Notify")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestPurgeDispatched(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	old, _ := NewMessage("topic", "old", struct{}{}, now.Add(-48*time.Hour))
	pending, _ := NewMessage("topic", "pending", struct{}{}, now.Add(-48*time.Hour))
	appendCommitted(t, store, old, pending)
	require.NoError(t, store.MarkDispatched(context.Background(), old.ID, now.Add(-47*time.Hour)))

	purged, err := store.PurgeDispatched(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
	require.Len(t, store.Messages(), 1)
	assert.Equal(t, "pending", store.Messages()[0].AggregateID)
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, maxBackoff, backoff(20))
}
