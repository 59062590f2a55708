package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps messages in process. Appends become visible once the surrounding
// unit of work commits and are dropped if it rolls back.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: map[string]*Message{}}
}

func (s *MemoryStore) Append(ctx context.Context, messages ...Message) error {
	if !txn.InTx(ctx) {
		return txn.ErrNoTransaction
	}
	pending := make([]Message, len(messages))
	copy(pending, messages)
	return txn.AfterCommit(ctx, func(context.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range pending {
			msg := pending[i]
			s.messages[msg.ID] = &msg
		}
	})
}

func (s *MemoryStore) Claim(_ context.Context, limit int, now time.Time, lease time.Duration) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]*Message, 0)
	for _, msg := range s.messages {
		if msg.DispatchedAt == nil && !msg.AvailableAt.After(now) {
			due = append(due, msg)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	claimed := make([]Message, 0, len(due))
	for _, msg := range due {
		msg.AvailableAt = now.Add(lease)
		msg.Attempts++
		claimed = append(claimed, *msg)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkDispatched(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		dispatched := at
		msg.DispatchedAt = &dispatched
		msg.LastError = ""
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, reason string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.LastError = reason
		msg.AvailableAt = retryAt
	}
	return nil
}

func (s *MemoryStore) PurgeDispatched(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, msg := range s.messages {
		if msg.DispatchedAt != nil && msg.DispatchedAt.Before(before) {
			delete(s.messages, id)
			purged++
		}
	}
	return purged, nil
}

// Messages returns a snapshot of every stored message, oldest first.
func (s *MemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		list = append(list, *msg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}
