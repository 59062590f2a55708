package txn

import (
	"context"
	"sync"
)

var _ Manager = (*LocalManager)(nil)

// LocalManager serializes units of work within the process. It backs the in-memory
// adapters, which register undo actions through OnRollback.
//
// Hooks run before the lock is released, so no other unit of work observes state
// that is later undone. Hooks must therefore not call Do.
type LocalManager struct {
	mu sync.Mutex
}

func NewLocalManager() *LocalManager {
	return &LocalManager{}
}

func (m *LocalManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txCtx, scope := Begin(ctx)
	if err := fn(txCtx); err != nil {
		scope.RolledBack(ctx)
		return err
	}
	scope.Committed(ctx)
	return nil
}
