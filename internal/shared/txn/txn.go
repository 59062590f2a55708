// Package txn carries unit-of-work state on a context so that code running inside a
// transaction can register work that must only happen once the transaction commits.
package txn

import (
	"context"
	"errors"
	"sync"
)

// ErrNoTransaction is returned when a hook is registered outside of a unit of work.
var ErrNoTransaction = errors.New("no active transaction")

// Manager runs fn as a single unit of work. Nested calls join the outer unit.
type Manager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Scope collects the hooks registered during one unit of work.
type Scope struct {
	mu          sync.Mutex
	afterCommit []func(context.Context)
	onRollback  []func(context.Context)
	done        bool
}

type scopeKey struct{}

// Begin opens a new scope and returns a context carrying it.
func Begin(ctx context.Context) (context.Context, *Scope) {
	scope := &Scope{}
	return context.WithValue(ctx, scopeKey{}, scope), scope
}

// FromContext returns the active scope, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	return scope, ok && scope != nil
}

// InTx reports whether ctx belongs to an open unit of work.
func InTx(ctx context.Context) bool {
	scope, ok := FromContext(ctx)
	if !ok {
		return false
	}
	scope.mu.Lock()
	defer scope.mu.Unlock()
	return !scope.done
}

// AfterCommit registers fn to run once the surrounding unit of work commits.
// Hooks never run when the unit of work rolls back.
func AfterCommit(ctx context.Context, fn func(context.Context)) error {
	scope, ok := FromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	return scope.add(fn, true)
}

// OnRollback registers fn to undo a non-transactional side effect on rollback.
func OnRollback(ctx context.Context, fn func(context.Context)) error {
	scope, ok := FromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	return scope.add(fn, false)
}

func (s *Scope) add(fn func(context.Context), commit bool) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrNoTransaction
	}
	if commit {
		s.afterCommit = append(s.afterCommit, fn)
	} else {
		s.onRollback = append(s.onRollback, fn)
	}
	return nil
}

// Committed closes the scope and runs after-commit hooks in registration order.
// Hooks get a context detached from the caller's cancellation.
func (s *Scope) Committed(ctx context.Context) {
	hooks := s.finish(true)
	hookCtx := context.WithoutCancel(ctx)
	for _, fn := range hooks {
		fn(hookCtx)
	}
}

// RolledBack closes the scope and runs rollback hooks in reverse order.
func (s *Scope) RolledBack(ctx context.Context) {
	hooks := s.finish(false)
	hookCtx := context.WithoutCancel(ctx)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](hookCtx)
	}
}

func (s *Scope) finish(committed bool) []func(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	hooks := s.onRollback
	if committed {
		hooks = s.afterCommit
	}
	s.afterCommit, s.onRollback = nil, nil
	return hooks
}
