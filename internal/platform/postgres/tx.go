package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ txn.Manager = (*TxManager)(nil)

type txKey struct{}

// TxManager runs units of work in a database transaction. Adapters pick up the
// transaction through Conn.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Do runs fn in a transaction, joining one already open on ctx. After-commit hooks
// run once the COMMIT succeeded; nothing registered runs on rollback.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if m == nil || m.db == nil {
		return errors.New("postgres transaction manager not configured")
	}
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok && txn.InTx(ctx) {
		return fn(ctx)
	}
	txCtx, scope := txn.Begin(ctx)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(txCtx, txKey{}, tx))
	})
	if err != nil {
		scope.RolledBack(ctx)
		return err
	}
	scope.Committed(ctx)
	return nil
}

// Conn returns the transaction bound to ctx, or fallback when none is open.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// InTx reports whether ctx carries an open database transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && txn.InTx(ctx)
}
