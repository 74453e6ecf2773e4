package closure

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lockedTx couples a live transaction with the advisory lock taken for it.
// The lock, when enabled, is acquired before any tree mutation and held
// until commit or rollback, serializing all find-or-create work for one
// logical tree.
type lockedTx struct {
	tx  *gorm.DB
	key string
	log *zap.SugaredLogger
}

// acquireLockedTx begins a transaction and, for a namespaced strategy,
// blocks until the advisory lock for the tree is held. If the lock call
// fails the transaction is rolled back and the error propagates, so no
// work ever runs without exclusivity.
func acquireLockedTx(ctx context.Context, db *gorm.DB, strategy LockStrategy, log *zap.SugaredLogger) (*lockedTx, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("closure: begin transaction: %w", tx.Error)
	}

	guard := &lockedTx{tx: tx, key: strategy.Key, log: log}
	if strategy.Enabled() {
		if err := tx.Exec("SELECT pg_advisory_lock(hashtext(?), 0)", guard.key).Error; err != nil {
			if rbErr := tx.Rollback().Error; rbErr != nil {
				log.Errorw("rollback after failed lock acquire", "lock_key", guard.key, "error", rbErr)
			}
			return nil, fmt.Errorf("closure: acquire advisory lock %q: %w", guard.key, err)
		}
	}
	return guard, nil
}

func (g *lockedTx) conn() *gorm.DB {
	return g.tx
}

// commit releases the advisory lock, then commits. A failed release never
// aborts the commit: the lock is session-scoped and drops with the
// connection regardless.
func (g *lockedTx) commit() error {
	g.release()
	if err := g.tx.Commit().Error; err != nil {
		return fmt.Errorf("closure: commit transaction: %w", err)
	}
	return nil
}

// rollback releases the advisory lock, then rolls back. The release error
// is ignored so it cannot mask the rollback outcome.
func (g *lockedTx) rollback() error {
	g.release()
	if err := g.tx.Rollback().Error; err != nil {
		return fmt.Errorf("closure: rollback transaction: %w", err)
	}
	return nil
}

func (g *lockedTx) release() {
	if g.key == "" {
		return
	}
	if err := g.tx.Exec("SELECT pg_advisory_unlock(hashtext(?), 0)", g.key).Error; err != nil {
		g.log.Debugw("advisory unlock failed", "lock_key", g.key, "error", err)
	}
}
