package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type txState int

const (
	stateClosed txState = iota
	stateOpen
)

// TxTracker records the lifecycle of named transactions opened during one
// request. It travels in the request context instead of any process-wide
// registry, so concurrent requests never observe each other's entries.
type TxTracker struct {
	mu     sync.Mutex
	states map[string]txState
}

// NewTxTracker creates an empty tracker.
func NewTxTracker() *TxTracker {
	return &TxTracker{states: make(map[string]txState)}
}

func (t *TxTracker) set(name string, s txState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[name] = s
}

// Open reports whether the named transaction is currently open.
func (t *TxTracker) Open(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[name] == stateOpen
}

type txTrackerKey struct{}

// WithTxTracker attaches a fresh tracker to the context. Installed once per
// request by transport middleware.
func WithTxTracker(ctx context.Context) context.Context {
	return context.WithValue(ctx, txTrackerKey{}, NewTxTracker())
}

// TrackerFromContext returns the tracker attached to ctx, or nil.
func TrackerFromContext(ctx context.Context) *TxTracker {
	t, _ := ctx.Value(txTrackerKey{}).(*TxTracker)
	return t
}

// GuardedTx wraps a pgx transaction and mirrors commit/rollback into the
// tracker so the guard can tell a handed-off transaction from a leaked one.
type GuardedTx struct {
	tx      pgx.Tx
	tracker *TxTracker
	name    string
}

var _ Tx = (*GuardedTx)(nil)

func (g *GuardedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return g.tx.Exec(ctx, sql, args...)
}

func (g *GuardedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return g.tx.Query(ctx, sql, args...)
}

func (g *GuardedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return g.tx.QueryRow(ctx, sql, args...)
}

// Commit commits the transaction and marks it closed.
func (g *GuardedTx) Commit(ctx context.Context) error {
	if g.tracker != nil {
		g.tracker.set(g.name, stateClosed)
	}
	if err := g.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", g.name, err)
	}
	return nil
}

// Rollback rolls the transaction back and marks it closed.
func (g *GuardedTx) Rollback(ctx context.Context) error {
	if g.tracker != nil {
		g.tracker.set(g.name, stateClosed)
	}
	if err := g.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback %s: %w", g.name, err)
	}
	return nil
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Guard opens transactions and guarantees each one is closed exactly once.
// A callback that returns without committing gets rolled back, a warning is
// logged, and panics still release the underlying transaction.
type Guard struct {
	db     beginner
	logger *zap.Logger
}

// NewGuard creates a transaction guard over the pool.
func NewGuard(db beginner, logger *zap.Logger) *Guard {
	return &Guard{db: db, logger: logger}
}

// InTransaction runs fn inside a named transaction. On a nil return the
// transaction is committed unless fn already closed it through the handle.
// On error it is rolled back and the error is returned unchanged so
// sentinel checks in callers keep working.
func (g *Guard) InTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}

	tracker := TrackerFromContext(ctx)
	if tracker == nil {
		tracker = NewTxTracker()
	}
	tracker.set(name, stateOpen)
	guarded := &GuardedTx{tx: tx, tracker: tracker, name: name}

	defer func() {
		if !tracker.Open(name) {
			return
		}
		g.logger.Warn("transaction closed implicitly",
			zap.String("tx", name),
		)
		if rbErr := guarded.Rollback(ctx); rbErr != nil {
			g.logger.Error("implicit rollback failed",
				zap.String("tx", name),
				zap.Error(rbErr),
			)
		}
	}()

	if err := fn(ctx, guarded); err != nil {
		if tracker.Open(name) {
			if rbErr := guarded.Rollback(ctx); rbErr != nil {
				g.logger.Error("rollback failed",
					zap.String("tx", name),
					zap.Error(rbErr),
				)
			}
		}
		return err
	}

	if tracker.Open(name) {
		return guarded.Commit(ctx)
	}
	return nil
}
