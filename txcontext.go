package rwrouter

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TxContext is the routing-relevant state of one logical transaction: whether it is still running, and whether it was
// begun read-only. The access mode is fixed when the TxContext is created.
//
// A nil *TxContext describes "no transaction".
type TxContext struct {
	id       uuid.UUID
	readOnly bool

	mu    sync.Mutex
	ended bool
	hooks []func()
}

// NewTxContext starts tracking a new active transaction
func NewTxContext(readOnly bool) *TxContext {
	return &TxContext{id: uuid.New(), readOnly: readOnly}
}

// ID identifies the transaction in logs
func (t *TxContext) ID() uuid.UUID {
	if t == nil {
		return uuid.Nil
	}
	return t.id
}

// IsActive reports whether the transaction has begun and not yet ended
func (t *TxContext) IsActive() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.ended
}

// IsReadOnly reports whether the transaction was begun read-only
func (t *TxContext) IsReadOnly() bool {
	return t != nil && t.readOnly
}

// OnEnd registers fn to run when the transaction ends. If it has already ended, fn runs immediately.
func (t *TxContext) OnEnd(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

// End marks the transaction finished (committed, rolled back or abandoned) and runs the registered hooks in reverse
// registration order. Later calls do nothing.
func (t *TxContext) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

type txContextKey struct{}

// ContextWithTx returns a copy of ctx carrying tx
func ContextWithTx(ctx context.Context, tx *TxContext) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, or nil
func TxFromContext(ctx context.Context) *TxContext {
	tx, _ := ctx.Value(txContextKey{}).(*TxContext)
	return tx
}
