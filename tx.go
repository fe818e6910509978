package rwrouter

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxOptions are the options a transaction is begun with
type TxOptions struct {
	ReadOnly bool
	IsoLevel pgx.TxIsoLevel
}

// Tx is a logical transaction whose connection is bound lazily. Beginning it does no I/O; the first statement acquires a
// connection through the router and begins a backend transaction with the same access mode on it.
type Tx struct {
	txc    *TxContext
	proxy  *Proxy
	opts   TxOptions
	logger *log.Logger

	backendTx pgx.Tx
	done      bool
}

// NewTx begins a logical transaction whose connection will come from a
func NewTx(a Acquirer, opts TxOptions, l *log.Logger) *Tx {
	if l == nil {
		l = log.New(io.Discard)
	}
	txc := NewTxContext(opts.ReadOnly)
	return &Tx{
		txc:    txc,
		proxy:  NewProxy(a, txc, WithProxyLogger(l)),
		opts:   opts,
		logger: l,
	}
}

// Begin starts a transaction routed by opts.ReadOnly. No connection is acquired until the first statement runs.
func (r *Router) Begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := NewTx(r, opts, r.logger)
	r.logger.Debug("begin", "tx", t.txc.ID(), "read_only", opts.ReadOnly)
	return t, nil
}

// Context returns a copy of ctx carrying the transaction, for code that acquires connections from a Router itself
func (t *Tx) Context(ctx context.Context) context.Context {
	return ContextWithTx(ctx, t.txc)
}

// ReadOnly reports whether the transaction was begun read-only
func (t *Tx) ReadOnly() bool {
	return t.opts.ReadOnly
}

// Bound reports whether the transaction has acquired its connection yet
func (t *Tx) Bound() bool {
	return t.proxy.Bound()
}

func (t *Tx) bind(ctx context.Context) (pgx.Tx, error) {
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	if t.backendTx != nil {
		return t.backendTx, nil
	}

	c, err := t.proxy.Conn(ctx)
	if err != nil {
		return nil, err
	}

	mode := pgx.ReadWrite
	if t.opts.ReadOnly {
		mode = pgx.ReadOnly
	}
	btx, err := c.BeginTx(ctx, pgx.TxOptions{IsoLevel: t.opts.IsoLevel, AccessMode: mode})
	if err != nil {
		return nil, err
	}
	t.backendTx = btx
	return btx, nil
}

// Exec executes a statement that doesn't return rows
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	btx, err := t.bind(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return btx.Exec(ctx, sql, args...)
}

// Query executes a statement that returns rows
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	btx, err := t.bind(ctx)
	if err != nil {
		return nil, err
	}
	return btx.Query(ctx, sql, args...)
}

// QueryRow executes a statement expected to return at most one row. Binding errors are deferred to Scan.
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	btx, err := t.bind(ctx)
	if err != nil {
		return errRow{err: err}
	}
	return btx.QueryRow(ctx, sql, args...)
}

// Commit commits the backend transaction, if one was begun, and releases the connection
func (t *Tx) Commit(ctx context.Context) error {
	return t.finish(ctx, pgx.Tx.Commit)
}

// Rollback rolls back the backend transaction, if one was begun, and releases the connection
func (t *Tx) Rollback(ctx context.Context) error {
	return t.finish(ctx, pgx.Tx.Rollback)
}

func (t *Tx) finish(ctx context.Context, end func(pgx.Tx, context.Context) error) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.txc.End()

	if t.backendTx == nil {
		// never bound; nothing to do on any backend
		return nil
	}
	if err := end(t.backendTx, ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			t.logger.Warn("backend transaction already closed", "tx", t.txc.ID())
		}
		return err
	}
	return nil
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
