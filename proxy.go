package rwrouter

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// State is the binding state of a Proxy
type State int

const (
	// StateUnbound means no connection has been requested yet
	StateUnbound State = iota
	// StateBound means a connection has been acquired and is cached
	StateBound
	// StateReleased means the transaction is over; the proxy can't be used again
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateReleased:
		return "released"
	}
	return "invalid"
}

// ProxyOption is a configuration option for a Proxy
type ProxyOption func(*Proxy)

// WithProxyLogger creates a ProxyOption for the given logger
func WithProxyLogger(l *log.Logger) ProxyOption {
	return func(p *Proxy) {
		p.logger = l
	}
}

// Proxy is the connection of one transaction, acquired lazily. Nothing is acquired until the first call to Conn, by
// which point the transaction's access mode is fixed; every later call returns the same connection. The connection goes
// back to its pool when the transaction ends.
//
// A Proxy belongs to a single transaction and must not be shared between transactions.
type Proxy struct {
	acquirer Acquirer
	tx       *TxContext
	logger   *log.Logger

	mu    sync.Mutex
	state State
	conn  Conn
}

// NewProxy creates an unbound Proxy for tx, released automatically when tx ends
func NewProxy(a Acquirer, tx *TxContext, opts ...ProxyOption) *Proxy {
	p := &Proxy{acquirer: a, tx: tx}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}
	if tx != nil {
		tx.OnEnd(p.Release)
	}
	return p
}

// State returns the current binding state
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Bound reports whether a connection is currently held. It never contacts a pool.
func (p *Proxy) Bound() bool {
	return p.State() == StateBound
}

// Conn returns the transaction's connection, acquiring it on first use. An acquire failure leaves the proxy unbound.
func (p *Proxy) Conn(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateBound:
		return p.conn, nil
	case StateReleased:
		return nil, ErrProxyClosed
	}

	p.logger.Debug("binding connection", "tx", p.tx.ID(), "read_only", p.tx.IsReadOnly())
	c, err := p.acquirer.Acquire(ContextWithTx(ctx, p.tx))
	if err != nil {
		return nil, err
	}
	p.conn = c
	p.state = StateBound
	return c, nil
}

// Release gives the connection back to its pool, if one was acquired. Releasing twice is a no-op.
func (p *Proxy) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateReleased:
		return
	case StateBound:
		p.logger.Debug("releasing connection", "tx", p.tx.ID())
		p.conn.Release()
		p.conn = nil
	default:
		p.logger.Debug("released without binding", "tx", p.tx.ID())
	}
	p.state = StateReleased
}
