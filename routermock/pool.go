// Package routermock provides counting implementations of rwrouter.Pool and rwrouter.Acquirer for tests
package routermock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/nedscode/rwrouter"
)

// Pool is a mock rwrouter.Pool that records every Acquire, Release and Close
type Pool struct {
	// ID is reported by the conns this pool hands out
	ID int
	// Logf, when set, is called for every pool event
	Logf func(string, ...any)
	// Err, when set, is returned by every Acquire
	Err error
	// Mock, when set, serves the statements of every conn this pool hands out
	Mock pgxmock.PgxConnIface

	mu       sync.Mutex
	acquires int
	releases int
	closes   int
}

// NewPool creates a Pool with the given id, backed by a fresh pgxmock connection
func NewPool(id int) (*Pool, error) {
	m, err := pgxmock.NewConn()
	if err != nil {
		return nil, err
	}
	return &Pool{ID: id, Mock: m}, nil
}

// Acquire hands out a new Conn, or fails with Err
func (p *Pool) Acquire(ctx context.Context) (rwrouter.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closes > 0 {
		return nil, fmt.Errorf("routermock: pool %d is closed", p.ID)
	}
	if p.Err != nil {
		p.logf("acquire from pool %d failed: %s", p.ID, p.Err)
		return nil, p.Err
	}
	p.acquires++
	p.logf("acquired conn %d.%d", p.ID, p.acquires)
	return &Conn{PgxConnIface: p.Mock, pool: p, seq: p.acquires}, nil
}

// Close records that the pool was closed
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.logf("closing pool %d", p.ID)
}

// Acquires returns the number of successful Acquire calls
func (p *Pool) Acquires() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

// Releases returns the number of Release calls made on this pool's conns
func (p *Pool) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

// Closes returns the number of Close calls
func (p *Pool) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Pool) release(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	p.logf("released conn %d.%d", p.ID, c.seq)
}

func (p *Pool) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// Conn is a mock rwrouter.Conn. Statements go to the pool's pgxmock connection.
type Conn struct {
	pgxmock.PgxConnIface

	pool *Pool
	seq  int
}

// Backend returns the id of the pool the conn came from
func (c *Conn) Backend() int {
	return c.pool.ID
}

// Release records the release with the pool. Every call is counted, so double releases are visible.
func (c *Conn) Release() {
	c.pool.release(c)
}

// Acquirer counts Acquire calls before passing them on to Next
type Acquirer struct {
	Next rwrouter.Acquirer

	calls atomic.Int64
}

// Acquire counts the call and delegates to Next
func (a *Acquirer) Acquire(ctx context.Context) (rwrouter.Conn, error) {
	a.calls.Add(1)
	return a.Next.Acquire(ctx)
}

// Calls returns the number of Acquire calls so far
func (a *Acquirer) Calls() int {
	return int(a.calls.Load())
}
