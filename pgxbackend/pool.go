// Package pgxbackend provides rwrouter backend pools on top of pgxpool.
package pgxbackend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nedscode/rwrouter"
)

var _ rwrouter.Conn = (*pgxpool.Conn)(nil)

// Pool is a rwrouter.Pool backed by a pgxpool.Pool. Acquire waits are bounded by the configured acquire timeout.
//
// Pool is also a prometheus.Collector reporting the pgxpool statistics of the backend.
type Pool struct {
	id             int
	role           rwrouter.Role
	pool           *pgxpool.Pool
	acquireTimeout time.Duration

	totalDesc    *prometheus.Desc
	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	maxDesc      *prometheus.Desc
	waitDesc     *prometheus.Desc
}

// Open creates the pool of backend id and pings it, failing fast if the backend can't be reached
func Open(ctx context.Context, id int, role rwrouter.Role, cfg Config) (*Pool, error) {
	poolCfg, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxbackend: new pool for backend %d: %w", id, err)
	}
	if err := ping(ctx, pool, cfg.pingTimeout()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxbackend: backend %d: %w", id, err)
	}

	log.FromContext(ctx).With(
		"backend", id,
		"role", role,
		"host", poolCfg.ConnConfig.Host,
		"port", poolCfg.ConnConfig.Port,
		"db_name", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	).Info("Backend pool initialized")

	return newPool(id, role, pool, cfg.acquireTimeout()), nil
}

func newPool(id int, role rwrouter.Role, pool *pgxpool.Pool, acquireTimeout time.Duration) *Pool {
	labels := prometheus.Labels{"backend": strconv.Itoa(id), "role": role.String()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("rwrouter", "pool", name), help, nil, labels)
	}
	return &Pool{
		id:             id,
		role:           role,
		pool:           pool,
		acquireTimeout: acquireTimeout,
		totalDesc:      desc("connections_total", "Number of open connections."),
		acquiredDesc:   desc("connections_acquired", "Number of connections currently checked out."),
		idleDesc:       desc("connections_idle", "Number of idle connections."),
		maxDesc:        desc("connections_max", "Configured maximum pool size."),
		waitDesc:       desc("empty_acquire_wait_seconds_total", "Cumulative time spent waiting for a free connection."),
	}
}

func ping(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ID returns the backend id the pool was opened for
func (p *Pool) ID() int { return p.id }

// Role returns the role the pool was opened for
func (p *Pool) Role() rwrouter.Role { return p.role }

// Acquire checks a connection out of the pool, waiting at most the acquire timeout for one to become free
func (p *Pool) Acquire(ctx context.Context) (rwrouter.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	c, err := p.pool.Acquire(actx)
	if err != nil {
		stat := p.pool.Stat()
		return nil, classifyAcquireError(ctx, p.acquireTimeout, stat.AcquiredConns() >= stat.MaxConns(), err)
	}
	return c, nil
}

// classifyAcquireError turns an expired acquire wait on a full pool into a PoolExhaustedError. Expiry of the caller's
// own context is returned unchanged.
func classifyAcquireError(ctx context.Context, timeout time.Duration, full bool, err error) error {
	if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if full {
		return rwrouter.PoolExhaustedError{Timeout: timeout, Err: err}
	}
	return fmt.Errorf("pgxbackend: connect did not finish within %s: %w", timeout, err)
}

// Close closes every connection in the pool
func (p *Pool) Close() {
	p.pool.Close()
}

// Describe implements prometheus.Collector
func (p *Pool) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.totalDesc
	ch <- p.acquiredDesc
	ch <- p.idleDesc
	ch <- p.maxDesc
	ch <- p.waitDesc
}

// Collect implements prometheus.Collector
func (p *Pool) Collect(ch chan<- prometheus.Metric) {
	stat := p.pool.Stat()
	ch <- prometheus.MustNewConstMetric(p.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(p.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(p.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(p.maxDesc, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(p.waitDesc, prometheus.CounterValue, stat.EmptyAcquireWaitTime().Seconds())
}
