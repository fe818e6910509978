// Package cluster wires a loaded configuration into pgx backend pools and a rwrouter.Router.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nedscode/rwrouter"
	"github.com/nedscode/rwrouter/config"
	"github.com/nedscode/rwrouter/pgxbackend"
)

// Opener opens the pool of one backend. pgxbackend is used unless WithOpener says otherwise.
type Opener func(ctx context.Context, b config.Backend, role rwrouter.Role) (rwrouter.Pool, error)

// Option is a configuration option for Open
type Option func(*options)

type options struct {
	logger     *log.Logger
	registerer prometheus.Registerer
	opener     Opener
	routerOpts []rwrouter.Option
}

// WithLogger creates an Option for the given logger, also handed to the router
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer creates an Option registering router and pool metrics with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithOpener creates an Option replacing the pgxbackend pool opener
func WithOpener(fn Opener) Option {
	return func(o *options) {
		o.opener = fn
	}
}

// WithRouterOptions creates an Option passing extra options to rwrouter.New
func WithRouterOptions(opts ...rwrouter.Option) Option {
	return func(o *options) {
		o.routerOpts = append(o.routerOpts, opts...)
	}
}

// Cluster owns the backend pools and the router over them
type Cluster struct {
	router *rwrouter.Router
	logger *log.Logger
}

// Open opens every configured backend concurrently, failing fast if any can't be reached, and builds a router over
// them. Pools opened before a failure are closed again.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Cluster, error) {
	o := &options{opener: openPgx}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	ctx = log.WithContext(ctx, o.logger)

	backends := make([]rwrouter.Backend, len(cfg.Backends))
	var mu sync.Mutex
	opened := make([]rwrouter.Pool, 0, len(cfg.Backends))

	roles := make([]rwrouter.Role, len(cfg.Backends))
	for i, b := range cfg.Backends {
		role, err := rwrouter.ParseRole(b.Role)
		if err != nil {
			return nil, err
		}
		roles[i] = role
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range cfg.Backends {
		role := roles[i]
		g.Go(func() error {
			p, err := o.opener(gctx, b, role)
			if err != nil {
				return fmt.Errorf("cluster: open %s backend %d: %w", role, b.BackendID(), err)
			}
			mu.Lock()
			opened = append(opened, p)
			mu.Unlock()
			backends[i] = rwrouter.Backend{ID: b.BackendID(), Role: role, Pool: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(opened)
		return nil, err
	}

	reg := rwrouter.NewRegistry()
	for _, b := range backends {
		if err := reg.Register(b); err != nil {
			closeAll(opened)
			return nil, err
		}
	}

	if o.registerer != nil {
		for _, p := range opened {
			c, ok := p.(prometheus.Collector)
			if !ok {
				continue
			}
			if err := o.registerer.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					closeAll(opened)
					return nil, fmt.Errorf("cluster: register pool metrics: %w", err)
				}
			}
		}
	}

	routerOpts := append([]rwrouter.Option{
		rwrouter.WithLogger(o.logger),
		rwrouter.WithRegisterer(o.registerer),
	}, o.routerOpts...)
	r, err := rwrouter.New(reg, routerOpts...)
	if err != nil {
		closeAll(opened)
		return nil, err
	}

	o.logger.Info("Cluster ready", "primary", reg.PrimaryID(), "replicas", reg.ReplicaIDs())
	return &Cluster{router: r, logger: o.logger}, nil
}

func openPgx(ctx context.Context, b config.Backend, role rwrouter.Role) (rwrouter.Pool, error) {
	return pgxbackend.Open(ctx, b.BackendID(), role, pgxbackend.Config{
		DSN:               b.DSN,
		MaxConns:          b.Pool.MaxConnections,
		MinConns:          b.Pool.MinConnections,
		AcquireTimeout:    b.Pool.AcquireTimeout,
		ConnectTimeout:    b.Pool.ConnectTimeout,
		PingTimeout:       b.Pool.PingTimeout,
		MaxConnLifetime:   b.Pool.MaxConnLifetime,
		MaxConnIdleTime:   b.Pool.MaxConnIdleTime,
		HealthCheckPeriod: b.Pool.HealthCheckPeriod,
	})
}

func closeAll(pools []rwrouter.Pool) {
	for _, p := range pools {
		p.Close()
	}
}

// Router returns the router over the cluster's backends
func (c *Cluster) Router() *rwrouter.Router {
	return c.router
}

// Close closes every backend pool
func (c *Cluster) Close() {
	c.router.Close()
	c.logger.Info("Cluster closed")
}

// Status is the health of one backend
type Status struct {
	ID   int
	Role rwrouter.Role
	Err  error
}

// Healthy reports whether the backend answered
func (s Status) Healthy() bool {
	return s.Err == nil
}

// Check acquires a connection from every backend directly, bypassing routing, and pings it
func (c *Cluster) Check(ctx context.Context) []Status {
	backends := c.router.Registry().Backends()
	out := make([]Status, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = Status{ID: b.ID, Role: b.Role, Err: check(ctx, b.Pool)}
		}()
	}
	wg.Wait()
	return out
}

func check(ctx context.Context, p rwrouter.Pool) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}
