package rwrouter

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nedscode/rwrouter"

// Router is a single connection source in front of a primary and its replicas. Each Acquire is routed by the
// transaction found in its context.
type Router struct {
	registry *Registry
	policy   Policy
	logger   *log.Logger
	metrics  *metrics
	tracer   trace.Tracer
}

// New seals reg and builds a Router over it. Configuration problems in reg are reported here, before any traffic.
func New(reg *Registry, opts ...Option) (*Router, error) {
	if reg == nil {
		return nil, configErrorf("no registry")
	}
	if err := reg.Seal(); err != nil {
		return nil, err
	}

	c := &routerConfig{}
	for _, o := range opts {
		o(c)
	}

	// defaults
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}

	m, err := newMetrics(c.registerer)
	if err != nil {
		return nil, err
	}

	return &Router{
		registry: reg,
		policy:   NewPolicy(c.rand),
		logger:   c.logger.WithPrefix("rwrouter"),
		metrics:  m,
		tracer:   c.tracerProvider.Tracer(instrumentationName),
	}, nil
}

// Registry returns the backends the router routes between
func (r *Router) Registry() *Registry {
	return r.registry
}

// Close closes every backend pool
func (r *Router) Close() {
	r.registry.Close()
}

// Acquire returns a connection from the backend chosen for the transaction carried by ctx. Without an active
// transaction the request goes to the primary.
//
// A failure of the chosen backend's pool is returned as a BackendUnavailableError; no other backend is tried.
func (r *Router) Acquire(ctx context.Context) (Conn, error) {
	tx := TxFromContext(ctx)
	id := r.route(tx)

	b, err := r.registry.Resolve(id)
	if err != nil {
		r.logger.Error("routing chose an unregistered backend", "backend", id)
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "rwrouter.Acquire", trace.WithAttributes(
		attribute.Int("rwrouter.backend.id", b.ID),
		attribute.String("rwrouter.backend.role", b.Role.String()),
		attribute.Bool("rwrouter.tx.active", tx.IsActive()),
		attribute.Bool("rwrouter.tx.read_only", tx.IsReadOnly()),
	))
	defer span.End()

	r.metrics.decided(b)
	start := time.Now()
	c, err := b.Pool.Acquire(ctx)
	r.metrics.acquired(b, time.Since(start), err)
	if err != nil {
		r.logger.Debug("acquire failed", "backend", b.ID, "role", b.Role, "err", err)
		err = BackendUnavailableError{ID: b.ID, Role: b.Role, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire failed")
		return nil, err
	}
	return c, nil
}

func (r *Router) route(tx *TxContext) int {
	v := r.registry.snapshot()
	if !tx.IsActive() {
		r.logger.Debug("no active transaction; routing to default", "backend", v.primary.ID)
		return v.primary.ID
	}
	id := r.policy.Decide(tx.IsReadOnly(), v.replicas, v.primary.ID)
	r.logger.Debug("routed transaction", "tx", tx.ID(), "read_only", tx.IsReadOnly(), "backend", id)
	return id
}
