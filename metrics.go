package rwrouter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	decisions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rwrouter",
			Name:      "routing_decisions_total",
			Help:      "Connection requests routed to each backend.",
		}, []string{"backend", "role"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rwrouter",
			Name:      "acquire_errors_total",
			Help:      "Connection requests the chosen backend could not serve.",
		}, []string{"backend", "role", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rwrouter",
			Name:      "acquire_duration_seconds",
			Help:      "Time spent acquiring a connection from the chosen backend.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"backend", "role"}),
	}

	var err error
	if m.decisions, err = register(reg, m.decisions); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector that is already registered
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) decided(b Backend) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(strconv.Itoa(b.ID), b.Role.String()).Inc()
}

func (m *metrics) acquired(b Backend, d time.Duration, err error) {
	if m == nil {
		return
	}
	id := strconv.Itoa(b.ID)
	m.duration.WithLabelValues(id, b.Role.String()).Observe(d.Seconds())
	if err != nil {
		m.errors.WithLabelValues(id, b.Role.String(), errorReason(err)).Inc()
	}
}

func errorReason(err error) string {
	switch {
	case IsPoolExhausted(err):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
