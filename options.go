package rwrouter

import (
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type routerConfig struct {
	rand           Rand
	logger         *log.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// Option is a configuration option for a Router instance
type Option func(*routerConfig)

// WithRand creates an Option drawing replica choices from r instead of the runtime generator.
// r must be safe for concurrent use if the Router is.
func WithRand(r Rand) Option {
	return func(c *routerConfig) {
		c.rand = r
	}
}

// WithLogger creates an Option for the given logger
//
// Routing decisions are logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(c *routerConfig) {
		c.logger = l
	}
}

// WithRegisterer creates an Option registering the router's metrics with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *routerConfig) {
		c.registerer = reg
	}
}

// WithTracerProvider creates an Option for the given TracerProvider; the global provider is used otherwise
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *routerConfig) {
		c.tracerProvider = tp
	}
}
