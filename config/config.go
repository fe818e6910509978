// Package config loads the backend topology and pool settings of a rwrouter cluster.
//
// Sources are applied in order of increasing precedence: built-in defaults, a YAML file, then RWROUTER_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nedscode/rwrouter"
)

// Config is the complete cluster configuration
type Config struct {
	Log      Log       `koanf:"log"`
	Pool     Pool      `koanf:"pool"`
	Backends []Backend `koanf:"backends" validate:"dive"`
	// DSN is a compound "primary;replica1;replica2" shorthand, used when Backends is empty
	DSN string `koanf:"dsn"`
}

// Log configures the logger built by the command line tool
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Pool holds connection pool settings. Zero values are unset.
type Pool struct {
	MaxConnections    int           `koanf:"max_connections" validate:"gte=0"`
	MinConnections    int           `koanf:"min_connections" validate:"gte=0"`
	AcquireTimeout    time.Duration `koanf:"acquire_timeout" validate:"gte=0"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout" validate:"gte=0"`
	PingTimeout       time.Duration `koanf:"ping_timeout" validate:"gte=0"`
	MaxConnLifetime   time.Duration `koanf:"max_conn_lifetime" validate:"gte=0"`
	MaxConnIdleTime   time.Duration `koanf:"max_conn_idle_time" validate:"gte=0"`
	HealthCheckPeriod time.Duration `koanf:"health_check_period" validate:"gte=0"`
}

// Backend is one primary or replica
type Backend struct {
	// ID defaults to the lowest id not set explicitly on another backend, so a list without ids is numbered by position
	ID   *int   `koanf:"id" validate:"omitempty,gte=0"`
	Role string `koanf:"role" validate:"required,oneof=primary replica"`
	DSN  string `koanf:"dsn" validate:"required"`
	Pool Pool   `koanf:"pool"`
}

// BackendID returns the resolved id of the backend
func (b Backend) BackendID() int {
	if b.ID == nil {
		return 0
	}
	return *b.ID
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Log: Log{Level: "info"},
		Pool: Pool{
			MaxConnections:    20,
			AcquireTimeout:    5 * time.Second,
			ConnectTimeout:    5 * time.Second,
			PingTimeout:       3 * time.Second,
			HealthCheckPeriod: 30 * time.Second,
		},
	}
}

// normalize expands the compound DSN, lowercases roles, assigns missing ids and applies the pool defaults.
// Missing ids are filled in list order from the lowest ids no backend claims explicitly.
func (c *Config) normalize() error {
	if len(c.Backends) == 0 && c.DSN != "" {
		primary, replicas, err := rwrouter.ParseCompoundDSN(c.DSN)
		if err != nil {
			return err
		}
		c.Backends = append(c.Backends, Backend{Role: "primary", DSN: primary})
		for _, dsn := range replicas {
			c.Backends = append(c.Backends, Backend{Role: "replica", DSN: dsn})
		}
	}
	if len(c.Backends) == 0 {
		return rwrouter.ConfigurationError{Reason: "no backends configured"}
	}

	taken := map[int]bool{}
	for _, b := range c.Backends {
		if b.ID != nil {
			taken[*b.ID] = true
		}
	}
	next := 0
	for i := range c.Backends {
		b := &c.Backends[i]
		b.Role = strings.ToLower(strings.TrimSpace(b.Role))
		if b.ID == nil {
			for taken[next] {
				next++
			}
			id := next
			taken[id] = true
			b.ID = &id
		}
		b.Pool = b.Pool.withDefaults(c.Pool)
	}
	return nil
}

// check enforces the constraints the validator tags can't express
func (c *Config) check() error {
	primaries := 0
	seen := map[int]bool{}
	for _, b := range c.Backends {
		if b.Role == "primary" {
			primaries++
		}
		if seen[b.BackendID()] {
			return rwrouter.ConfigurationError{Reason: fmt.Sprintf("duplicate backend id %d", b.BackendID())}
		}
		seen[b.BackendID()] = true
		if b.Pool.MinConnections > b.Pool.MaxConnections && b.Pool.MaxConnections > 0 {
			return rwrouter.ConfigurationError{Reason: fmt.Sprintf("backend %d: min_connections exceeds max_connections", b.BackendID())}
		}
	}
	if primaries != 1 {
		return rwrouter.ConfigurationError{Reason: fmt.Sprintf("exactly one primary backend required, found %d", primaries)}
	}
	return nil
}

func (p Pool) withDefaults(d Pool) Pool {
	if p.MaxConnections == 0 {
		p.MaxConnections = d.MaxConnections
	}
	if p.MinConnections == 0 {
		p.MinConnections = d.MinConnections
	}
	if p.AcquireTimeout == 0 {
		p.AcquireTimeout = d.AcquireTimeout
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = d.ConnectTimeout
	}
	if p.PingTimeout == 0 {
		p.PingTimeout = d.PingTimeout
	}
	if p.MaxConnLifetime == 0 {
		p.MaxConnLifetime = d.MaxConnLifetime
	}
	if p.MaxConnIdleTime == 0 {
		p.MaxConnIdleTime = d.MaxConnIdleTime
	}
	if p.HealthCheckPeriod == 0 {
		p.HealthCheckPeriod = d.HealthCheckPeriod
	}
	return p
}
