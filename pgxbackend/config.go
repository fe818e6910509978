package pgxbackend

import (
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns          = 20
	defaultMinConns          = 0
	defaultAcquireTimeout    = 5 * time.Second
	defaultConnectTimeout    = 5 * time.Second
	defaultPingTimeout       = 3 * time.Second
	defaultHealthCheckPeriod = 30 * time.Second
)

// Config holds the pool settings of one backend. Zero values take the package defaults.
type Config struct {
	DSN               string
	MaxConns          int
	MinConns          int
	AcquireTimeout    time.Duration
	ConnectTimeout    time.Duration
	PingTimeout       time.Duration
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func (c Config) acquireTimeout() time.Duration {
	if c.AcquireTimeout > 0 {
		return c.AcquireTimeout
	}
	return defaultAcquireTimeout
}

func (c Config) pingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return defaultPingTimeout
}

// buildPoolConfig parses the DSN and applies pool settings
func buildPoolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxbackend: parse config: %w", err)
	}
	poolCfg.MaxConns, poolCfg.MinConns = connectionBounds(cfg)
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return poolCfg, nil
}

// connectionBounds computes max/min connections respecting defaults and int32 limits; min never exceeds max.
func connectionBounds(cfg Config) (int32, int32) {
	maxConns := int32(defaultMaxConns)
	if cfg.MaxConns > 0 {
		maxConns = clampInt32(cfg.MaxConns)
	}
	minConns := int32(defaultMinConns)
	if cfg.MinConns > 0 {
		minConns = min(clampInt32(cfg.MinConns), maxConns)
	}
	return maxConns, minConns
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
