package rwrouter

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is a physical connection checked out of a backend Pool.
// *pgxpool.Conn satisfies it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error

	// Release returns the connection to the pool it came from.
	Release()
}

// Pool is the pooled connection source of a single backend.
// Implementations must support concurrent Acquire calls.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Acquirer hands out connections. *Router is the production implementation.
type Acquirer interface {
	Acquire(ctx context.Context) (Conn, error)
}

// Role is the part a backend plays in the cluster
type Role int

const (
	// RolePrimary is the single backend accepting writes
	RolePrimary Role = iota + 1
	// RoleReplica is a read-only backend
	RoleReplica
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleReplica:
		return "replica"
	}
	return "unknown"
}

// ParseRole parses "primary" or "replica", ignoring case
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary":
		return RolePrimary, nil
	case "replica":
		return RoleReplica, nil
	}
	return 0, configErrorf("unknown backend role %q", s)
}

// Backend describes one registered backend
type Backend struct {
	ID   int
	Role Role
	Pool Pool
}
