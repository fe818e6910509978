/*
Package rwrouter routes database connections between a single "primary" backend and a series of read-only "replica" backends,
choosing the backend from the access mode of the enclosing transaction.

# Goal

To provide reader-writer distribution without the persistence layer knowing that more than one backend exists.

# Basics

rwrouter doesn't execute queries itself. Each backend is an ordinary pooled connection source (a pgxpool in production),
registered once at startup:

	reg := rwrouter.NewRegistry()
	reg.Register(rwrouter.Backend{ID: 0, Role: rwrouter.RolePrimary, Pool: source})
	reg.Register(rwrouter.Backend{ID: 1, Role: rwrouter.RoleReplica, Pool: replica1})
	reg.Register(rwrouter.Backend{ID: 2, Role: rwrouter.RoleReplica, Pool: replica2})
	r, err := rwrouter.New(reg) // seals the registry

# Routing

The router selects a backend as follows:

	if inTransaction {
		if TxOptions{ReadOnly: true} {
			uniformly random replica (primary if there are none)
		} else {
			primary
		}
	} else {
		primary
	}

The transaction is carried explicitly in the context.Context handed to Router.Acquire (see ContextWithTx), there is no
goroutine-local state.

# Lazy Acquisition

A transaction's access mode is only known once it has begun, so acquiring a connection when the transaction starts would
route blind. Router.Begin therefore does no I/O: the returned Tx holds a Proxy in the unbound state, and the first statement
binds it through the router. Every later statement reuses that connection, and it is released back to its pool exactly once
when the transaction commits or rolls back. A transaction that never runs a statement never touches a pool.

# Errors

The router never retries and never substitutes a backend: a replica that cannot hand out a connection surfaces as a
BackendUnavailableError naming it. Retrying is left to the caller (see RunInTxWithRetry).
*/
package rwrouter
