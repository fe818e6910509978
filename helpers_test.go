package rwrouter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nedscode/rwrouter"
	"github.com/nedscode/rwrouter/routermock"
)

// testCluster is a primary (id 0) and replicas (ids 1..n) backed by routermock pools
type testCluster struct {
	router   *rwrouter.Router
	primary  *routermock.Pool
	replicas []*routermock.Pool
}

func newTestCluster(t *testing.T, replicas int, opts ...rwrouter.Option) *testCluster {
	t.Helper()

	tc := &testCluster{primary: newTestPool(t, 0)}
	reg := rwrouter.NewRegistry()
	require.NoError(t, reg.Register(rwrouter.Backend{ID: 0, Role: rwrouter.RolePrimary, Pool: tc.primary}))
	for i := 1; i <= replicas; i++ {
		p := newTestPool(t, i)
		tc.replicas = append(tc.replicas, p)
		require.NoError(t, reg.Register(rwrouter.Backend{ID: i, Role: rwrouter.RoleReplica, Pool: p}))
	}

	r, err := rwrouter.New(reg, opts...)
	require.NoError(t, err)
	tc.router = r
	return tc
}

func newTestPool(t *testing.T, id int) *routermock.Pool {
	t.Helper()
	p, err := routermock.NewPool(id)
	require.NoError(t, err)
	p.Logf = t.Logf
	return p
}

// backendOf returns the id of the pool a routermock conn came from
func backendOf(t *testing.T, c rwrouter.Conn) int {
	t.Helper()
	mc, ok := c.(*routermock.Conn)
	require.True(t, ok, "expected a routermock conn, got %T", c)
	return mc.Backend()
}

func (tc *testCluster) allPools() []*routermock.Pool {
	return append([]*routermock.Pool{tc.primary}, tc.replicas...)
}
