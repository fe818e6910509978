package rwrouter_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedscode/rwrouter"
	"github.com/nedscode/rwrouter/routermock"
)

func TestProxy(t *testing.T) {
	t.Run("Should acquire once and reuse the connection", func(t *testing.T) {
		tc := newTestCluster(t, 2)
		counting := &routermock.Acquirer{Next: tc.router}
		tx := rwrouter.NewTxContext(true)
		p := rwrouter.NewProxy(counting, tx)
		assert.Equal(t, rwrouter.StateUnbound, p.State())

		first, err := p.Conn(t.Context())
		require.NoError(t, err)
		for range 10 {
			c, err := p.Conn(t.Context())
			require.NoError(t, err)
			assert.Same(t, first, c)
		}
		assert.Equal(t, 1, counting.Calls())
		assert.Equal(t, rwrouter.StateBound, p.State())
		assert.True(t, p.Bound())
		assert.Contains(t, []int{1, 2}, backendOf(t, first))
	})

	t.Run("Should never touch a pool when no statement ran", func(t *testing.T) {
		tc := newTestCluster(t, 2)
		counting := &routermock.Acquirer{Next: tc.router}
		tx := rwrouter.NewTxContext(true)
		p := rwrouter.NewProxy(counting, tx)
		assert.False(t, p.Bound())

		tx.End()
		assert.Equal(t, rwrouter.StateReleased, p.State())
		assert.Equal(t, 0, counting.Calls())
		for _, pool := range tc.allPools() {
			assert.Zero(t, pool.Acquires())
			assert.Zero(t, pool.Releases())
		}
	})

	t.Run("Should release exactly once", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		tx := rwrouter.NewTxContext(false)
		p := rwrouter.NewProxy(tc.router, tx)
		_, err := p.Conn(t.Context())
		require.NoError(t, err)

		tx.End()
		p.Release()
		p.Release()
		assert.Equal(t, 1, tc.primary.Acquires())
		assert.Equal(t, 1, tc.primary.Releases())
	})

	t.Run("Should refuse to acquire after release", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		p := rwrouter.NewProxy(tc.router, rwrouter.NewTxContext(false))
		p.Release()

		_, err := p.Conn(t.Context())
		assert.ErrorIs(t, err, rwrouter.ErrProxyClosed)
		assert.Zero(t, tc.primary.Acquires())
	})

	t.Run("Should stay unbound when the acquire fails", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		tc.primary.Err = errors.New("connection refused")
		tx := rwrouter.NewTxContext(false)
		p := rwrouter.NewProxy(tc.router, tx)

		_, err := p.Conn(t.Context())
		assert.ErrorAs(t, err, &rwrouter.BackendUnavailableError{})
		assert.Equal(t, rwrouter.StateUnbound, p.State())

		tc.primary.Err = nil
		_, err = p.Conn(t.Context())
		require.NoError(t, err)
		tx.End()
		assert.Equal(t, 1, tc.primary.Releases())
	})

	t.Run("Should route by the transaction it belongs to", func(t *testing.T) {
		tc := newTestCluster(t, 2)
		write := rwrouter.NewProxy(tc.router, rwrouter.NewTxContext(false))
		c, err := write.Conn(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 0, backendOf(t, c))
		write.Release()
	})

	t.Run("Should be released when created for an ended transaction", func(t *testing.T) {
		tx := rwrouter.NewTxContext(false)
		tx.End()
		p := rwrouter.NewProxy(&routermock.Acquirer{}, tx)
		assert.Equal(t, rwrouter.StateReleased, p.State())
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unbound", rwrouter.StateUnbound.String())
	assert.Equal(t, "bound", rwrouter.StateBound.String())
	assert.Equal(t, "released", rwrouter.StateReleased.String())
	assert.Equal(t, "invalid", rwrouter.State(9).String())
}
