package rwrouter_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nedscode/rwrouter"
)

func TestTxContext(t *testing.T) {
	t.Run("Should describe no transaction when nil", func(t *testing.T) {
		var tx *rwrouter.TxContext
		assert.False(t, tx.IsActive())
		assert.False(t, tx.IsReadOnly())
		assert.Equal(t, uuid.Nil, tx.ID())
	})

	t.Run("Should be active until ended", func(t *testing.T) {
		tx := rwrouter.NewTxContext(true)
		assert.True(t, tx.IsActive())
		assert.True(t, tx.IsReadOnly())
		assert.NotEqual(t, uuid.Nil, tx.ID())

		tx.End()
		assert.False(t, tx.IsActive())
		assert.True(t, tx.IsReadOnly())
	})

	t.Run("Should run end hooks once in reverse order", func(t *testing.T) {
		tx := rwrouter.NewTxContext(false)
		var calls []int
		tx.OnEnd(func() { calls = append(calls, 1) })
		tx.OnEnd(func() { calls = append(calls, 2) })

		tx.End()
		tx.End()
		assert.Equal(t, []int{2, 1}, calls)
	})

	t.Run("Should run a hook registered after the end immediately", func(t *testing.T) {
		tx := rwrouter.NewTxContext(false)
		tx.End()
		ran := false
		tx.OnEnd(func() { ran = true })
		assert.True(t, ran)
	})

	t.Run("Should travel in a context", func(t *testing.T) {
		tx := rwrouter.NewTxContext(true)
		ctx := rwrouter.ContextWithTx(context.Background(), tx)
		assert.Same(t, tx, rwrouter.TxFromContext(ctx))
		assert.Nil(t, rwrouter.TxFromContext(context.Background()))
	})
}
