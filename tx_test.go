package rwrouter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedscode/rwrouter"
	"github.com/nedscode/rwrouter/routermock"
)

func TestTx_ReadOnly(t *testing.T) {
	tc := newTestCluster(t, 1)
	replica := tc.replicas[0].Mock
	replica.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	replica.ExpectQuery("SELECT title FROM posts").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"title"}).AddRow("first"))
	replica.ExpectQuery("SELECT title FROM posts").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"title"}).AddRow("second"))
	replica.ExpectCommit()

	tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	assert.True(t, tx.ReadOnly())
	assert.False(t, tx.Bound())

	var title string
	require.NoError(t, tx.QueryRow(t.Context(), "SELECT title FROM posts WHERE id = $1", 1).Scan(&title))
	assert.Equal(t, "first", title)
	assert.True(t, tx.Bound())
	require.NoError(t, tx.QueryRow(t.Context(), "SELECT title FROM posts WHERE id = $1", 2).Scan(&title))
	assert.Equal(t, "second", title)
	require.NoError(t, tx.Commit(t.Context()))

	assert.NoError(t, replica.ExpectationsWereMet())
	assert.Equal(t, 1, tc.replicas[0].Acquires())
	assert.Equal(t, 1, tc.replicas[0].Releases())
	assert.Zero(t, tc.primary.Acquires())
}

func TestTx_Write(t *testing.T) {
	t.Run("Should run on the primary and roll back", func(t *testing.T) {
		tc := newTestCluster(t, 2)
		primary := tc.primary.Mock
		primary.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
		primary.ExpectExec("INSERT INTO posts").
			WithArgs("hello").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		primary.ExpectRollback()

		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{})
		require.NoError(t, err)
		tag, err := tx.Exec(t.Context(), "INSERT INTO posts (title) VALUES ($1)", "hello")
		require.NoError(t, err)
		assert.Equal(t, int64(1), tag.RowsAffected())
		require.NoError(t, tx.Rollback(t.Context()))

		assert.NoError(t, primary.ExpectationsWereMet())
		assert.Equal(t, 1, tc.primary.Releases())
		for _, r := range tc.replicas {
			assert.Zero(t, r.Acquires())
		}
	})

	t.Run("Should begin the backend transaction with the requested isolation", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		primary := tc.primary.Mock
		primary.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
		primary.ExpectExec("UPDATE posts").WillReturnResult(pgxmock.NewResult("UPDATE", 3))
		primary.ExpectCommit()

		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{IsoLevel: pgx.Serializable})
		require.NoError(t, err)
		_, err = tx.Exec(t.Context(), "UPDATE posts SET title = upper(title)")
		require.NoError(t, err)
		require.NoError(t, tx.Commit(t.Context()))
		assert.NoError(t, primary.ExpectationsWereMet())
	})
}

func TestTx_Lazy(t *testing.T) {
	t.Run("Should route once however many statements run", func(t *testing.T) {
		tc := newTestCluster(t, 2, rwrouter.WithRand(&sequence{draws: []int{0}}))
		replica := tc.replicas[0].Mock
		replica.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
		for range 5 {
			replica.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
		}
		replica.ExpectCommit()

		counting := &routermock.Acquirer{Next: tc.router}
		tx := rwrouter.NewTx(counting, rwrouter.TxOptions{ReadOnly: true}, nil)
		for range 5 {
			_, err := tx.Exec(t.Context(), "SELECT 1")
			require.NoError(t, err)
		}
		require.NoError(t, tx.Commit(t.Context()))

		assert.Equal(t, 1, counting.Calls())
		assert.NoError(t, replica.ExpectationsWereMet())
	})

	t.Run("Should not contact any pool when no statement runs", func(t *testing.T) {
		tc := newTestCluster(t, 2)
		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{ReadOnly: true})
		require.NoError(t, err)
		require.NoError(t, tx.Commit(t.Context()))

		for _, p := range tc.allPools() {
			assert.Zero(t, p.Acquires())
			assert.Zero(t, p.Releases())
		}
	})

	t.Run("Should refuse statements and a second finish after commit", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{})
		require.NoError(t, err)
		require.NoError(t, tx.Commit(t.Context()))

		_, err = tx.Exec(t.Context(), "SELECT 1")
		assert.ErrorIs(t, err, pgx.ErrTxClosed)
		assert.ErrorIs(t, tx.Commit(t.Context()), pgx.ErrTxClosed)
		assert.ErrorIs(t, tx.Rollback(t.Context()), pgx.ErrTxClosed)
		assert.Zero(t, tc.primary.Acquires())
	})

	t.Run("Should not begin when the context is done", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := tc.router.Begin(ctx, rwrouter.TxOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should carry the transaction into a context", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{ReadOnly: true})
		require.NoError(t, err)
		txc := rwrouter.TxFromContext(tx.Context(t.Context()))
		assert.True(t, txc.IsActive())
		assert.True(t, txc.IsReadOnly())

		require.NoError(t, tx.Rollback(t.Context()))
		assert.False(t, txc.IsActive())
	})
}

func TestTx_Errors(t *testing.T) {
	t.Run("Should report a routing failure from Scan", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		tc.primary.Err = errors.New("connection refused")
		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{})
		require.NoError(t, err)

		var n int
		err = tx.QueryRow(t.Context(), "SELECT 1").Scan(&n)
		assert.ErrorAs(t, err, &rwrouter.BackendUnavailableError{})
		_, err = tx.Query(t.Context(), "SELECT 1")
		assert.ErrorAs(t, err, &rwrouter.BackendUnavailableError{})
		require.NoError(t, tx.Rollback(t.Context()))
	})

	t.Run("Should release the connection when the backend transaction can't begin", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		refused := errors.New("read-only mode")
		tc.primary.Mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite}).WillReturnError(refused)

		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{})
		require.NoError(t, err)
		_, err = tx.Exec(t.Context(), "DELETE FROM posts")
		assert.ErrorIs(t, err, refused)
		require.NoError(t, tx.Rollback(t.Context()))

		assert.Equal(t, 1, tc.primary.Acquires())
		assert.Equal(t, 1, tc.primary.Releases())
		assert.NoError(t, tc.primary.Mock.ExpectationsWereMet())
	})

	t.Run("Should return the commit error and still release", func(t *testing.T) {
		tc := newTestCluster(t, 0)
		conflict := errors.New("serialization failure")
		tc.primary.Mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
		tc.primary.Mock.ExpectExec("UPDATE posts").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		tc.primary.Mock.ExpectCommit().WillReturnError(conflict)

		tx, err := tc.router.Begin(t.Context(), rwrouter.TxOptions{})
		require.NoError(t, err)
		_, err = tx.Exec(t.Context(), "UPDATE posts SET title = 'x'")
		require.NoError(t, err)

		assert.ErrorIs(t, tx.Commit(t.Context()), conflict)
		assert.Equal(t, 1, tc.primary.Releases())
	})
}
