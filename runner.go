package rwrouter

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"
)

// RunInTx runs fn inside a transaction begun with opts, committing when fn returns nil and rolling back otherwise
// (including when fn panics).
func RunInTx(ctx context.Context, r *Router, opts TxOptions, fn func(context.Context, *Tx) error) (err error) {
	tx, err := r.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil && !tx.done {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Warn("rollback failed", "tx", tx.txc.ID(), "err", rbErr)
			}
		}
	}()

	if err = fn(tx.Context(ctx), tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("rwrouter: commit: %w", err)
	}
	return nil
}

// RunInTxWithRetry is RunInTx, re-run with backoff b for as long as it fails because a pool was exhausted. Any other
// error, including a backend being unavailable for another reason, ends the retries.
func RunInTxWithRetry(ctx context.Context, r *Router, opts TxOptions, b retry.Backoff, fn func(context.Context, *Tx) error) error {
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := RunInTx(ctx, r, opts, fn)
		if IsPoolExhausted(err) {
			r.logger.Debug("pool exhausted; retrying transaction", "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
