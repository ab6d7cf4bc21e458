package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/metrics"
	"marketplace-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLSTATEs that mean "another transaction got there first; try again".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// RetryPolicy bounds conflict retries for balance-mutating transactions.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// txRunner runs a unit of work in one database transaction, retrying the
// whole unit when Postgres reports a lock or serialization conflict.
type txRunner struct {
	transactor ports.DBTransactor
	policy     RetryPolicy
	metrics    *metrics.Recorder
	log        zerolog.Logger
}

func newTxRunner(transactor ports.DBTransactor, policy RetryPolicy, rec *metrics.Recorder, log zerolog.Logger) *txRunner {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &txRunner{transactor: transactor, policy: policy, metrics: rec, log: log}
}

// run executes fn and commits. AppErrors returned by fn pass through unchanged;
// any other failure becomes an internal error.
func (r *txRunner) run(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err := r.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
		}

		lastErr = err
		r.metrics.ConflictRetry(op)
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transaction conflict, retrying")

		if attempt < r.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return apperror.InternalError(ctx.Err())
			case <-time.After(r.policy.Backoff * time.Duration(attempt)):
			}
		}
	}
	return apperror.ErrConflictExhausted(lastErr)
}

// read runs a non-locking query, retrying conflicts and failures pgconn reports
// as safe to resend. The last error is returned unchanged for the caller to wrap.
func read[T any](ctx context.Context, r *txRunner, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		out, err = fn(ctx)
		if err == nil || !(isRetryable(err) || pgconn.SafeToRetry(err)) {
			return out, err
		}
		r.metrics.ConflictRetry(op)
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("read failed, retrying")

		if attempt < r.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(r.policy.Backoff * time.Duration(attempt)):
			}
		}
	}
	return out, err
}

func (r *txRunner) attempt(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}
