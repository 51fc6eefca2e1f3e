package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const maxTxAttempts = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Session is the caller identity the auth layer hands to every workflow call.
// ShiftID is uuid.Nil when the session is not bound to a shift.
type Session struct {
	StaffID uuid.UUID
	ShiftID uuid.UUID
	Role    string
}

// runInTx runs fn inside a single transaction and commits on success.
// Any error from fn rolls the whole transaction back. Serialization failures,
// deadlocks and races on the one-running-order / one-open-shift indexes are
// retried with a short exponential backoff, up to maxTxAttempts in total.
func runInTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	op := func() error {
		err := execTx(ctx, pool, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxTxAttempts-1), ctx))
}

func execTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
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

// isRetryable reports whether err is a transient conflict between concurrent
// transactions (pgconn codes 40001, 40P01, or 23505 on a workflow index).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == "orders_one_running_per_table" ||
			pgErr.ConstraintName == "shifts_one_open_per_staff"
	}
	return false
}
