package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrTransactionFailed is returned once a retried store operation has run
	// out of attempts.
	ErrTransactionFailed = errors.New("store transaction failed")

	// ErrTransient marks errors that are safe to retry. In-memory stores and
	// lock implementations wrap it so Retry treats them like pg serialization
	// failures.
	ErrTransient = errors.New("transient store error")
)

// Querier is satisfied by pools and transactions alike.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the subset of pgxpool.Pool used by repositories. pgxmock pools
// satisfy it too.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
func WithTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}

	return pgconn.SafeToRetry(err)
}

// Retry calls fn up to attempts times while it fails with a transient error.
// Non-transient errors are returned unchanged. Exhaustion is reported as
// ErrTransactionFailed wrapping the last error.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(i)):
			}
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !IsTransient(last) {
			return last
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrTransactionFailed, attempts, last)
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 10 * time.Millisecond
}

// LockKey serializes writers sharing the same key for the rest of tx.
func LockKey(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}
