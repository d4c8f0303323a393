package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBusy is returned when a row lock could not be acquired within the
// configured lock timeout. Callers may retry with backoff.
var ErrBusy = errors.New("platform/db: row busy, retry later")

// SQLSTATE codes checked when translating driver errors.
const (
	codeLockNotAvailable = "55P03"
	codeQueryCanceled    = "57014"
	codeUniqueViolation  = "23505"
)

// WithTx executes fn inside a RepeatableRead transaction. When lockTimeout
// is positive it is applied with SET LOCAL so every row lock taken by fn is
// bounded; expiry surfaces as ErrBusy instead of blocking indefinitely.
func WithTx(ctx context.Context, pool *pgxpool.Pool, lockTimeout time.Duration, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("platform/db: set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return TranslateError(err)
	}

	// Lock waits can also expire at commit; keep the busy mapping there.
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", TranslateError(err))
	}

	return nil
}

// TranslateError maps lock-wait expiry to ErrBusy and leaves everything
// else untouched.
func TranslateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeQueryCanceled:
			return fmt.Errorf("%w: %s", ErrBusy, pgErr.Message)
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
