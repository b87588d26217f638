// CLAUDE:SUMMARY Busy-retry wrappers for SQLite transactions and statements.
package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// busyBackoff spaces the retries after an SQLITE_BUSY. Short and linear:
// the contention here is the audit flush racing a Query or Cleanup on the
// same file, which clears in well under a second.
var busyBackoff = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
}

// ErrBusyRetries is returned when every backoff attempt hit a busy database.
var ErrBusyRetries = errors.New("dbopen: retries exhausted on busy database")

// IsBusy reports whether err indicates an SQLite BUSY condition. modernc
// surfaces these as message text, so the check is textual.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx executes fn inside a transaction, retrying on SQLITE_BUSY with the
// busyBackoff schedule. Any other error from fn aborts immediately.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return withBusyRetry(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec executes one statement with the same busy-retry schedule.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := withBusyRetry(ctx, func() error {
		var execErr error
		result, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func withBusyRetry(ctx context.Context, op func() error) error {
	for _, backoff := range busyBackoff {
		err := op()
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: cancelled during busy retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	if err := op(); err != nil {
		if IsBusy(err) {
			return fmt.Errorf("%w: %v", ErrBusyRetries, err)
		}
		return err
	}
	return nil
}
