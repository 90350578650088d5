package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mescon/gptimer/internal/logger"
)

// isBusy reports whether err is SQLite refusing a lock.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn until it succeeds, fails with a non-busy error, or
// MaxRetries is reached. Backoff doubles from RetryDelay.
func withRetry[T any](op string, fn func() (T, error)) (T, error) {
	var zero T
	var err error

	for attempt := 0; attempt < MaxRetries; attempt++ {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if !isBusy(err) {
			return zero, err
		}

		// 100ms, 200ms, 400ms, 800ms
		if attempt < MaxRetries-1 {
			delay := RetryDelay * time.Duration(1<<attempt)
			logger.Debugf("Database busy on %s, retrying in %v (attempt %d/%d)", op, delay, attempt+1, MaxRetries)
			time.Sleep(delay)
		}
	}

	return zero, fmt.Errorf("database busy after %d retries: %w", MaxRetries, err)
}

// ExecWithRetry executes a SQL statement, retrying while the database is busy.
// Event publishing and schedule edits can race the maintenance job for the
// write lock.
func ExecWithRetry(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	return withRetry("exec", func() (sql.Result, error) {
		return db.Exec(query, args...)
	})
}

// QueryWithRetry executes a query, retrying while the database is busy.
func QueryWithRetry(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	return withRetry("query", func() (*sql.Rows, error) {
		return db.Query(query, args...)
	})
}
