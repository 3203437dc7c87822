// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/DadGPT/halloween/models"
)

const (
	MaxAttempts = 3
	baseBackoff = 25 * time.Millisecond
)

// ErrStale reports a lost compare-and-swap: the row changed between read
// and conditional write.
var ErrStale = errors.New("stale write")

// WithRetry runs fn up to MaxAttempts times while it fails with a retryable
// error, backing off 25ms, 50ms between attempts. Exhausted retries surface
// as models.ErrContention; other errors are returned unchanged.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	backoff := baseBackoff
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == MaxAttempts {
			break
		}
		slog.Warn("retrying store operation", "attempt", attempt, "backoff_ms", backoff.Milliseconds(), "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", models.ErrDependency, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("%w (after %d attempts: %v)", models.ErrContention, MaxAttempts, err)
}

// IsRetryable reports whether err is a transient conflict worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStale) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Wrap tags a raw driver error with models.ErrDependency. Errors that
// already carry a domain kind pass through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		models.ErrValidation, models.ErrNotFound, models.ErrForbiddenPhase,
		models.ErrConflict, models.ErrDependency,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", models.ErrDependency, op, err)
}
