// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/DadGPT/halloween/models"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"sqlite untouched", SQLite, "SELECT * FROM entry WHERE id = ?", "SELECT * FROM entry WHERE id = ?"},
		{"postgres single", Postgres, "SELECT * FROM entry WHERE id = ?", "SELECT * FROM entry WHERE id = $1"},
		{"postgres many", Postgres, "UPDATE vote_count SET count = count + 1 WHERE entry_id = ? AND category = ?",
			"UPDATE vote_count SET count = count + 1 WHERE entry_id = $1 AND category = $2"},
		{"postgres no args", Postgres, "DELETE FROM voter_vote", "DELETE FROM voter_vote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{"", SQLite, false},
		{"sqlite", SQLite, false},
		{"postgres", Postgres, false},
		{"PostgreSQL", Postgres, false},
		{"mysql", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDialect(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"stale", ErrStale, true},
		{"wrapped stale", fmt.Errorf("switch vote: %w", ErrStale), true},
		{"bad conn", driver.ErrBadConn, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"foreign key", &pq.Error{Code: "23503"}, false},
		{"plain", errors.New("disk on fire"), false},
		{"domain", models.ErrEntryNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func(ctx context.Context) error {
			calls++
			if calls < MaxAttempts {
				return ErrStale
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != MaxAttempts {
			t.Errorf("expected %d calls, got %d", MaxAttempts, calls)
		}
	})

	t.Run("exhausted retries surface contention", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func(ctx context.Context) error {
			calls++
			return ErrStale
		})
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected conflict error, got %v", err)
		}
		if calls != MaxAttempts {
			t.Errorf("expected %d calls, got %d", MaxAttempts, calls)
		}
	})

	t.Run("domain errors are not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func(ctx context.Context) error {
			calls++
			return models.ErrCategoryIneligible
		})
		if !errors.Is(err, models.ErrCategoryIneligible) {
			t.Errorf("expected CategoryIneligible, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := WithRetry(cctx, func(ctx context.Context) error {
			calls++
			cancel()
			return ErrStale
		})
		if !errors.Is(err, models.ErrDependency) {
			t.Errorf("expected dependency error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestOpenSQLiteAndSchema(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, SQLite, "file:db_schema_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	// Twice: must be idempotent
	for i := 0; i < 2; i++ {
		if err := conn.CreateSchema(ctx); err != nil {
			t.Fatalf("CreateSchema() pass %d error = %v", i+1, err)
		}
	}

	for _, table := range []string{"entry", "vote_count", "voter_vote", "schedule", "blob"} {
		var name string
		err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, SQLite, "file:db_tx_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()
	if err := conn.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = conn.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO blob (key, content_type, data, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
			"k1", "image/png", []byte{1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM blob`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected rollback to leave 0 rows, got %d", n)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("noop", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	raw := errors.New("connection refused")
	err := Wrap("list entries", raw)
	if !errors.Is(err, models.ErrDependency) || !errors.Is(err, raw) {
		t.Errorf("Wrap() = %v, want dependency error wrapping the cause", err)
	}

	if got := Wrap("get entry", models.ErrEntryNotFound); got != models.ErrEntryNotFound {
		t.Errorf("domain errors should pass through, got %v", got)
	}
}

func TestRetryInTxRecoversFromLostCAS(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, SQLite, "file:db_cas_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()
	if err := conn.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Zombie", "Vampire", "Mummy"} {
		if _, err := conn.ExecContext(ctx, `INSERT INTO entry (name, image_url, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, name, "/uploads/x.png"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO voter_vote (voter_id, category, entry_id, cast_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, "v", "funny", 1); err != nil {
		t.Fatal(err)
	}

	const readVote = `SELECT entry_id FROM voter_vote WHERE voter_id = ? AND category = ?`

	// Read the current vote, then lose the race to another switch
	var expected int64
	if err := conn.QueryRowContext(ctx, readVote, "v", "funny").Scan(&expected); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.ExecContext(ctx, `UPDATE voter_vote SET entry_id = 2 WHERE voter_id = ? AND category = ?`, "v", "funny"); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	err = conn.RetryInTx(ctx, func(tx *Tx) error {
		attempts++
		res, err := tx.ExecContext(ctx, `
			UPDATE voter_vote SET entry_id = ? WHERE voter_id = ? AND category = ? AND entry_id = ?
		`, 3, "v", "funny", expected)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if err := tx.QueryRowContext(ctx, readVote, "v", "funny").Scan(&expected); err != nil {
				return err
			}
			return fmt.Errorf("switch vote: %w", ErrStale)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryInTx() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected the lost CAS to be retried once, got %d attempts", attempts)
	}

	var current int64
	if err := conn.QueryRowContext(ctx, readVote, "v", "funny").Scan(&current); err != nil {
		t.Fatal(err)
	}
	if current != 3 {
		t.Errorf("vote points at entry %d, want 3", current)
	}
}

func TestLockClause(t *testing.T) {
	if got := (&Tx{dialect: Postgres}).LockClause(); got != " FOR UPDATE" {
		t.Errorf("postgres LockClause() = %q", got)
	}
	if got := (&Tx{dialect: SQLite}).LockClause(); got != "" {
		t.Errorf("sqlite LockClause() = %q, want empty", got)
	}
}
