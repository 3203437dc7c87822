// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour of the connected database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the DATABASE_TYPE values understood by the server.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database type %q", s)
}

// Querier is satisfied by *DB and *Tx. Queries use ? placeholders and are
// rebound for the connected dialect.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a connection pool with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Tx is a transaction that rebinds placeholders like DB.
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// Open connects to the database and applies per-dialect pool settings.
func Open(ctx context.Context, dialect Dialect, url string) (*DB, error) {
	conn, err := sql.Open(string(dialect), url)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	switch dialect {
	case SQLite:
		// A single connection serialises writers and keeps in-memory
		// databases alive for the life of the pool.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		for _, pragma := range []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
			}
		}
	case Postgres:
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return &DB{DB: conn, Dialect: dialect}, nil
}

// Rebind converts ? placeholders to $n for PostgreSQL.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, Rebind(d.Dialect, query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, Rebind(d.Dialect, query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, Rebind(d.Dialect, query), args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, Rebind(t.dialect, query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, Rebind(t.dialect, query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, Rebind(t.dialect, query), args...)
}

// LockClause is the suffix that row-locks the rows a SELECT returns for
// the rest of the transaction. SQLite has no row locks; its single pooled
// connection already runs transactions one at a time.
func (t *Tx) LockClause() string {
	if t.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// InTx runs fn in a transaction, committing on success and rolling back on
// any error. It does not retry; see WithRetry.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx, dialect: d.Dialect}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RetryInTx runs fn in a fresh transaction under WithRetry.
func (d *DB) RetryInTx(ctx context.Context, fn func(tx *Tx) error) error {
	return WithRetry(ctx, func(ctx context.Context) error {
		return d.InTx(ctx, fn)
	})
}
