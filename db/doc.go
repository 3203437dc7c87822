// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database, creates the schema, and provides the
transaction and retry helpers used by the stores.

# Drivers

Two dialects are supported:

  - sqlite: modernc.org/sqlite (pure Go), the default for development and tests
  - postgres: github.com/lib/pq

	conn, err := db.Open(ctx, db.SQLite, "contest.db")
	if err := conn.CreateSchema(ctx); err != nil { ... }

SQLite pools are limited to one connection with WAL and a busy timeout, so
writers are serialised by the pool. PostgreSQL pools up to 25 connections.

# Placeholders

Queries are written with ? placeholders. DB and Tx rebind them to $1, $2 ...
for PostgreSQL, so stores accept a Querier and stay dialect agnostic.

# Retries

RetryInTx runs a function in a fresh transaction up to three times while it
fails with a transient error: serialization failure, deadlock, unique
violation, SQLITE_BUSY, or ErrStale (a lost compare-and-swap). Exhausted
retries surface as models.ErrContention.

# Tables

  - entry: costume entries
  - vote_count: per-entry, per-category counters (count >= 0)
  - voter_vote: one row per (voter_id, category)
  - schedule: singleton timing configuration (id = 1)
  - blob: image bytes when BLOB_BACKEND=db

vote_count and voter_vote cascade on entry deletion.
*/
package db
