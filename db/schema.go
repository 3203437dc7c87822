// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func (d *DB) CreateSchema(ctx context.Context) error {
	schema := sqliteSchema
	if d.Dialect == Postgres {
		schema = postgresSchema
	}

	// One statement per Exec.
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

const postgresSchema = `
-- Entries
CREATE TABLE IF NOT EXISTS entry (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT 'individual' CHECK (type IN ('individual', 'group')),
    image_url TEXT NOT NULL,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    submitter_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entry_created_at ON entry(created_at);
CREATE INDEX IF NOT EXISTS idx_entry_submitter ON entry(submitter_id);

-- Per-entry, per-category counters
CREATE TABLE IF NOT EXISTS vote_count (
    entry_id BIGINT NOT NULL REFERENCES entry(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    count BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0),
    PRIMARY KEY (entry_id, category)
);

-- One active vote per voter per category
CREATE TABLE IF NOT EXISTS voter_vote (
    voter_id TEXT NOT NULL,
    category TEXT NOT NULL,
    entry_id BIGINT NOT NULL REFERENCES entry(id) ON DELETE CASCADE,
    cast_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ip_hash TEXT,
    PRIMARY KEY (voter_id, category)
);

CREATE INDEX IF NOT EXISTS idx_voter_vote_entry ON voter_vote(entry_id, category);

-- Singleton timing configuration
CREATE TABLE IF NOT EXISTS schedule (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    enabled BOOLEAN NOT NULL DEFAULT FALSE,
    voting_start TIMESTAMPTZ,
    voting_end TIMESTAMPTZ,
    results_at TIMESTAMPTZ,
    manual_override TEXT NOT NULL DEFAULT '',
    timezone TEXT NOT NULL DEFAULT 'UTC',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Image blobs
CREATE TABLE IF NOT EXISTS blob (
    key TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    data BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entry (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT 'individual' CHECK (type IN ('individual', 'group')),
    image_url TEXT NOT NULL,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    submitter_id TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entry_created_at ON entry(created_at);
CREATE INDEX IF NOT EXISTS idx_entry_submitter ON entry(submitter_id);

CREATE TABLE IF NOT EXISTS vote_count (
    entry_id INTEGER NOT NULL REFERENCES entry(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
    PRIMARY KEY (entry_id, category)
);

CREATE TABLE IF NOT EXISTS voter_vote (
    voter_id TEXT NOT NULL,
    category TEXT NOT NULL,
    entry_id INTEGER NOT NULL REFERENCES entry(id) ON DELETE CASCADE,
    cast_at DATETIME NOT NULL,
    ip_hash TEXT,
    PRIMARY KEY (voter_id, category)
);

CREATE INDEX IF NOT EXISTS idx_voter_vote_entry ON voter_vote(entry_id, category);

CREATE TABLE IF NOT EXISTS schedule (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    enabled BOOLEAN NOT NULL DEFAULT 0,
    voting_start DATETIME,
    voting_end DATETIME,
    results_at DATETIME,
    manual_override TEXT NOT NULL DEFAULT '',
    timezone TEXT NOT NULL DEFAULT 'UTC',
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS blob (
    key TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    data BLOB NOT NULL,
    created_at DATETIME NOT NULL
);
`
