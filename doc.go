// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Halloween costume contest API.

Guests upload a costume photo, vote once per category (funny, scary,
group, overall) and watch standings update live. An admin controls the
voting schedule and can edit or remove entries.

# Starting the Server

With no configuration the server uses a local SQLite file:

	go run .

For PostgreSQL:

	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

Or with flags:

	go run . -p 3000 -t postgres -d "postgres://..."

A .env file in the working directory is loaded when present.

# Configuration

  - PORT (-p): Server port (default: 3000)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): Connection string (default: contest.db for sqlite)
  - ENVIRONMENT (--env): development or production
  - ADMIN_KEY (--admin-key): Required in production
  - IP_HASH_SALT (--ip-salt): Salt for hashed voter IPs
  - BLOB_BACKEND (--blob): db or disk (default: db)
  - UPLOAD_DIR (--uploads): Directory for the disk store
  - MAX_UPLOAD_BYTES (--max-upload): e.g. 5MB
  - STORE_TIMEOUT (--store-timeout): e.g. 5s
  - CONTEST_TIMEZONE (--tz): Zone for zone-less schedule timestamps

In production the image store never falls back to its secondary backend
and logs are JSON.

# Architecture

  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON and error helpers
  - registry: Entries and their vote counters
  - ledger: Votes, one per voter and category
  - results: Rankings and statistics
  - timing: Contest schedule and phase resolution
  - media: Image validation and thumbnails
  - blob: Image byte storage
  - live: WebSocket broadcast of contest events
  - models: Domain and request/response types
  - auth: Admin key checks, voter tokens, IP hashing
  - db: Connection, schema and retry helpers
  - cliparse: Configuration parsing
*/
package main
