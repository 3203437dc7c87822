// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (github.com/joho/godotenv)
without overriding variables already set in the environment.

# CLI Flags and Environment Variables

	-p              PORT              Server port (default 3000)
	-d              DATABASE_URL      Connection string (default contest.db for sqlite)
	-t              DATABASE_TYPE     sqlite or postgres (default sqlite)
	-env            ENVIRONMENT       development or production
	-uploads        UPLOAD_DIR        Local image directory (default uploads)
	-blob           BLOB_BACKEND      Primary image store: db or disk (default db)
	-max-upload     MAX_UPLOAD_BYTES  Upload limit, e.g. 5MB (default 5 MiB)
	-store-timeout  STORE_TIMEOUT     Per-operation store timeout (default 5s)
	-tz             CONTEST_TIMEZONE  Zone for naive schedule times (default UTC)
	-admin-key      ADMIN_KEY         Shared secret for management routes
	-ip-salt        IP_HASH_SALT      Salt for voter IP hashes

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error when:

  - DATABASE_URL is missing for postgres
  - a value is not one of its allowed choices
  - ENVIRONMENT is production and ADMIN_KEY is empty

In production the image store never falls back to local disk.
*/
package cliparse
