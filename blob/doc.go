// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package blob stores image bytes by key.

# Stores

  - DBStore: the blob table, shared by every server instance
  - DiskStore: one file per key under a directory, written atomically

Keys are single path elements; anything that could leave the namespace is
rejected with ErrInvalidKey.

# Fallback

Fallback tries Primary and, outside production, writes to Secondary when
Primary fails. In production the failure is returned as a dependency error
so no entry ever points at an image that was not stored.

	images := &blob.Fallback{Primary: dbStore, Secondary: diskStore, AllowFallback: !cfg.IsProduction()}
*/
package blob
