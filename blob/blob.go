// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
)

// ErrNotFound is returned by Load for an unknown key.
var ErrNotFound = fmt.Errorf("blob %w", models.ErrNotFound)

// ErrInvalidKey rejects keys that could escape a storage namespace.
var ErrInvalidKey = fmt.Errorf("invalid blob key: %w", models.ErrValidation)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is a key-value store for image bytes.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Load(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

func checkKey(key string) error {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}

// DBStore keeps blobs in the blob table, shared by every server instance.
type DBStore struct {
	db *db.DB
}

func NewDBStore(conn *db.DB) *DBStore {
	return &DBStore{db: conn}
}

func (s *DBStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blob (key, content_type, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET content_type = excluded.content_type, data = excluded.data
	`, key, contentType, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save blob %s: %w", key, err)
	}
	return nil
}

func (s *DBStore) Load(ctx context.Context, key string) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, err
	}
	var obj Object
	err := s.db.QueryRowContext(ctx, `SELECT data, content_type FROM blob WHERE key = ?`, key).Scan(&obj.Data, &obj.ContentType)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("load blob %s: %w", key, err)
	}
	return obj, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blob WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// DiskStore keeps blobs as files in a directory. Content types are
// detected from the bytes on load.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (s *DiskStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) Load(ctx context.Context, key string) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", key, err)
	}
	return Object{Data: data, ContentType: mimetype.Detect(data).String()}, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Fallback writes to Primary and, when allowed, falls back to Secondary on
// failure. Production configurations disallow the fallback so a failed
// primary write is reported instead of silently degrading.
type Fallback struct {
	Primary       Store
	Secondary     Store
	AllowFallback bool
}

func (f *Fallback) Save(ctx context.Context, key string, data []byte, contentType string) error {
	err := f.Primary.Save(ctx, key, data, contentType)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrValidation) {
		return err
	}
	if !f.AllowFallback || f.Secondary == nil {
		return fmt.Errorf("%w: %w", models.ErrDependency, err)
	}

	slog.Warn("primary image store failed, using fallback",
		"key", key,
		"size", humanize.Bytes(uint64(len(data))),
		"error", err,
	)
	if err := f.Secondary.Save(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("%w: fallback store: %w", models.ErrDependency, err)
	}
	return nil
}

func (f *Fallback) Load(ctx context.Context, key string) (Object, error) {
	obj, err := f.Primary.Load(ctx, key)
	if err == nil || f.Secondary == nil || errors.Is(err, models.ErrValidation) {
		return obj, err
	}
	// Objects may live in the secondary from an earlier fallback or an
	// older deployment that stored images on disk.
	if obj, serr := f.Secondary.Load(ctx, key); serr == nil {
		return obj, nil
	}
	return Object{}, err
}

func (f *Fallback) Delete(ctx context.Context, key string) error {
	err := f.Primary.Delete(ctx, key)
	if f.Secondary != nil {
		if serr := f.Secondary.Delete(ctx, key); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
