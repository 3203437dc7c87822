// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/timing"
)

// NewEntry holds the fields supplied when an entry is created.
type NewEntry struct {
	Name         string
	Description  string
	Type         string
	ImageURL     string
	ThumbnailURL string
	SubmitterID  string
}

// Registry stores costume entries. Vote counters are created with the
// entry but only ever changed by the ledger.
type Registry struct {
	db    *db.DB
	clock timing.Clock
}

func New(conn *db.DB, clock timing.Clock) *Registry {
	if clock == nil {
		clock = timing.SystemClock{}
	}
	return &Registry{db: conn, clock: clock}
}

const selectEntries = `
	SELECT e.id, e.name, e.description, e.type, e.image_url, e.thumbnail_url, e.submitter_id, e.created_at,
	       vc.category, vc.count
	FROM entry e
	LEFT JOIN vote_count vc ON vc.entry_id = e.id
`

const newestFirst = ` ORDER BY e.created_at DESC, e.id DESC`

// Create stores a new entry with every category counter at zero.
func (r *Registry) Create(ctx context.Context, in NewEntry) (models.Entry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Entry{}, models.ErrMissingFields.WithMessage("name is required")
	}
	entryType, ok := models.NormalizeEntryType(in.Type)
	if !ok {
		return models.Entry{}, models.ErrInvalidEntryType
	}
	if in.ImageURL == "" {
		return models.Entry{}, models.ErrMissingFields.WithMessage("image is required")
	}

	entry := models.Entry{
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		Type:         entryType,
		ImageURL:     in.ImageURL,
		ThumbnailURL: in.ThumbnailURL,
		SubmitterID:  strings.TrimSpace(in.SubmitterID),
		CreatedAt:    r.clock.Now().UTC(),
		Votes:        models.ZeroVotes(),
	}

	err := r.db.RetryInTx(ctx, func(tx *db.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO entry (name, description, type, image_url, thumbnail_url, submitter_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`, entry.Name, entry.Description, entry.Type, entry.ImageURL, entry.ThumbnailURL, entry.SubmitterID, entry.CreatedAt).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}

		for _, c := range models.Categories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vote_count (entry_id, category, count) VALUES (?, ?, 0)
			`, entry.ID, string(c)); err != nil {
				return fmt.Errorf("insert counter: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Entry{}, db.Wrap("create entry", err)
	}

	slog.Info("entry created", "entry_id", entry.ID, "name", entry.Name, "type", entry.Type)
	return entry, nil
}

// Get returns one entry with its counters.
func (r *Registry) Get(ctx context.Context, id int64) (models.Entry, error) {
	e, err := GetWith(ctx, r.db, id)
	return e, db.Wrap("get entry", err)
}

// GetWith reads an entry through q, typically an open transaction.
func GetWith(ctx context.Context, q db.Querier, id int64) (models.Entry, error) {
	entries, err := query(ctx, q, selectEntries+` WHERE e.id = ?`, id)
	if err != nil {
		return models.Entry{}, err
	}
	if len(entries) == 0 {
		return models.Entry{}, models.ErrEntryNotFound.WithMessage("entry %d not found", id)
	}
	return entries[0], nil
}

// LockWith row-locks an entry until tx ends. Vote casts and type changes
// take it first so their eligibility checks see each other's commits.
func LockWith(ctx context.Context, tx *db.Tx, id int64) error {
	var locked int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM entry WHERE id = ?`+tx.LockClause(), id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrEntryNotFound.WithMessage("entry %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("lock entry: %w", err)
	}
	return nil
}

// List returns every entry, newest first, read in a single statement so
// all counters reflect the same instant.
func (r *Registry) List(ctx context.Context) ([]models.Entry, error) {
	entries, err := query(ctx, r.db, selectEntries+newestFirst)
	if err != nil {
		return nil, db.Wrap("list entries", err)
	}
	return entries, nil
}

// FindBySubmitter returns the newest entry uploaded with the given token.
func (r *Registry) FindBySubmitter(ctx context.Context, submitterID string) (models.Entry, bool, error) {
	submitterID = strings.TrimSpace(submitterID)
	if submitterID == "" {
		return models.Entry{}, false, nil
	}
	entries, err := query(ctx, r.db, selectEntries+` WHERE e.submitter_id = ?`+newestFirst, submitterID)
	if err != nil {
		return models.Entry{}, false, db.Wrap("find entry by submitter", err)
	}
	if len(entries) == 0 {
		return models.Entry{}, false, nil
	}
	return entries[0], true, nil
}

// Update applies a partial change to an entry's metadata. Identifiers and
// counters cannot be changed here.
func (r *Registry) Update(ctx context.Context, id int64, patch models.UpdateEntryRequest) (models.Entry, error) {
	var updated models.Entry
	err := r.db.RetryInTx(ctx, func(tx *db.Tx) error {
		if err := LockWith(ctx, tx, id); err != nil {
			return err
		}
		current, err := GetWith(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current
		if patch.Name != nil {
			next.Name = strings.TrimSpace(*patch.Name)
			if next.Name == "" {
				return models.ErrMissingFields.WithMessage("name cannot be empty")
			}
		}
		if patch.Description != nil {
			next.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.SubmitterID != nil {
			next.SubmitterID = strings.TrimSpace(*patch.SubmitterID)
		}
		if patch.Type != nil {
			t, ok := models.NormalizeEntryType(*patch.Type)
			if !ok {
				return models.ErrInvalidEntryType
			}
			next.Type = t
		}

		stmt := `UPDATE entry SET name = ?, description = ?, type = ?, submitter_id = ? WHERE id = ?`
		args := []any{next.Name, next.Description, next.Type, next.SubmitterID, id}
		if !models.CategoryCouple.Accepts(next.Type) {
			// Only change to an ineligible type while no couple vote exists.
			stmt += ` AND NOT EXISTS (SELECT 1 FROM voter_vote WHERE entry_id = ? AND category = ?)`
			args = append(args, id, string(models.CategoryCouple))
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if n == 0 {
			return models.ErrTypeChangeConflict
		}

		updated, err = GetWith(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Entry{}, db.Wrap("update entry", err)
	}

	slog.Info("entry updated", "entry_id", id)
	return updated, nil
}

// Delete removes an entry with its votes and returns what was removed so
// the caller can release the image.
func (r *Registry) Delete(ctx context.Context, id int64) (models.Entry, error) {
	var removed models.Entry
	err := r.db.RetryInTx(ctx, func(tx *db.Tx) error {
		var err error
		removed, err = GetWith(ctx, tx, id)
		if err != nil {
			return err
		}
		return deleteWhere(ctx, tx, `WHERE entry_id = ?`, `WHERE id = ?`, id)
	})
	if err != nil {
		return models.Entry{}, db.Wrap("delete entry", err)
	}

	slog.Info("entry deleted", "entry_id", id, "name", removed.Name)
	return removed, nil
}

// DeleteAll removes every entry and vote. The removed entries are returned;
// their count is the number deleted.
func (r *Registry) DeleteAll(ctx context.Context) ([]models.Entry, error) {
	var removed []models.Entry
	err := r.db.RetryInTx(ctx, func(tx *db.Tx) error {
		var err error
		removed, err = query(ctx, tx, selectEntries+newestFirst)
		if err != nil {
			return err
		}
		return deleteWhere(ctx, tx, "", "")
	})
	if err != nil {
		return nil, db.Wrap("delete all entries", err)
	}

	slog.Info("all entries deleted", "count", len(removed))
	return removed, nil
}

func deleteWhere(ctx context.Context, tx *db.Tx, childWhere, entryWhere string, args ...any) error {
	for _, stmt := range []string{
		`DELETE FROM voter_vote ` + childWhere,
		`DELETE FROM vote_count ` + childWhere,
		`DELETE FROM entry ` + entryWhere,
	} {
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
	}
	return nil
}

// query runs an entry SELECT joined with vote_count and folds the counter
// rows back into one Entry per id, preserving row order.
func query(ctx context.Context, q db.Querier, stmt string, args ...any) ([]models.Entry, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			e        models.Entry
			category sql.NullString
			count    sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Type, &e.ImageURL, &e.ThumbnailURL,
			&e.SubmitterID, &e.CreatedAt, &category, &count); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		i, seen := index[e.ID]
		if !seen {
			e.CreatedAt = e.CreatedAt.UTC()
			e.Votes = models.ZeroVotes()
			entries = append(entries, e)
			i = len(entries) - 1
			index[e.ID] = i
		}
		if category.Valid {
			if _, known := entries[i].Votes[models.Category(category.String)]; known {
				entries[i].Votes[models.Category(category.String)] = count.Int64
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
