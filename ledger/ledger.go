// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/timing"
)

// AnonymousPrefix marks voter ids generated for votes cast without a token.
const AnonymousPrefix = "anon-"

// Ballot is a request to hold a vote for EntryID in Category.
type Ballot struct {
	VoterID  string
	EntryID  int64
	Category models.Category
	// ExclusiveEntry rejects the ballot when the voter already holds a vote
	// for the same entry in another category.
	ExclusiveEntry bool
	IPHash         string
}

// Receipt describes the outcome of a cast.
type Receipt struct {
	Entry   models.Entry
	VoterID string
	// PreviousEntryID is the entry that lost the vote on a switch, or 0.
	PreviousEntryID int64
	// Changed is false when the ballot repeated the voter's current vote.
	Changed bool
}

// Ledger owns vote records. Every mutation runs in a retried transaction
// and touches counters only with single-statement increments/decrements,
// so vote_count always equals the number of voter_vote rows.
type Ledger struct {
	db    *db.DB
	clock timing.Clock
}

func New(conn *db.DB, clock timing.Clock) *Ledger {
	if clock == nil {
		clock = timing.SystemClock{}
	}
	return &Ledger{db: conn, clock: clock}
}

// Cast records a vote, moving the voter's existing vote in the category
// if it points elsewhere. Repeating the current vote is a successful no-op.
func (l *Ledger) Cast(ctx context.Context, b Ballot) (Receipt, error) {
	category, err := models.ParseCategory(string(b.Category))
	if err != nil {
		return Receipt{}, err
	}
	if b.EntryID <= 0 {
		return Receipt{}, models.ErrMissingFields.WithMessage("entryId is required")
	}

	voterID := strings.TrimSpace(b.VoterID)
	if voterID == "" {
		voterID = AnonymousPrefix + uuid.NewString()
	}
	var ipHash sql.NullString
	if b.IPHash != "" {
		ipHash = sql.NullString{String: b.IPHash, Valid: true}
	}

	var receipt Receipt
	err = l.db.RetryInTx(ctx, func(tx *db.Tx) error {
		receipt = Receipt{VoterID: voterID}

		// Serialises casts on this entry, including the exclusivity check
		if err := registry.LockWith(ctx, tx, b.EntryID); err != nil {
			return err
		}
		entry, err := registry.GetWith(ctx, tx, b.EntryID)
		if err != nil {
			return err
		}
		if !category.Accepts(entry.Type) {
			return models.ErrCategoryIneligible.WithMessage("%s entries are not eligible for %s", entry.Type, category.DisplayName())
		}

		previous, held, err := currentVote(ctx, tx, voterID, category)
		if err != nil {
			return err
		}
		if held && previous == b.EntryID {
			receipt.Entry = entry
			return nil
		}

		if b.ExclusiveEntry {
			var other string
			err := tx.QueryRowContext(ctx, `
				SELECT category FROM voter_vote
				WHERE voter_id = ? AND entry_id = ? AND category <> ?
				LIMIT 1
			`, voterID, b.EntryID, string(category)).Scan(&other)
			if err == nil {
				return models.ErrDuplicateEntryAcrossCategories.WithMessage(
					"you already voted for this costume in %s", models.Category(other).DisplayName())
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check other categories: %w", err)
			}
		}

		now := l.clock.Now().UTC()
		if held {
			// Compare-and-swap on the entry we read; a concurrent switch
			// by the same voter makes this a no-op and forces a retry.
			res, err := tx.ExecContext(ctx, `
				UPDATE voter_vote SET entry_id = ?, cast_at = ?, ip_hash = ?
				WHERE voter_id = ? AND category = ? AND entry_id = ?
			`, b.EntryID, now, ipHash, voterID, string(category), previous)
			if err := expectOne(res, err, "switch vote"); err != nil {
				return err
			}
			if err := decrement(ctx, tx, previous, category); err != nil {
				return err
			}
			receipt.PreviousEntryID = previous
		} else {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO voter_vote (voter_id, category, entry_id, cast_at, ip_hash)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (voter_id, category) DO NOTHING
			`, voterID, string(category), b.EntryID, now, ipHash)
			if err := expectOne(res, err, "insert vote"); err != nil {
				return err
			}
		}

		if err := increment(ctx, tx, b.EntryID, category); err != nil {
			return err
		}

		receipt.Changed = true
		receipt.Entry, err = registry.GetWith(ctx, tx, b.EntryID)
		return err
	})
	if err != nil {
		return Receipt{}, db.Wrap("cast vote", err)
	}

	if receipt.Changed {
		slog.Info("vote cast",
			"entry_id", b.EntryID,
			"category", category,
			"previous_entry_id", receipt.PreviousEntryID,
			"anonymous", strings.HasPrefix(voterID, AnonymousPrefix),
		)
	}
	return receipt, nil
}

// RemoveVoterVote deletes the voter's vote in a category and decrements the
// entry it pointed at.
func (l *Ledger) RemoveVoterVote(ctx context.Context, voterID string, category models.Category) (models.Entry, error) {
	category, err := models.ParseCategory(string(category))
	if err != nil {
		return models.Entry{}, err
	}
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return models.Entry{}, models.ErrMissingFields.WithMessage("voterId is required")
	}

	var entry models.Entry
	err = l.db.RetryInTx(ctx, func(tx *db.Tx) error {
		entryID, held, err := currentVote(ctx, tx, voterID, category)
		if err != nil {
			return err
		}
		if !held {
			return models.ErrVoteNotFound
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM voter_vote WHERE voter_id = ? AND category = ? AND entry_id = ?
		`, voterID, string(category), entryID)
		if err := expectOne(res, err, "delete vote"); err != nil {
			return err
		}
		if err := decrement(ctx, tx, entryID, category); err != nil {
			return err
		}

		entry, err = registry.GetWith(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return models.Entry{}, db.Wrap("remove voter vote", err)
	}

	slog.Info("vote removed", "entry_id", entry.ID, "category", category)
	return entry, nil
}

// RemoveVote takes one vote away from an entry without knowing the voter,
// for admin corrections. Anonymous votes go first, then the most recent.
// A counter already at zero is left alone.
func (l *Ledger) RemoveVote(ctx context.Context, entryID int64, category models.Category) (models.Entry, error) {
	category, err := models.ParseCategory(string(category))
	if err != nil {
		return models.Entry{}, err
	}
	if entryID <= 0 {
		return models.Entry{}, models.ErrMissingFields.WithMessage("entryId is required")
	}

	var entry models.Entry
	err = l.db.RetryInTx(ctx, func(tx *db.Tx) error {
		if _, err := registry.GetWith(ctx, tx, entryID); err != nil {
			return err
		}

		var voterID string
		err := tx.QueryRowContext(ctx, `
			SELECT voter_id FROM voter_vote
			WHERE entry_id = ? AND category = ?
			ORDER BY CASE WHEN voter_id LIKE ? THEN 0 ELSE 1 END, cast_at DESC
			LIMIT 1
		`, entryID, string(category), AnonymousPrefix+"%").Scan(&voterID)
		switch {
		case err == nil:
			res, err := tx.ExecContext(ctx, `
				DELETE FROM voter_vote WHERE voter_id = ? AND category = ? AND entry_id = ?
			`, voterID, string(category), entryID)
			if err := expectOne(res, err, "delete vote"); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("pick vote to remove: %w", err)
		}

		if err := decrement(ctx, tx, entryID, category); err != nil {
			return err
		}

		entry, err = registry.GetWith(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return models.Entry{}, db.Wrap("remove vote", err)
	}

	slog.Info("vote removed by admin", "entry_id", entryID, "category", category, "count", entry.Votes[category])
	return entry, nil
}

// ResetAll clears every vote and zeroes every counter in one transaction.
func (l *Ledger) ResetAll(ctx context.Context) error {
	var cleared int64
	err := l.db.RetryInTx(ctx, func(tx *db.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM voter_vote`)
		if err != nil {
			return fmt.Errorf("clear votes: %w", err)
		}
		cleared, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `UPDATE vote_count SET count = 0 WHERE count <> 0`); err != nil {
			return fmt.Errorf("zero counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Wrap("reset votes", err)
	}

	slog.Info("all votes reset", "votes_cleared", cleared)
	return nil
}

// Reconcile recomputes every counter from the vote rows and returns how
// many counters were corrected.
func (l *Ledger) Reconcile(ctx context.Context) (int64, error) {
	var fixed int64
	err := l.db.RetryInTx(ctx, func(tx *db.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE vote_count SET count = (
				SELECT COUNT(*) FROM voter_vote v
				WHERE v.entry_id = vote_count.entry_id AND v.category = vote_count.category
			)
			WHERE count <> (
				SELECT COUNT(*) FROM voter_vote v
				WHERE v.entry_id = vote_count.entry_id AND v.category = vote_count.category
			)
		`)
		if err != nil {
			return fmt.Errorf("recount: %w", err)
		}
		fixed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, db.Wrap("reconcile votes", err)
	}

	if fixed > 0 {
		slog.Warn("vote counters reconciled", "corrected", fixed)
	}
	return fixed, nil
}

// VoterVotes returns the entry the voter currently holds in each category.
func (l *Ledger) VoterVotes(ctx context.Context, voterID string) (map[models.Category]int64, error) {
	votes := make(map[models.Category]int64)
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return votes, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT category, entry_id FROM voter_vote WHERE voter_id = ?
	`, voterID)
	if err != nil {
		return nil, db.Wrap("read voter votes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			entryID  int64
		)
		if err := rows.Scan(&category, &entryID); err != nil {
			return nil, db.Wrap("scan voter vote", err)
		}
		votes[models.Category(category)] = entryID
	}
	if err := rows.Err(); err != nil {
		return nil, db.Wrap("iterate voter votes", err)
	}
	return votes, nil
}

func currentVote(ctx context.Context, tx *db.Tx, voterID string, category models.Category) (int64, bool, error) {
	var entryID int64
	err := tx.QueryRowContext(ctx, `
		SELECT entry_id FROM voter_vote WHERE voter_id = ? AND category = ?
	`, voterID, string(category)).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read current vote: %w", err)
	}
	return entryID, true, nil
}

func increment(ctx context.Context, tx *db.Tx, entryID int64, category models.Category) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vote_count (entry_id, category, count) VALUES (?, ?, 1)
		ON CONFLICT (entry_id, category) DO UPDATE SET count = vote_count.count + 1
	`, entryID, string(category))
	if err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// decrement is floored at zero: an empty counter is left unchanged.
func decrement(ctx context.Context, tx *db.Tx, entryID int64, category models.Category) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE vote_count SET count = count - 1
		WHERE entry_id = ? AND category = ? AND count > 0
	`, entryID, string(category))
	if err != nil {
		return fmt.Errorf("decrement counter: %w", err)
	}
	return nil
}

// expectOne turns a zero-row conditional write into db.ErrStale.
func expectOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, db.ErrStale)
	}
	return nil
}
