// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package timing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
)

// Store persists the singleton schedule row. Every read goes to the
// database; nothing is cached between calls.
type Store struct {
	db       *db.DB
	clock    Clock
	timezone string
}

// NewStore returns a schedule store. defaultTZ is reported for schedules
// that have never been saved.
func NewStore(conn *db.DB, clock Clock, defaultTZ string) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &Store{db: conn, clock: clock, timezone: defaultTZ}
}

// Default is the schedule used before an admin saves one: timing disabled.
func (s *Store) Default() models.Schedule {
	return models.Schedule{Enabled: false, Timezone: s.timezone}
}

// Get reads the current schedule.
func (s *Store) Get(ctx context.Context) (models.Schedule, error) {
	var (
		sch                   models.Schedule
		start, end, resultsAt sql.NullTime
		override              string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, voting_start, voting_end, results_at, manual_override, timezone, updated_at
		FROM schedule WHERE id = 1
	`).Scan(&sch.Enabled, &start, &end, &resultsAt, &override, &sch.Timezone, &sch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Default(), nil
	}
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%w: read schedule: %w", models.ErrDependency, err)
	}

	sch.VotingStart = utcPtr(start)
	sch.VotingEnd = utcPtr(end)
	sch.ResultsAt = utcPtr(resultsAt)
	sch.ManualOverride = models.Phase(override)
	sch.UpdatedAt = sch.UpdatedAt.UTC()
	return sch, nil
}

// Update validates sch and replaces the stored schedule. A rejected
// schedule leaves the stored one unchanged.
func (s *Store) Update(ctx context.Context, sch models.Schedule) (models.Schedule, error) {
	if sch.Timezone == "" {
		sch.Timezone = s.timezone
	}
	if err := Validate(sch); err != nil {
		return models.Schedule{}, err
	}
	sch.VotingStart = toUTC(sch.VotingStart)
	sch.VotingEnd = toUTC(sch.VotingEnd)
	sch.ResultsAt = toUTC(sch.ResultsAt)
	sch.UpdatedAt = s.clock.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule (id, enabled, voting_start, voting_end, results_at, manual_override, timezone, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			enabled = excluded.enabled,
			voting_start = excluded.voting_start,
			voting_end = excluded.voting_end,
			results_at = excluded.results_at,
			manual_override = excluded.manual_override,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at
	`, sch.Enabled, nullTime(sch.VotingStart), nullTime(sch.VotingEnd), nullTime(sch.ResultsAt),
		string(sch.ManualOverride), sch.Timezone, sch.UpdatedAt)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%w: save schedule: %w", models.ErrDependency, err)
	}

	slog.Info("timing settings updated",
		"enabled", sch.Enabled,
		"manual_override", sch.ManualOverride,
		"timezone", sch.Timezone,
	)
	return sch, nil
}

// Status reads the schedule and resolves the phase at the store's clock.
func (s *Store) Status(ctx context.Context) (models.Schedule, models.PhaseStatus, error) {
	sch, err := s.Get(ctx)
	if err != nil {
		return models.Schedule{}, models.PhaseStatus{}, err
	}
	return sch, Resolve(sch, s.clock.Now()), nil
}

// Now exposes the store's clock.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func utcPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
