// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package timing

import (
	"fmt"
	"strings"
	"time"

	"github.com/DadGPT/halloween/models"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var messages = map[models.Phase]string{
	models.PhaseDisabled: "Timing is disabled. Uploads and voting are open.",
	models.PhasePreshow:  "Pre-show period: you can upload costumes but voting hasn't started yet.",
	models.PhaseVoting:   "Voting is now ACTIVE! Cast your votes for your favorite costumes.",
	models.PhaseClosed:   "Voting has ended. Results will be announced soon!",
	models.PhaseResults:  "Contest complete! Thank you for participating. Winners have been announced!",
}

// Message returns the human readable message for a phase.
func Message(p models.Phase) string {
	if m, ok := messages[p]; ok {
		return m
	}
	return "Contest status unknown"
}

func status(p models.Phase) models.PhaseStatus {
	st := models.PhaseStatus{Phase: p, Message: Message(p)}
	switch p {
	case models.PhaseDisabled, models.PhaseVoting:
		st.CanVote, st.CanUpload = true, true
	case models.PhasePreshow:
		st.CanUpload = true
	}
	return st
}

// Resolve computes the contest phase for s at now. It has no side effects
// and must be called with a freshly read schedule for every request.
func Resolve(s models.Schedule, now time.Time) models.PhaseStatus {
	if !s.Enabled {
		return status(models.PhaseDisabled)
	}

	if s.ManualOverride != "" {
		switch s.ManualOverride {
		case models.PhasePreshow, models.PhaseVoting, models.PhaseClosed:
			return status(s.ManualOverride)
		}
		return status(models.PhaseClosed)
	}

	if s.VotingStart == nil || s.VotingEnd == nil {
		return status(models.PhaseClosed)
	}

	now = now.UTC()
	switch {
	case now.Before(*s.VotingStart):
		return status(models.PhasePreshow)
	case now.Before(*s.VotingEnd):
		return status(models.PhaseVoting)
	case s.ResultsAt != nil && !now.Before(*s.ResultsAt):
		return status(models.PhaseResults)
	}
	return status(models.PhaseClosed)
}

// IsOverride reports whether p may be used as a manual override.
func IsOverride(p models.Phase) bool {
	return p == models.PhasePreshow || p == models.PhaseVoting || p == models.PhaseClosed
}

// Validate checks a schedule before it is persisted.
func Validate(s models.Schedule) error {
	if s.ManualOverride != "" && !IsOverride(s.ManualOverride) {
		return models.ErrInvalidSchedule.WithMessage("manualOverride must be preshow, voting or closed")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return models.ErrInvalidSchedule.WithMessage("unknown timezone %q", s.Timezone)
		}
	}
	if !s.Enabled {
		return nil
	}

	var missing []string
	if s.VotingStart == nil {
		missing = append(missing, "votingStart")
	}
	if s.VotingEnd == nil {
		missing = append(missing, "votingEnd")
	}
	if len(missing) > 0 {
		return models.ErrMissingFields.WithMessage("missing required field(s): %s", strings.Join(missing, ", "))
	}

	if !s.VotingStart.Before(*s.VotingEnd) {
		return models.ErrInvalidScheduleOrder
	}
	if s.ResultsAt != nil && s.ResultsAt.Before(*s.VotingEnd) {
		return models.ErrInvalidScheduleOrder.WithMessage("results time must not be before voting end")
	}
	return nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant reads an RFC 3339 timestamp, or a zone-less local timestamp
// interpreted in loc, and returns it in UTC.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
