// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package timing

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/DadGPT/halloween/models"
)

// SettingsPatch is a partial schedule update. Absent fields keep their
// stored value; null or "" clears a timestamp or the manual override.
type SettingsPatch struct {
	Enabled        *bool           `json:"enabled"`
	VotingStart    json.RawMessage `json:"votingStart"`
	VotingEnd      json.RawMessage `json:"votingEnd"`
	ResultsTime    json.RawMessage `json:"resultsTime"`
	ManualOverride json.RawMessage `json:"manualOverride"`
	Timezone       *string         `json:"timezone"`
}

// Apply merges p over current. Zone-less timestamps are read in the
// schedule's timezone and stored in UTC.
func (p SettingsPatch) Apply(current models.Schedule) (models.Schedule, error) {
	next := current
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.Timezone != nil {
		next.Timezone = *p.Timezone
	}

	loc := time.UTC
	if next.Timezone != "" {
		l, err := time.LoadLocation(next.Timezone)
		if err != nil {
			return current, models.ErrInvalidSchedule.WithMessage("unknown timezone %q", next.Timezone)
		}
		loc = l
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **time.Time
	}{
		{"votingStart", p.VotingStart, &next.VotingStart},
		{"votingEnd", p.VotingEnd, &next.VotingEnd},
		{"resultsTime", p.ResultsTime, &next.ResultsAt},
	}
	for _, f := range fields {
		value, present, err := optionalString(f.raw)
		if err != nil {
			return current, models.ErrInvalidSchedule.WithMessage("%s must be a string", f.name)
		}
		if !present {
			continue
		}
		if value == "" {
			*f.dst = nil
			continue
		}
		t, err := ParseInstant(value, loc)
		if err != nil {
			return current, models.ErrInvalidSchedule.WithMessage("%s: %v", f.name, err)
		}
		*f.dst = &t
	}

	override, present, err := optionalString(p.ManualOverride)
	if err != nil {
		return current, models.ErrInvalidSchedule.WithMessage("manualOverride must be a string or null")
	}
	if present {
		next.ManualOverride = models.Phase(override)
	}

	return next, nil
}

// optionalString decodes a raw JSON value that may be absent, null or a string.
func optionalString(raw json.RawMessage) (value string, present bool, err error) {
	if len(raw) == 0 {
		return "", false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", true, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, err
	}
	return value, true, nil
}
