// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"context"
	"sort"

	"github.com/DadGPT/halloween/models"
)

// EntryLister supplies entries with counters from one consistent read.
type EntryLister interface {
	List(ctx context.Context) ([]models.Entry, error)
}

type Aggregator struct {
	entries EntryLister
}

func NewAggregator(entries EntryLister) *Aggregator {
	return &Aggregator{entries: entries}
}

// Rank orders the entries eligible for c by votes descending, then by id
// ascending, and numbers them from 1.
func Rank(entries []models.Entry, c models.Category) []models.Standing {
	standings := make([]models.Standing, 0, len(entries))
	for _, e := range entries {
		if !c.Accepts(e.Type) {
			continue
		}
		standings = append(standings, models.Standing{
			ID:           e.ID,
			Name:         e.Name,
			Type:         e.Type,
			ImageURL:     e.ImageURL,
			ThumbnailURL: e.ThumbnailURL,
			Votes:        e.Votes[c],
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Votes != standings[j].Votes {
			return standings[i].Votes > standings[j].Votes
		}
		return standings[i].ID < standings[j].ID
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// Results ranks a single category.
func (a *Aggregator) Results(ctx context.Context, c models.Category) ([]models.Standing, error) {
	entries, err := a.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(entries, c), nil
}

// AllResults ranks every category from the same read.
func (a *Aggregator) AllResults(ctx context.Context) (map[models.Category][]models.Standing, error) {
	entries, err := a.entries.List(ctx)
	if err != nil {
		return nil, err
	}

	all := make(map[models.Category][]models.Standing, len(models.Categories))
	for _, c := range models.Categories {
		all[c] = Rank(entries, c)
	}
	return all, nil
}

// Statistics returns rankings plus per-category and grand vote totals.
func (a *Aggregator) Statistics(ctx context.Context) (models.VoteStatistics, error) {
	entries, err := a.entries.List(ctx)
	if err != nil {
		return models.VoteStatistics{}, err
	}
	return Summarize(entries), nil
}

// Summarize builds statistics from an already loaded entry list.
func Summarize(entries []models.Entry) models.VoteStatistics {
	stats := models.VoteStatistics{
		Categories:   make([]models.CategoryStats, 0, len(models.Categories)),
		TotalEntries: len(entries),
	}

	for _, c := range models.Categories {
		standings := Rank(entries, c)
		var total int64
		for _, s := range standings {
			total += s.Votes
		}
		stats.Categories = append(stats.Categories, models.CategoryStats{
			Category:   c,
			Name:       c.DisplayName(),
			TotalVotes: total,
			Entries:    standings,
		})
	}

	for _, e := range entries {
		for _, c := range models.Categories {
			stats.GrandTotalVotes += e.Votes[c]
		}
	}
	return stats
}
