// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package results turns entry counters into per-category leaderboards.
//
// Standings are sorted by votes descending with ties broken by entry id
// ascending, so entries that tie at zero always appear in a stable order.
// All categories are ranked from a single List call.
package results
