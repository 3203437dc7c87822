// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API,
plus the error taxonomy shared by every package.

# Domain Types

  - Entry: a costume submission and its per-category vote counts
  - Category: couple, funny, scary, overall (couple only accepts group entries)
  - Schedule: the singleton timing configuration
  - Phase: disabled, preshow, voting, closed, results
  - Standing, CategoryStats, VoteStatistics: aggregated results

# Errors

Every domain error wraps one kind sentinel, which decides the HTTP status:

	ErrValidation     -> 400
	ErrNotFound       -> 404
	ErrForbiddenPhase -> 403
	ErrConflict       -> 409
	ErrDependency     -> 502

Specific failures are *CodedError values with a stable code:

	if errors.Is(err, models.ErrCategoryIneligible) { ... }
	if errors.Is(err, models.ErrValidation) { ... }

# Entry Types

	TypeIndividual = "individual"
	TypeGroup      = "group"

The legacy value "couple" is normalised to TypeGroup.
*/
package models
