// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the costume contest API.

# Handler Types

  - EntryHandler: uploads, listing, admin edits and image serving
  - VotingHandler: casting, switching and removing votes
  - ResultsHandler: standings and vote statistics
  - TimingHandler: schedule status and admin updates

Handlers are created via constructor functions that take the domain
services they need plus the config:

	votingHandler := handlers.NewVotingHandler(votes, entries, schedule, hub, cfg)

# Phase Gates

Every write that depends on the contest phase reads the schedule fresh
for that request. Uploads and votes are refused with 403 and the
current phase when the phase does not allow them.

# Errors

Domain errors are mapped to statuses by middleware.DomainError. Store
failures surface as 5xx with a generic message; details go to the log.

# Live Updates

Successful writes publish an event on the live hub after the store
commits. A nil hub is allowed and publishes nothing.
*/
package handlers
