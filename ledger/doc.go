// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records votes and keeps the per-entry counters in step.

# Model

Every vote is a row keyed by (voter, category). A ballot without a voter
id gets an "anon-" voter of its own, so anonymous votes are tracked the
same way and can still be removed by an admin.

	receipt, err := votes.Cast(ctx, ledger.Ballot{
		VoterID:  "voter-...",
		EntryID:  12,
		Category: models.CategoryScary,
	})

Casting the same vote twice is a no-op. Casting for another entry moves
the vote: the old counter goes down by one and the new one up by one in
the same transaction. With ExclusiveEntry set, a voter may back each entry
in only one category.

# Concurrency

Counters change only through single-statement increments and floored
decrements. A switch updates the vote row only if it still points at the
entry read earlier; when another request got there first the transaction
is retried. Each cast row-locks its entry first, which orders it against
other casts and against entry type changes.

ResetAll and Reconcile each run in one transaction.
*/
package ledger
