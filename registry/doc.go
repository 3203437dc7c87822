// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry stores costume entries.

Create writes the entry and a zeroed counter for every category in one
transaction. List returns entries newest first with their counters from a
single statement.

# Updates

Update changes name, description, submitter or type. Ids and counters are
not editable. Changing a group entry to individual fails with a conflict
while it holds couple votes.

# Deletion

Delete and DeleteAll return the removed entries so callers can release
their images. Votes and counters go with the entry.

GetWith and LockWith take an open transaction and are used by the ledger.
*/
package registry
