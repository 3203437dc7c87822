// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth holds the contest's small set of credentials helpers.

# Admin Key

Organizer routes (schedule changes, resets, deletions) require the key
configured through ADMIN_KEY, sent in the X-Admin-Key header:

	err := auth.ValidateAdminKey(r.Header.Get(auth.AdminKeyHeader), cfg.AdminKey)

The comparison is constant time. When no key is configured the check is
skipped, which is only permitted outside production.

# Voter Tokens

Browsers without a stored identity ask the server for one:

	token, err := auth.GenerateVoterToken()

Tokens are random, URL-safe and prefixed with "voter-" so they never collide
with the ids the ledger assigns to anonymous ballots.

# IP Hashing

Ballots record a salted hash of the client address for after-the-fact abuse
review:

	hash := auth.HashIP(ipAddress, salt)

Returns the first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
