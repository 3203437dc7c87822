// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package timing decides the contest phase and stores the schedule.

# Phases

Resolve is a pure function of the schedule and the current instant:

	disabled  timing off, uploads and votes allowed
	preshow   before votingStart, uploads only
	voting    votingStart <= now < votingEnd, uploads and votes
	closed    at or after votingEnd, nothing allowed
	results   at or after resultsTime, nothing allowed

A manual override of preshow, voting or closed bypasses the window; any
other override value resolves to closed.

# Storage

Store keeps a single schedule row and reads it on every call, so every
request sees the latest admin change. Update validates first; a rejected
schedule leaves the stored one untouched.

All instants are stored and compared in UTC. Zone-less input such as
"2025-10-31T19:45" is read in the schedule's timezone by SettingsPatch.
*/
package timing
