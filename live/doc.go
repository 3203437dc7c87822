// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package live streams contest events to browsers over a websocket.

Clients connect to GET /ws and receive a welcome event followed by one JSON
message per change:

	{"type":"vote.changed","data":{...},"at":"2025-10-31T19:52:03Z"}

Events are notifications only. Clients refetch /api/entries or /api/results
for authoritative counts, so a dropped message never leaves them wrong for
longer than their next refresh.

Each client has a small send queue drained by its own goroutine. Publish
never waits on the network; a client whose queue is full is disconnected.
*/
package live
