// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the costume contest API.

# Route Registration

NewRouter builds the domain services and returns a configured
http.ServeMux:

	mux := router.NewRouter(conn, blobs, hub, cfg)

# Endpoints

Health:

	GET /health

Entries:

	GET    /api/entries                   - List entries with vote counts
	GET    /api/entries/{id}              - Single entry
	GET    /api/my-entry/{submitterId}    - Entry uploaded from a device
	POST   /api/upload                    - Multipart photo upload
	GET    /uploads/{key}                 - Stored image bytes

Voting:

	POST   /api/vote                      - Cast or switch a vote
	POST   /api/submit-vote               - Same, voter id required
	DELETE /api/voter-vote/{voterId}/{category}
	GET    /api/voter-votes/{voterId}
	POST   /api/voter-token               - Issue a voter token

Results and schedule:

	GET    /api/results[?category=funny]
	GET    /api/vote-stats
	GET    /api/timing-status

Admin (X-Admin-Key when an admin key is configured):

	PUT    /api/entries/{id}
	DELETE /api/entries/{id}
	DELETE /api/entries
	POST   /api/remove-vote
	POST   /api/reset-votes
	POST   /api/reconcile-votes
	POST   /api/timing-settings

Live updates:

	GET    /ws                            - WebSocket event stream
*/
package router
