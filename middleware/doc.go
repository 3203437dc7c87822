// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).

# Admin Gate

Organizer routes are wrapped with the configured admin key:

	mux.HandleFunc("POST /api/reset-votes", middleware.RequireAdminKey(cfg.AdminKey, h.ResetVotes))

Requests without a matching X-Admin-Key get 401. An empty key leaves the
route open, which cliparse only allows outside production.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Admin-Key, X-Voter-Token.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Domain errors carry their own status and code:

	if err != nil {
		middleware.DomainError(w, err) // {"error":"EntryNotFound","message":"..."}
		return
	}

Phase gating answers 403 with the phase that refused the request:

	middleware.PhaseForbidden(w, status) // {"error":"ForbiddenPhaseError","phase":"closed",...}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Used for the salted IP hash stored with each ballot.
*/
package middleware
