// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/DadGPT/halloween/blob"
	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/handlers"
	"github.com/DadGPT/halloween/ledger"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/results"
	"github.com/DadGPT/halloween/timing"
)

func NewRouter(conn *db.DB, blobs blob.Store, hub *live.Hub, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Domain services
	entries := registry.New(conn, nil)
	votes := ledger.New(conn, nil)
	schedule := timing.NewStore(conn, nil, cfg.Timezone)

	// Initialize handlers
	entryHandler := handlers.NewEntryHandler(entries, schedule, blobs, hub, cfg)
	votingHandler := handlers.NewVotingHandler(votes, entries, schedule, hub, cfg)
	resultsHandler := handlers.NewResultsHandler(results.NewAggregator(entries), cfg)
	timingHandler := handlers.NewTimingHandler(schedule, hub, cfg)

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdminKey(cfg.AdminKey, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Entries
	mux.HandleFunc("GET /api/entries", middleware.WithLogging(entryHandler.ListEntries))
	mux.HandleFunc("GET /api/entries/{id}", middleware.WithLogging(entryHandler.GetEntry))
	mux.HandleFunc("GET /api/my-entry/{submitterId}", middleware.WithLogging(entryHandler.GetMyEntry))
	mux.HandleFunc("POST /api/upload", middleware.WithLogging(entryHandler.Upload))
	mux.HandleFunc("PUT /api/entries/{id}", admin(entryHandler.UpdateEntry))
	mux.HandleFunc("DELETE /api/entries/{id}", admin(entryHandler.DeleteEntry))
	mux.HandleFunc("DELETE /api/entries", admin(entryHandler.DeleteAllEntries))
	mux.HandleFunc("GET /uploads/{key}", entryHandler.ServeImage)

	// Voting
	mux.HandleFunc("POST /api/vote", middleware.WithLogging(votingHandler.Vote))
	mux.HandleFunc("POST /api/submit-vote", middleware.WithLogging(votingHandler.SubmitVote))
	mux.HandleFunc("DELETE /api/voter-vote/{voterId}/{category}", middleware.WithLogging(votingHandler.RemoveVoterVote))
	mux.HandleFunc("GET /api/voter-votes/{voterId}", middleware.WithLogging(votingHandler.GetVoterVotes))
	mux.HandleFunc("POST /api/voter-token", middleware.WithLogging(votingHandler.IssueVoterToken))
	mux.HandleFunc("POST /api/remove-vote", admin(votingHandler.RemoveVote))
	mux.HandleFunc("POST /api/reset-votes", admin(votingHandler.ResetVotes))
	mux.HandleFunc("POST /api/reconcile-votes", admin(votingHandler.ReconcileVotes))

	// Results
	mux.HandleFunc("GET /api/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /api/vote-stats", middleware.WithLogging(resultsHandler.GetVoteStats))

	// Timing
	mux.HandleFunc("GET /api/timing-status", middleware.WithLogging(timingHandler.GetTimingStatus))
	mux.HandleFunc("POST /api/timing-settings", admin(timingHandler.UpdateTimingSettings))

	// Live updates; the upgrade needs the raw ResponseWriter
	mux.HandleFunc("GET /ws", hub.ServeWS)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("halloween contest API v1"))
	})

	return mux
}
