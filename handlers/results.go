// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/results"
)

type ResultsHandler struct {
	results *results.Aggregator
	cfg     cliparse.Config
}

func NewResultsHandler(agg *results.Aggregator, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{results: agg, cfg: cfg}
}

// GetResults handles GET /api/results
// Returns every category keyed by id, or a single leaderboard when
// ?category= is given.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	if raw := r.URL.Query().Get("category"); raw != "" {
		category, err := models.ParseCategory(raw)
		if err != nil {
			middleware.DomainError(w, err)
			return
		}
		standings, err := h.results.Results(ctx, category)
		if err != nil {
			middleware.DomainError(w, err)
			return
		}
		middleware.JSONResponse(w, http.StatusOK, standings)
		return
	}

	all, err := h.results.AllResults(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, all)
}

// GetVoteStats handles GET /api/vote-stats
func (h *ResultsHandler) GetVoteStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	stats, err := h.results.Statistics(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stats)
}
