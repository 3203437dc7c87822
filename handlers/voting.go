// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DadGPT/halloween/auth"
	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/ledger"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/timing"
)

type VotingHandler struct {
	votes    *ledger.Ledger
	entries  *registry.Registry
	schedule *timing.Store
	hub      *live.Hub
	cfg      cliparse.Config
}

func NewVotingHandler(votes *ledger.Ledger, entries *registry.Registry, schedule *timing.Store, hub *live.Hub, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{votes: votes, entries: entries, schedule: schedule, hub: hub, cfg: cfg}
}

// voteChange is the payload of vote.changed events.
type voteChange struct {
	EntryID         int64           `json:"entryId"`
	Category        models.Category `json:"category"`
	Votes           int64           `json:"votes"`
	PreviousEntryID int64           `json:"previousEntryId,omitempty"`
}

// Vote handles POST /api/vote
func (h *VotingHandler) Vote(w http.ResponseWriter, r *http.Request) {
	h.cast(w, r, false)
}

// SubmitVote handles POST /api/submit-vote. Unlike Vote it requires a voter
// token and allows each costume only once across categories.
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	h.cast(w, r, true)
}

func (h *VotingHandler) cast(w http.ResponseWriter, r *http.Request, exclusive bool) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	if !gate(ctx, w, h.schedule, canVote) {
		return
	}

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.EntryID == 0 || strings.TrimSpace(req.Category) == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("Entry ID and category are required"))
		return
	}
	if exclusive && strings.TrimSpace(req.VoterID) == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("voterId is required"))
		return
	}

	receipt, err := h.votes.Cast(ctx, ledger.Ballot{
		VoterID:        req.VoterID,
		EntryID:        req.EntryID,
		Category:       models.Category(req.Category),
		ExclusiveEntry: exclusive,
		IPHash:         auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
	})
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	message := "Vote recorded!"
	if receipt.Changed {
		category, _ := models.ParseCategory(req.Category)
		h.hub.Publish(live.EventVoteChanged, voteChange{
			EntryID:         receipt.Entry.ID,
			Category:        category,
			Votes:           receipt.Entry.Votes[category],
			PreviousEntryID: receipt.PreviousEntryID,
		})
		if receipt.PreviousEntryID != 0 {
			message = "Vote changed!"
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   receipt.Entry,
		Message: message,
	})
}

// RemoveVote handles POST /api/remove-vote
func (h *VotingHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.EntryID == 0 || strings.TrimSpace(req.Category) == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("Entry ID and category are required"))
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	category := models.Category(req.Category)
	entry, err := h.votes.RemoveVote(ctx, req.EntryID, category)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	category, _ = models.ParseCategory(req.Category)
	h.hub.Publish(live.EventVoteChanged, voteChange{EntryID: entry.ID, Category: category, Votes: entry.Votes[category]})
	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   entry,
		Message: "Vote removed!",
	})
}

// RemoveVoterVote handles DELETE /api/voter-vote/{voterId}/{category}
func (h *VotingHandler) RemoveVoterVote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	if !gate(ctx, w, h.schedule, canVote) {
		return
	}

	category, err := models.ParseCategory(r.PathValue("category"))
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	entry, err := h.votes.RemoveVoterVote(ctx, r.PathValue("voterId"), category)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	h.hub.Publish(live.EventVoteChanged, voteChange{EntryID: entry.ID, Category: category, Votes: entry.Votes[category]})
	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   entry,
		Message: "Vote removed!",
	})
}

// GetVoterVotes handles GET /api/voter-votes/{voterId}
func (h *VotingHandler) GetVoterVotes(w http.ResponseWriter, r *http.Request) {
	voterID := strings.TrimSpace(r.PathValue("voterId"))
	if voterID == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("voterId is required"))
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	votes, err := h.votes.VoterVotes(ctx, voterID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.VoterVotesResponse{VoterID: voterID, Votes: votes})
}

// IssueVoterToken handles POST /api/voter-token
func (h *VotingHandler) IssueVoterToken(w http.ResponseWriter, r *http.Request) {
	token, err := auth.GenerateVoterToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to issue voter token")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.VoterTokenResponse{VoterID: token})
}

// ResetVotes handles POST /api/reset-votes
func (h *VotingHandler) ResetVotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	if err := h.votes.ResetAll(ctx); err != nil {
		middleware.DomainError(w, err)
		return
	}

	entries, err := h.entries.List(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	h.hub.Publish(live.EventVotesReset, nil)
	middleware.JSONResponse(w, http.StatusOK, models.EntriesResponse{
		Success: true,
		Entries: entries,
		Message: "All votes reset!",
	})
}

// ReconcileVotes handles POST /api/reconcile-votes
func (h *VotingHandler) ReconcileVotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	updated, err := h.votes.Reconcile(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ReconcileResponse{Success: true, Updated: updated})
}
