// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/timing"
)

type TimingHandler struct {
	schedule *timing.Store
	hub      *live.Hub
	cfg      cliparse.Config
}

func NewTimingHandler(schedule *timing.Store, hub *live.Hub, cfg cliparse.Config) *TimingHandler {
	return &TimingHandler{schedule: schedule, hub: hub, cfg: cfg}
}

// GetTimingStatus handles GET /api/timing-status
func (h *TimingHandler) GetTimingStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	settings, status, err := h.schedule.Status(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TimingStatusResponse{
		Settings:     settings,
		CurrentPhase: status,
		ServerTime:   h.schedule.Now(),
	})
}

// UpdateTimingSettings handles POST /api/timing-settings
// Fields left out of the body keep their stored values.
func (h *TimingHandler) UpdateTimingSettings(w http.ResponseWriter, r *http.Request) {
	var patch timing.SettingsPatch
	if err := middleware.ParseJSONBody(r, &patch); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	current, err := h.schedule.Get(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	next, err := patch.Apply(current)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	saved, err := h.schedule.Update(ctx, next)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	now := h.schedule.Now()
	resp := models.TimingStatusResponse{
		Success:      true,
		Settings:     saved,
		CurrentPhase: timing.Resolve(saved, now),
		ServerTime:   now,
	}
	h.hub.Publish(live.EventTimingUpdated, resp)
	middleware.JSONResponse(w, http.StatusOK, resp)
}
