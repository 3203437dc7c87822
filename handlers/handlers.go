// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/timing"
)

const defaultStoreTimeout = 5 * time.Second

// storeContext bounds the store calls made while serving r.
func storeContext(r *http.Request, cfg cliparse.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

// pathID reads a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.ErrEntryNotFound.WithMessage("entry %q not found", r.PathValue(name))
	}
	return id, nil
}

// gate resolves the current phase and answers 403 when allowed rejects it.
// It reports whether the request may continue.
func gate(ctx context.Context, w http.ResponseWriter, schedule *timing.Store, allowed func(models.PhaseStatus) bool) bool {
	_, status, err := schedule.Status(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return false
	}
	if !allowed(status) {
		middleware.PhaseForbidden(w, status)
		return false
	}
	return true
}

func canVote(s models.PhaseStatus) bool   { return s.CanVote }
func canUpload(s models.PhaseStatus) bool { return s.CanUpload }
