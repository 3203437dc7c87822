// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/DadGPT/halloween/blob"
	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/media"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/timing"
)

// UploadsPrefix is the URL prefix under which stored images are served.
const UploadsPrefix = "/uploads/"

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

type EntryHandler struct {
	entries  *registry.Registry
	schedule *timing.Store
	blobs    blob.Store
	hub      *live.Hub
	cfg      cliparse.Config
}

func NewEntryHandler(entries *registry.Registry, schedule *timing.Store, blobs blob.Store, hub *live.Hub, cfg cliparse.Config) *EntryHandler {
	return &EntryHandler{entries: entries, schedule: schedule, blobs: blobs, hub: hub, cfg: cfg}
}

// ListEntries handles GET /api/entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	entries, err := h.entries.List(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entries)
}

// GetEntry handles GET /api/entries/{id}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	entry, err := h.entries.Get(ctx, id)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry)
}

// GetMyEntry handles GET /api/my-entry/{submitterId}
func (h *EntryHandler) GetMyEntry(w http.ResponseWriter, r *http.Request) {
	submitterID := strings.TrimSpace(r.PathValue("submitterId"))
	if submitterID == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("submitterId is required"))
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	entry, found, err := h.entries.FindBySubmitter(ctx, submitterID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	if !found {
		middleware.DomainError(w, models.ErrEntryNotFound.WithMessage("no entry uploaded from this device yet"))
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry)
}

// Upload handles POST /api/upload
func (h *EntryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	if !gate(ctx, w, h.schedule, canUpload) {
		return
	}

	maxBytes := h.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = cliparse.DefaultMaxUploadBytes
	}
	tooLarge := models.ErrFileTooLarge.WithMessage("File too large. Maximum size is %s.", humanize.IBytes(uint64(maxBytes)))

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			middleware.DomainError(w, tooLarge)
			return
		}
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		file, _, err = r.FormFile("image")
	}
	if err != nil {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("No file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if int64(len(data)) > maxBytes {
		middleware.DomainError(w, tooLarge)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		middleware.DomainError(w, models.ErrMissingFields.WithMessage("Name is required"))
		return
	}
	entryType, ok := models.NormalizeEntryType(r.FormValue("type"))
	if !ok {
		middleware.DomainError(w, models.ErrInvalidEntryType)
		return
	}

	info, err := media.Inspect(data)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	// Image first, entry second: an entry never points at a missing image.
	key := uuid.NewString() + info.Extension
	if err := h.blobs.Save(ctx, key, data, info.ContentType); err != nil {
		middleware.DomainError(w, err)
		return
	}
	stored := []string{key}

	var thumbURL string
	thumb, err := media.Thumbnail(data)
	switch {
	case err == nil:
		thumbKey := strings.TrimSuffix(key, info.Extension) + "-thumb.jpg"
		if err := h.blobs.Save(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
			slog.Warn("failed to store thumbnail", "key", thumbKey, "error", err)
		} else {
			stored = append(stored, thumbKey)
			thumbURL = UploadsPrefix + thumbKey
		}
	case errors.Is(err, media.ErrUndecodable):
		slog.Info("skipping thumbnail", "key", key, "content_type", info.ContentType)
	default:
		slog.Warn("thumbnail failed", "key", key, "error", err)
	}

	entry, err := h.entries.Create(ctx, registry.NewEntry{
		Name:         name,
		Description:  r.FormValue("description"),
		Type:         entryType,
		ImageURL:     UploadsPrefix + key,
		ThumbnailURL: thumbURL,
		SubmitterID:  r.FormValue("submitterId"),
	})
	if err != nil {
		h.release(stored...)
		middleware.DomainError(w, err)
		return
	}

	slog.Info("photo uploaded",
		"entry_id", entry.ID,
		"key", key,
		"size", humanize.Bytes(uint64(len(data))),
	)
	h.hub.Publish(live.EventEntryCreated, entry)

	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   entry,
		Message: "Photo uploaded successfully!",
	})
}

// UpdateEntry handles PUT /api/entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, formOverhead))
	r.Body.Close()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	for _, immutable := range []string{"id", "votes"} {
		if _, ok := fields[immutable]; ok {
			middleware.DomainError(w, models.ErrImmutableField.WithMessage("%s cannot be changed", immutable))
			return
		}
	}

	var patch models.UpdateEntryRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&patch); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	entry, err := h.entries.Update(ctx, id, patch)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	h.hub.Publish(live.EventEntryUpdated, entry)
	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   entry,
		Message: "Entry updated",
	})
}

// DeleteEntry handles DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	entry, err := h.entries.Delete(ctx, id)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	h.release(imageKeys(entry)...)

	h.hub.Publish(live.EventEntryDeleted, map[string]int64{"id": entry.ID})
	middleware.JSONResponse(w, http.StatusOK, models.EntryResponse{
		Success: true,
		Entry:   entry,
		Message: fmt.Sprintf("Deleted %s", entry.Name),
	})
}

// DeleteAllEntries handles DELETE /api/entries
func (h *EntryHandler) DeleteAllEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	removed, err := h.entries.DeleteAll(ctx)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	for _, e := range removed {
		h.release(imageKeys(e)...)
	}

	h.hub.Publish(live.EventEntriesClear, nil)
	middleware.JSONResponse(w, http.StatusOK, models.DeleteAllResponse{
		Success: true,
		Deleted: int64(len(removed)),
		Message: fmt.Sprintf("Deleted %d entries", len(removed)),
	})
}

// ServeImage handles GET /uploads/{key}
func (h *EntryHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r, h.cfg)
	defer cancel()

	obj, err := h.blobs.Load(ctx, r.PathValue("key"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
			http.NotFound(w, r)
			return
		}
		middleware.DomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		slog.Warn("failed to write image", "key", r.PathValue("key"), "error", err)
	}
}

// release deletes stored images. Failures only leave orphaned bytes, so
// they are logged and otherwise ignored.
func (h *EntryHandler) release(keys ...string) {
	for _, key := range keys {
		ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
		if err := h.blobs.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete image", "key", key, "error", err)
		}
		cancel()
	}
}

// imageKeys returns the blob keys of images served from this process.
func imageKeys(e models.Entry) []string {
	var keys []string
	for _, url := range []string{e.ImageURL, e.ThumbnailURL} {
		if key, ok := strings.CutPrefix(url, UploadsPrefix); ok && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
