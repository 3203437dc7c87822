// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// Each call gets its own database, closed when the test ends.
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	url := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := db.Open(context.Background(), db.SQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.CreateSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3000,
		DatabaseURL:    "file::memory:",
		DatabaseType:   "sqlite",
		Environment:    cliparse.EnvDevelopment,
		IPHashSalt:     "test-ip-salt",
		UploadDir:      "",
		BlobBackend:    cliparse.BlobBackendDB,
		Timezone:       "UTC",
		StoreTimeout:   5 * time.Second,
		MaxUploadBytes: cliparse.DefaultMaxUploadBytes,
	}
}

// CreateTestEntry inserts an entry with zeroed counters and returns its ID.
// entryType should be "individual" or "group".
func CreateTestEntry(t *testing.T, conn *db.DB, name, entryType string) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := conn.QueryRowContext(ctx, `
		INSERT INTO entry (name, description, type, image_url, created_at)
		VALUES (?, 'A test costume', ?, '/uploads/test.png', ?)
		RETURNING id
	`, name, entryType, time.Now().UTC()).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test entry: %v", err)
	}

	for _, c := range models.Categories {
		if _, err := conn.ExecContext(ctx, `INSERT INTO vote_count (entry_id, category, count) VALUES (?, ?, 0)`, id, string(c)); err != nil {
			t.Fatalf("Failed to create test counter: %v", err)
		}
	}
	return id
}

// CastTestVote records a vote row and bumps the matching counter.
func CastTestVote(t *testing.T, conn *db.DB, voterID string, entryID int64, category models.Category) {
	t.Helper()
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO voter_vote (voter_id, category, entry_id, cast_at) VALUES (?, ?, ?, ?)
	`, voterID, string(category), entryID, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `
		UPDATE vote_count SET count = count + 1 WHERE entry_id = ? AND category = ?
	`, entryID, string(category)); err != nil {
		t.Fatalf("Failed to bump test counter: %v", err)
	}
}

// VoteCount reads a single counter.
func VoteCount(t *testing.T, conn *db.DB, entryID int64, category models.Category) int64 {
	t.Helper()
	var n int64
	err := conn.QueryRowContext(context.Background(), `
		SELECT count FROM vote_count WHERE entry_id = ? AND category = ?
	`, entryID, string(category)).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	return n
}

// VoteRows counts voter_vote rows pointing at an entry in a category.
func VoteRows(t *testing.T, conn *db.DB, entryID int64, category models.Category) int64 {
	t.Helper()
	var n int64
	err := conn.QueryRowContext(context.Background(), `
		SELECT COUNT(*) FROM voter_vote WHERE entry_id = ? AND category = ?
	`, entryID, string(category)).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count vote rows: %v", err)
	}
	return n
}

// SetTestSchedule writes the schedule row directly, bypassing validation.
func SetTestSchedule(t *testing.T, conn *db.DB, s models.Schedule) {
	t.Helper()
	_, err := conn.ExecContext(context.Background(), `
		INSERT INTO schedule (id, enabled, voting_start, voting_end, results_at, manual_override, timezone, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, 'UTC', ?)
		ON CONFLICT (id) DO UPDATE SET
			enabled = excluded.enabled,
			voting_start = excluded.voting_start,
			voting_end = excluded.voting_end,
			results_at = excluded.results_at,
			manual_override = excluded.manual_override,
			updated_at = excluded.updated_at
	`, s.Enabled, s.VotingStart, s.VotingEnd, s.ResultsAt, string(s.ManualOverride), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to set test schedule: %v", err)
	}
}

// ClosedSchedule returns an enabled schedule whose voting window has ended.
func ClosedSchedule() models.Schedule {
	start := time.Now().UTC().Add(-2 * time.Hour)
	end := start.Add(time.Hour)
	return models.Schedule{Enabled: true, VotingStart: &start, VotingEnd: &end}
}

// PreshowSchedule returns an enabled schedule whose voting window has not started.
func PreshowSchedule() models.Schedule {
	start := time.Now().UTC().Add(time.Hour)
	end := start.Add(time.Hour)
	return models.Schedule{Enabled: true, VotingStart: &start, VotingEnd: &end}
}

// TestPNG encodes a solid w×h PNG.
func TestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 255, G: 117, B: 24, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// PNGHeader returns a PNG signature and IHDR chunk declaring a w×h
// grayscale image with no pixel data. Decoders read the size without
// allocating the image.
func PNGHeader(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // 8-bit grayscale

	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

// MakeUploadRequest builds a multipart POST with the given form fields and
// an optional file under fileField.
func MakeUploadRequest(t *testing.T, path string, fields map[string]string, fileField, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
