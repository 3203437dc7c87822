// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DadGPT/halloween/blob"
	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/ledger"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/results"
	"github.com/DadGPT/halloween/testutil"
	"github.com/DadGPT/halloween/timing"
)

// testEnv wires every handler to one in-memory database.
type testEnv struct {
	conn     *db.DB
	cfg      cliparse.Config
	entries  *registry.Registry
	votes    *ledger.Ledger
	schedule *timing.Store
	blobs    blob.Store

	entryHandler   *EntryHandler
	votingHandler  *VotingHandler
	resultsHandler *ResultsHandler
	timingHandler  *TimingHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testutil.GetTestConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg cliparse.Config) *testEnv {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	hub := live.NewHub()
	env := &testEnv{
		conn:     conn,
		cfg:      cfg,
		entries:  registry.New(conn, nil),
		votes:    ledger.New(conn, nil),
		schedule: timing.NewStore(conn, nil, cfg.Timezone),
		blobs:    blob.NewDBStore(conn),
	}
	env.entryHandler = NewEntryHandler(env.entries, env.schedule, env.blobs, hub, cfg)
	env.votingHandler = NewVotingHandler(env.votes, env.entries, env.schedule, hub, cfg)
	env.resultsHandler = NewResultsHandler(results.NewAggregator(env.entries), cfg)
	env.timingHandler = NewTimingHandler(env.schedule, hub, cfg)
	return env
}

// votingOpenSchedule returns an enabled schedule whose window contains now.
func votingOpenSchedule() models.Schedule {
	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)
	return models.Schedule{Enabled: true, VotingStart: &start, VotingEnd: &end}
}

func (env *testEnv) vote(t *testing.T, voterID string, entryID int64, category string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeRequest("POST", "/api/vote", models.VoteRequest{
		EntryID:  entryID,
		Category: category,
		VoterID:  voterID,
	}, nil)
	w := httptest.NewRecorder()
	env.votingHandler.Vote(w, req)
	return w
}

func (env *testEnv) get(handler http.HandlerFunc, path string, pathValues map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}
