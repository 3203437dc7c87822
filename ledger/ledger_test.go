// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/models"
	"github.com/DadGPT/halloween/registry"
	"github.com/DadGPT/halloween/testutil"
)

func setup(t *testing.T) (*Ledger, *db.DB) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	return New(conn, nil), conn
}

// assertConsistent checks that every counter equals its vote rows and is >= 0.
func assertConsistent(t *testing.T, conn *db.DB, entryIDs ...int64) {
	t.Helper()
	for _, id := range entryIDs {
		for _, c := range models.Categories {
			count := testutil.VoteCount(t, conn, id, c)
			rows := testutil.VoteRows(t, conn, id, c)
			if count < 0 {
				t.Errorf("entry %d %s counter is negative: %d", id, c, count)
			}
			if count != rows {
				t.Errorf("entry %d %s counter = %d but %d vote rows", id, c, count, rows)
			}
		}
	}
}

func TestCastNewVote(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Dracula", models.TypeIndividual)

	r, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: id, Category: models.CategoryScary})
	if err != nil {
		t.Fatalf("Cast() error = %v", err)
	}
	if !r.Changed || r.PreviousEntryID != 0 {
		t.Errorf("Cast() receipt = %+v, want changed with no previous entry", r)
	}
	if r.Entry.Votes[models.CategoryScary] != 1 {
		t.Errorf("scary votes = %d, want 1", r.Entry.Votes[models.CategoryScary])
	}
	assertConsistent(t, conn, id)
}

func TestCastIsIdempotent(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Frankenstein", models.TypeIndividual)

	b := Ballot{VoterID: "alice", EntryID: id, Category: models.CategoryFunny}
	if _, err := l.Cast(ctx, b); err != nil {
		t.Fatal(err)
	}
	r, err := l.Cast(ctx, b)
	if err != nil {
		t.Fatalf("repeat Cast() error = %v", err)
	}
	if r.Changed {
		t.Error("repeat cast should report no change")
	}
	if got := testutil.VoteCount(t, conn, id, models.CategoryFunny); got != 1 {
		t.Errorf("counter after repeat = %d, want 1", got)
	}
	assertConsistent(t, conn, id)
}

func TestCastSwitchMovesExactlyOneVote(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	a := testutil.CreateTestEntry(t, conn, "A", models.TypeIndividual)
	b := testutil.CreateTestEntry(t, conn, "B", models.TypeIndividual)
	c := testutil.CreateTestEntry(t, conn, "C", models.TypeIndividual)

	// Background votes from other voters
	testutil.CastTestVote(t, conn, "bob", a, models.CategoryOverall)
	testutil.CastTestVote(t, conn, "carol", c, models.CategoryOverall)

	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: a, Category: models.CategoryOverall}); err != nil {
		t.Fatal(err)
	}
	total := func() int64 {
		return testutil.VoteCount(t, conn, a, models.CategoryOverall) +
			testutil.VoteCount(t, conn, b, models.CategoryOverall) +
			testutil.VoteCount(t, conn, c, models.CategoryOverall)
	}
	beforeA := testutil.VoteCount(t, conn, a, models.CategoryOverall)
	beforeB := testutil.VoteCount(t, conn, b, models.CategoryOverall)
	beforeTotal := total()

	r, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: b, Category: models.CategoryOverall})
	if err != nil {
		t.Fatalf("switch Cast() error = %v", err)
	}
	if r.PreviousEntryID != a {
		t.Errorf("PreviousEntryID = %d, want %d", r.PreviousEntryID, a)
	}

	if got := testutil.VoteCount(t, conn, a, models.CategoryOverall); got != beforeA-1 {
		t.Errorf("A = %d, want %d", got, beforeA-1)
	}
	if got := testutil.VoteCount(t, conn, b, models.CategoryOverall); got != beforeB+1 {
		t.Errorf("B = %d, want %d", got, beforeB+1)
	}
	if got := total(); got != beforeTotal {
		t.Errorf("category total = %d, want %d", got, beforeTotal)
	}
	assertConsistent(t, conn, a, b, c)
}

func TestCastValidation(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	individual := testutil.CreateTestEntry(t, conn, "Solo", models.TypeIndividual)

	tests := []struct {
		name    string
		ballot  Ballot
		wantErr error
	}{
		{"unknown category", Ballot{VoterID: "a", EntryID: individual, Category: "cutest"}, models.ErrInvalidCategory},
		{"missing entry id", Ballot{VoterID: "a", Category: models.CategoryFunny}, models.ErrMissingFields},
		{"unknown entry", Ballot{VoterID: "a", EntryID: 9999, Category: models.CategoryFunny}, models.ErrEntryNotFound},
		{"individual in couple", Ballot{VoterID: "a", EntryID: individual, Category: models.CategoryCouple}, models.ErrCategoryIneligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Cast(ctx, tt.ballot)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Cast() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	assertConsistent(t, conn, individual)
}

func TestGroupEligibilityExample(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	solo := testutil.CreateTestEntry(t, conn, "Solo", models.TypeIndividual)
	group := testutil.CreateTestEntry(t, conn, "Crew", models.TypeGroup)

	if _, err := l.Cast(ctx, Ballot{VoterID: "a", EntryID: group, Category: "group"}); err != nil {
		t.Errorf("group entry in group category: %v", err)
	}
	_, err := l.Cast(ctx, Ballot{VoterID: "b", EntryID: solo, Category: "group"})
	if !errors.Is(err, models.ErrCategoryIneligible) {
		t.Errorf("individual entry in group category: got %v, want CategoryIneligible", err)
	}

	if got := testutil.VoteCount(t, conn, group, models.CategoryCouple); got != 1 {
		t.Errorf("group entry couple votes = %d, want 1", got)
	}
	if got := testutil.VoteCount(t, conn, solo, models.CategoryCouple); got != 0 {
		t.Errorf("individual entry couple votes = %d, want 0", got)
	}
}

func TestCastExclusiveEntry(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	a := testutil.CreateTestEntry(t, conn, "A", models.TypeIndividual)
	b := testutil.CreateTestEntry(t, conn, "B", models.TypeIndividual)

	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: a, Category: models.CategoryFunny, ExclusiveEntry: true}); err != nil {
		t.Fatal(err)
	}

	_, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: a, Category: models.CategoryScary, ExclusiveEntry: true})
	if !errors.Is(err, models.ErrDuplicateEntryAcrossCategories) {
		t.Errorf("expected DuplicateEntryAcrossCategories, got %v", err)
	}

	// Same entry, same category stays a no-op
	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: a, Category: models.CategoryFunny, ExclusiveEntry: true}); err != nil {
		t.Errorf("repeat exclusive cast: %v", err)
	}
	// A different entry in another category is fine
	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: b, Category: models.CategoryScary, ExclusiveEntry: true}); err != nil {
		t.Errorf("different entry: %v", err)
	}
	// Without the restriction the same entry may take several categories
	if _, err := l.Cast(ctx, Ballot{VoterID: "bob", EntryID: a, Category: models.CategoryFunny}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Cast(ctx, Ballot{VoterID: "bob", EntryID: a, Category: models.CategoryScary}); err != nil {
		t.Errorf("non-exclusive multi-category cast: %v", err)
	}
	assertConsistent(t, conn, a, b)
}

func TestCastAnonymous(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Witch", models.TypeIndividual)

	r1, err := l.Cast(ctx, Ballot{EntryID: id, Category: models.CategoryOverall})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := l.Cast(ctx, Ballot{EntryID: id, Category: models.CategoryOverall})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r1.VoterID, AnonymousPrefix) || r1.VoterID == r2.VoterID {
		t.Errorf("anonymous voter ids = %q, %q; want distinct anon ids", r1.VoterID, r2.VoterID)
	}
	if got := testutil.VoteCount(t, conn, id, models.CategoryOverall); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}
	assertConsistent(t, conn, id)
}

func TestConcurrentVotesNoLostUpdate(t *testing.T) {
	l, conn := setup(t)
	id := testutil.CreateTestEntry(t, conn, "Werewolf", models.TypeIndividual)

	const voters = 2
	var wg sync.WaitGroup
	var failures atomic.Int32
	start := make(chan struct{})

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := l.Cast(context.Background(), Ballot{
				VoterID: fmt.Sprintf("voter-%d", n), EntryID: id, Category: models.CategoryScary,
			})
			if err != nil {
				failures.Add(1)
				t.Errorf("voter %d: %v", n, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d casts failed", failures.Load())
	}
	if got := testutil.VoteCount(t, conn, id, models.CategoryScary); got != voters {
		t.Errorf("counter = %d, want %d", got, voters)
	}
	assertConsistent(t, conn, id)
}

func TestConcurrentManyVotersAndSwitches(t *testing.T) {
	l, conn := setup(t)
	a := testutil.CreateTestEntry(t, conn, "A", models.TypeGroup)
	b := testutil.CreateTestEntry(t, conn, "B", models.TypeGroup)

	const voters = 20
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			voter := fmt.Sprintf("v%d", n)
			ctx := context.Background()
			if _, err := l.Cast(ctx, Ballot{VoterID: voter, EntryID: a, Category: models.CategoryCouple}); err != nil {
				t.Errorf("%s cast: %v", voter, err)
				return
			}
			if n%2 == 0 {
				if _, err := l.Cast(ctx, Ballot{VoterID: voter, EntryID: b, Category: models.CategoryCouple}); err != nil {
					t.Errorf("%s switch: %v", voter, err)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := testutil.VoteCount(t, conn, a, models.CategoryCouple); got != voters/2 {
		t.Errorf("A = %d, want %d", got, voters/2)
	}
	if got := testutil.VoteCount(t, conn, b, models.CategoryCouple); got != voters/2 {
		t.Errorf("B = %d, want %d", got, voters/2)
	}
	assertConsistent(t, conn, a, b)
}

func TestConcurrentExclusiveCastsSameEntry(t *testing.T) {
	l, conn := setup(t)
	id := testutil.CreateTestEntry(t, conn, "Headless Horseman", models.TypeIndividual)

	categories := []models.Category{models.CategoryFunny, models.CategoryScary, models.CategoryOverall}
	var wg sync.WaitGroup
	var accepted, duplicates atomic.Int32
	start := make(chan struct{})

	for _, c := range categories {
		wg.Add(1)
		go func(c models.Category) {
			defer wg.Done()
			<-start
			_, err := l.Cast(context.Background(), Ballot{VoterID: "ichabod", EntryID: id, Category: c, ExclusiveEntry: true})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, models.ErrDuplicateEntryAcrossCategories):
				duplicates.Add(1)
			default:
				t.Errorf("%s: %v", c, err)
			}
		}(c)
	}
	close(start)
	wg.Wait()

	if accepted.Load() != 1 || duplicates.Load() != int32(len(categories)-1) {
		t.Errorf("accepted = %d, duplicates = %d; want exactly one accepted", accepted.Load(), duplicates.Load())
	}
	votes, err := l.VoterVotes(context.Background(), "ichabod")
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 1 {
		t.Errorf("voter holds %d votes on one entry, want 1", len(votes))
	}
	assertConsistent(t, conn, id)
}

func TestConcurrentTypeChangeAndCoupleVote(t *testing.T) {
	l, conn := setup(t)
	reg := registry.New(conn, nil)
	individual := models.TypeIndividual

	for round := 0; round < 10; round++ {
		id := testutil.CreateTestEntry(t, conn, fmt.Sprintf("Duo %d", round), models.TypeGroup)

		var wg sync.WaitGroup
		var castErr, updateErr error
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, castErr = l.Cast(context.Background(), Ballot{VoterID: fmt.Sprintf("v%d", round), EntryID: id, Category: models.CategoryCouple})
		}()
		go func() {
			defer wg.Done()
			<-start
			_, updateErr = reg.Update(context.Background(), id, models.UpdateEntryRequest{Type: &individual})
		}()
		close(start)
		wg.Wait()

		// Exactly one side wins; an individual entry never holds a couple vote
		switch {
		case castErr == nil && updateErr == nil:
			t.Fatalf("round %d: both the couple vote and the type change succeeded", round)
		case castErr == nil:
			if !errors.Is(updateErr, models.ErrConflict) {
				t.Errorf("round %d: update error = %v, want conflict", round, updateErr)
			}
		case updateErr == nil:
			if !errors.Is(castErr, models.ErrCategoryIneligible) {
				t.Errorf("round %d: cast error = %v, want ineligible", round, castErr)
			}
		default:
			t.Errorf("round %d: cast = %v, update = %v", round, castErr, updateErr)
		}
		assertConsistent(t, conn, id)
	}
}

func TestRemoveVoterVote(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Ghoul", models.TypeIndividual)

	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: id, Category: models.CategoryScary}); err != nil {
		t.Fatal(err)
	}

	e, err := l.RemoveVoterVote(ctx, "alice", models.CategoryScary)
	if err != nil {
		t.Fatalf("RemoveVoterVote() error = %v", err)
	}
	if e.ID != id || e.Votes[models.CategoryScary] != 0 {
		t.Errorf("RemoveVoterVote() = %+v, want entry %d with 0 scary votes", e, id)
	}

	_, err = l.RemoveVoterVote(ctx, "alice", models.CategoryScary)
	if !errors.Is(err, models.ErrVoteNotFound) {
		t.Errorf("second removal: got %v, want VoteNotFound", err)
	}
	if _, err := l.RemoveVoterVote(ctx, "alice", "cutest"); !errors.Is(err, models.ErrInvalidCategory) {
		t.Errorf("unknown category: got %v, want InvalidCategory", err)
	}
	assertConsistent(t, conn, id)
}

func TestRemoveVoteNeverNegative(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Mummy", models.TypeIndividual)

	for i := 0; i < 3; i++ {
		e, err := l.RemoveVote(ctx, id, models.CategoryFunny)
		if err != nil {
			t.Fatalf("RemoveVote() on zero counter: %v", err)
		}
		if e.Votes[models.CategoryFunny] != 0 {
			t.Errorf("counter = %d, want 0", e.Votes[models.CategoryFunny])
		}
	}

	if _, err := l.RemoveVote(ctx, 9999, models.CategoryFunny); !errors.Is(err, models.ErrEntryNotFound) {
		t.Errorf("unknown entry: got %v, want EntryNotFound", err)
	}
	assertConsistent(t, conn, id)
}

func TestRemoveVotePrefersAnonymous(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Clown", models.TypeIndividual)

	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: id, Category: models.CategoryFunny}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Cast(ctx, Ballot{EntryID: id, Category: models.CategoryFunny}); err != nil {
		t.Fatal(err)
	}

	e, err := l.RemoveVote(ctx, id, models.CategoryFunny)
	if err != nil {
		t.Fatal(err)
	}
	if e.Votes[models.CategoryFunny] != 1 {
		t.Errorf("counter = %d, want 1", e.Votes[models.CategoryFunny])
	}

	votes, err := l.VoterVotes(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if votes[models.CategoryFunny] != id {
		t.Error("alice's identified vote should survive an anonymous correction")
	}
	assertConsistent(t, conn, id)
}

func TestResetAll(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	a := testutil.CreateTestEntry(t, conn, "A", models.TypeGroup)
	b := testutil.CreateTestEntry(t, conn, "B", models.TypeIndividual)

	for i, c := range models.Categories {
		voter := fmt.Sprintf("v%d", i)
		if _, err := l.Cast(ctx, Ballot{VoterID: voter, EntryID: a, Category: c}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.Cast(ctx, Ballot{VoterID: "x", EntryID: b, Category: models.CategoryScary}); err != nil {
		t.Fatal(err)
	}

	if err := l.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}

	for _, id := range []int64{a, b} {
		for _, c := range models.Categories {
			if got := testutil.VoteCount(t, conn, id, c); got != 0 {
				t.Errorf("entry %d %s = %d after reset, want 0", id, c, got)
			}
		}
	}
	votes, err := l.VoterVotes(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 0 {
		t.Errorf("voter records should be cleared, got %v", votes)
	}

	// A voter may vote again after a reset
	if _, err := l.Cast(ctx, Ballot{VoterID: "x", EntryID: b, Category: models.CategoryScary}); err != nil {
		t.Errorf("cast after reset: %v", err)
	}
	assertConsistent(t, conn, a, b)
}

func TestReconcile(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	id := testutil.CreateTestEntry(t, conn, "Pirate", models.TypeIndividual)
	testutil.CastTestVote(t, conn, "alice", id, models.CategoryOverall)

	// Corrupt the counter directly
	if _, err := conn.ExecContext(ctx, `UPDATE vote_count SET count = 7 WHERE entry_id = ? AND category = ?`,
		id, string(models.CategoryOverall)); err != nil {
		t.Fatal(err)
	}

	fixed, err := l.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if fixed != 1 {
		t.Errorf("Reconcile() fixed %d counters, want 1", fixed)
	}
	assertConsistent(t, conn, id)

	fixed, err = l.Reconcile(ctx)
	if err != nil || fixed != 0 {
		t.Errorf("second Reconcile() = %d, %v; want 0, nil", fixed, err)
	}
}

func TestVoterVotes(t *testing.T) {
	l, conn := setup(t)
	ctx := context.Background()
	a := testutil.CreateTestEntry(t, conn, "A", models.TypeGroup)
	b := testutil.CreateTestEntry(t, conn, "B", models.TypeIndividual)

	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: a, Category: models.CategoryCouple}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Cast(ctx, Ballot{VoterID: "alice", EntryID: b, Category: models.CategoryScary}); err != nil {
		t.Fatal(err)
	}

	votes, err := l.VoterVotes(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	want := map[models.Category]int64{models.CategoryCouple: a, models.CategoryScary: b}
	if len(votes) != len(want) {
		t.Fatalf("VoterVotes() = %v, want %v", votes, want)
	}
	for c, id := range want {
		if votes[c] != id {
			t.Errorf("votes[%s] = %d, want %d", c, votes[c], id)
		}
	}

	empty, err := l.VoterVotes(ctx, "")
	if err != nil || len(empty) != 0 {
		t.Errorf("VoterVotes(\"\") = %v, %v", empty, err)
	}
}
