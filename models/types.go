package models

import (
	"strings"
	"time"
)

// Entry types
const (
	TypeIndividual = "individual"
	TypeGroup      = "group"

	// legacy spelling used by older clients for group entries
	typeCoupleAlias = "couple"
)

// Category identifiers
type Category string

const (
	CategoryCouple  Category = "couple"
	CategoryFunny   Category = "funny"
	CategoryScary   Category = "scary"
	CategoryOverall Category = "overall"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryCouple, CategoryFunny, CategoryScary, CategoryOverall}

var categoryNames = map[Category]string{
	CategoryCouple:  "Best Couple/Group",
	CategoryFunny:   "Funniest",
	CategoryScary:   "Scariest",
	CategoryOverall: "Best Overall",
}

// ParseCategory maps a client supplied category to a known Category.
// "group" is accepted as another name for the couple category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "group" {
		return CategoryCouple, nil
	}
	if _, ok := categoryNames[c]; !ok {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// DisplayName returns the human readable category title.
func (c Category) DisplayName() string {
	return categoryNames[c]
}

// Accepts reports whether an entry of the given type may receive votes in c.
func (c Category) Accepts(entryType string) bool {
	if c == CategoryCouple {
		return entryType == TypeGroup
	}
	return true
}

// NormalizeEntryType returns the canonical entry type, or false if unknown.
// An empty value defaults to individual.
func NormalizeEntryType(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", TypeIndividual:
		return TypeIndividual, true
	case TypeGroup, typeCoupleAlias:
		return TypeGroup, true
	}
	return "", false
}

// Contest phases
type Phase string

const (
	PhaseDisabled Phase = "disabled"
	PhasePreshow  Phase = "preshow"
	PhaseVoting   Phase = "voting"
	PhaseClosed   Phase = "closed"
	PhaseResults  Phase = "results"
)

// Request types

type VoteRequest struct {
	EntryID  int64  `json:"entryId"`
	Category string `json:"category"`
	VoterID  string `json:"voterId,omitempty"`
}

type RemoveVoteRequest struct {
	EntryID  int64  `json:"entryId"`
	Category string `json:"category"`
}

// UpdateEntryRequest is a partial update; nil fields are left unchanged.
type UpdateEntryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	SubmitterID *string `json:"submitterId"`
}

// Response types

type EntryResponse struct {
	Success bool   `json:"success"`
	Entry   Entry  `json:"entry"`
	Message string `json:"message,omitempty"`
}

type EntriesResponse struct {
	Success bool    `json:"success"`
	Entries []Entry `json:"entries"`
	Message string  `json:"message,omitempty"`
}

type DeleteAllResponse struct {
	Success bool   `json:"success"`
	Deleted int64  `json:"deleted"`
	Message string `json:"message"`
}

type ReconcileResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

type VoterVotesResponse struct {
	VoterID string             `json:"voterId"`
	Votes   map[Category]int64 `json:"votes"`
}

type VoterTokenResponse struct {
	VoterID string `json:"voterId"`
}

type PhaseStatus struct {
	Phase     Phase  `json:"phase"`
	CanVote   bool   `json:"canVote"`
	CanUpload bool   `json:"canUpload"`
	Message   string `json:"message"`
}

type TimingStatusResponse struct {
	Success      bool        `json:"success,omitempty"`
	Settings     Schedule    `json:"settings"`
	CurrentPhase PhaseStatus `json:"currentPhase"`
	ServerTime   time.Time   `json:"serverTime"`
}

// Domain types

type Entry struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Type         string             `json:"type"`
	ImageURL     string             `json:"image_url"`
	ThumbnailURL string             `json:"thumbnail_url,omitempty"`
	SubmitterID  string             `json:"submitter_id,omitempty"`
	CreatedAt    time.Time          `json:"uploaded_at"`
	Votes        map[Category]int64 `json:"votes"`
}

// ZeroVotes returns a vote map holding every known category at zero.
func ZeroVotes() map[Category]int64 {
	votes := make(map[Category]int64, len(Categories))
	for _, c := range Categories {
		votes[c] = 0
	}
	return votes
}

// Schedule is the singleton contest timing configuration.
// All instants are stored in UTC.
type Schedule struct {
	Enabled        bool       `json:"enabled"`
	VotingStart    *time.Time `json:"votingStart,omitempty"`
	VotingEnd      *time.Time `json:"votingEnd,omitempty"`
	ResultsAt      *time.Time `json:"resultsTime,omitempty"`
	ManualOverride Phase      `json:"manualOverride,omitempty"`
	Timezone       string     `json:"timezone"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Results types

type Standing struct {
	Rank         int    `json:"rank"`
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Votes        int64  `json:"votes"`
}

type CategoryStats struct {
	Category   Category   `json:"category"`
	Name       string     `json:"name"`
	TotalVotes int64      `json:"totalVotes"`
	Entries    []Standing `json:"entries"`
}

type VoteStatistics struct {
	Categories      []CategoryStats `json:"categories"`
	TotalEntries    int             `json:"totalEntries"`
	GrandTotalVotes int64           `json:"grandTotalVotes"`
}

// Live events

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Phase   Phase  `json:"phase,omitempty"`
}
