package models

import "time"

type DisputeStatus string

const (
	DisputeOpened      DisputeStatus = "opened"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
)

type DisputeResolution string

const (
	// ResolutionAccept takes the filer's claimed result.
	ResolutionAccept DisputeResolution = "accept"
	// ResolutionOverride installs a score/winner set by the resolver.
	ResolutionOverride DisputeResolution = "override"
	// ResolutionReject dismisses the dispute, the original result stands.
	ResolutionReject DisputeResolution = "reject"
)

// Dispute contests the result of one match. Resolving it may rewrite the
// match's winner and score, which bumps the match revision and re-triggers
// progression.
type Dispute struct {
	ID                 int           `json:"id" db:"id"`
	MatchID            int           `json:"match_id" db:"match_id"`
	TournamentID       int           `json:"tournament_id" db:"tournament_id"`
	FilerParticipantID int           `json:"filer_participant_id" db:"filer_participant_id"`
	Claim              string        `json:"claim" db:"claim"`
	EvidenceKey        *string       `json:"evidence_key,omitempty" db:"evidence_key"`
	Status             DisputeStatus `json:"status" db:"status"`

	// The filer's claimed outcome, applied on ResolutionAccept.
	ClaimedWinnerID *int `json:"claimed_winner_id,omitempty" db:"claimed_winner_id"`
	ClaimedScoreA   *int `json:"claimed_score_a,omitempty" db:"claimed_score_a"`
	ClaimedScoreB   *int `json:"claimed_score_b,omitempty" db:"claimed_score_b"`

	Resolution  *DisputeResolution `json:"resolution,omitempty" db:"resolution"`
	ResolverRef *string            `json:"resolver_ref,omitempty" db:"resolver_ref"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty" db:"resolved_at"`
}
