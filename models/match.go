package models

import "time"

// MatchStatus mirrors the match_status ENUM in the database.
type MatchStatus string

const (
	// MatchPending is the pre-state of a node whose feeder matches have
	// not both resolved yet. The state machine proper starts at scheduled.
	MatchPending              MatchStatus = "pending"
	MatchScheduled            MatchStatus = "scheduled"
	MatchCheckedIn            MatchStatus = "checked_in"
	MatchLive                 MatchStatus = "live"
	MatchAwaitingConfirmation MatchStatus = "awaiting_confirmation"
	MatchDisputed             MatchStatus = "disputed"
	MatchCompleted            MatchStatus = "completed"
	MatchForfeited            MatchStatus = "forfeited"
	MatchCancelled            MatchStatus = "cancelled"
)

// Terminal reports whether the match can no longer change outcome on its
// own. A completed match can still be re-opened by a dispute.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchForfeited || s == MatchCancelled
}

// BracketSide places a node in the bracket graph.
type BracketSide string

const (
	SideWinners     BracketSide = "winners"
	SideLosers      BracketSide = "losers"
	SideFinals      BracketSide = "finals"
	SideConsolation BracketSide = "consolation"
)

// Match is a single bracket node. Participant slots stay nil until the
// feeder matches resolve (elimination) or are set at generation time
// (round robin, swiss). Revision counts published results: it is bumped
// every time a dispute rewrites the outcome. Version is the optimistic
// concurrency token guarding every mutation.
type Match struct {
	ID           int         `json:"id" db:"id"`
	BracketID    int         `json:"bracket_id" db:"bracket_id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	UID          string      `json:"uid" db:"uid"`
	Side         BracketSide `json:"side" db:"side"`
	Round        int         `json:"round" db:"round"`
	Slot         int         `json:"slot" db:"slot"`

	P1ParticipantID *int `json:"p1_participant_id,omitempty" db:"p1_participant_id"`
	P2ParticipantID *int `json:"p2_participant_id,omitempty" db:"p2_participant_id"`

	// Feeder links, for audit and for re-deriving corrections.
	P1SourceMatchID *int `json:"p1_source_match_id,omitempty" db:"p1_source_match_id"`
	P2SourceMatchID *int `json:"p2_source_match_id,omitempty" db:"p2_source_match_id"`

	// Successor links populated at bracket persist time.
	WinnerNextMatchID *int `json:"winner_next_match_id,omitempty" db:"winner_next_match_id"`
	WinnerNextSlot    *int `json:"winner_next_slot,omitempty" db:"winner_next_slot"`
	LoserNextMatchID  *int `json:"loser_next_match_id,omitempty" db:"loser_next_match_id"`
	LoserNextSlot     *int `json:"loser_next_slot,omitempty" db:"loser_next_slot"`

	Status              MatchStatus `json:"status" db:"status"`
	IsBye               bool        `json:"is_bye" db:"is_bye"`
	ScoreA              *int        `json:"score_a,omitempty" db:"score_a"`
	ScoreB              *int        `json:"score_b,omitempty" db:"score_b"`
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	Forfeit             bool        `json:"forfeit" db:"forfeit"`
	EvidenceKey         *string     `json:"evidence_key,omitempty" db:"evidence_key"`

	// ReportedBy holds the participant whose submission is awaiting the
	// opponent's confirmation.
	ReportedBy *int `json:"reported_by,omitempty" db:"reported_by"`

	P1CheckedIn bool `json:"p1_checked_in" db:"p1_checked_in"`
	P2CheckedIn bool `json:"p2_checked_in" db:"p2_checked_in"`

	CheckInDeadline *time.Time `json:"check_in_deadline,omitempty" db:"check_in_deadline"`
	ConfirmDeadline *time.Time `json:"confirm_deadline,omitempty" db:"confirm_deadline"`

	Revision int `json:"revision" db:"revision"`
	Version  int `json:"-" db:"version"`

	// ProgressedRevision is the last result revision the progression
	// engine has applied downstream. It makes event handling idempotent.
	ProgressedRevision int `json:"-" db:"progressed_revision"`

	DisputeID *int `json:"dispute_id,omitempty" db:"dispute_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SlotOf returns 1 or 2 for the given participant, 0 if they do not play
// in this match.
func (m *Match) SlotOf(participantID int) int {
	if m.P1ParticipantID != nil && *m.P1ParticipantID == participantID {
		return 1
	}
	if m.P2ParticipantID != nil && *m.P2ParticipantID == participantID {
		return 2
	}
	return 0
}

// OpponentOf returns the other participant, if populated.
func (m *Match) OpponentOf(participantID int) *int {
	switch m.SlotOf(participantID) {
	case 1:
		return m.P2ParticipantID
	case 2:
		return m.P1ParticipantID
	}
	return nil
}

// LoserParticipantID derives the loser from the recorded winner.
func (m *Match) LoserParticipantID() *int {
	if m.WinnerParticipantID == nil {
		return nil
	}
	return m.OpponentOf(*m.WinnerParticipantID)
}
