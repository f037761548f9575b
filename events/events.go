package events

import "time"

// Subjects published by the tournament core. External consumers
// (notifications, rating viewers, dashboards) subscribe by subject.
const (
	MatchScheduledSubject      = "match.scheduled"
	MatchCompletedSubject      = "match.completed"
	TournamentCompletedSubject = "tournament.completed"
	TournamentCancelledSubject = "tournament.cancelled"
	DisputeOpenedSubject       = "dispute.opened"
	DisputeResolvedSubject     = "dispute.resolved"
	PrizeDistributedSubject    = "prize.distributed"
)

// Event is the envelope every subject is published under. ID is unique per
// publication; consumers deduplicate on payload identity (for match
// completions that is the (match id, revision) pair), not on envelope id,
// because delivery is at-least-once.
type Event struct {
	ID           string      `json:"id"`
	Subject      string      `json:"subject"`
	TournamentID int         `json:"tournament_id"`
	Payload      interface{} `json:"payload"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

type MatchScheduledPayload struct {
	MatchID         int    `json:"match_id"`
	UID             string `json:"uid"`
	Round           int    `json:"round"`
	P1ParticipantID *int   `json:"p1_participant_id,omitempty"`
	P2ParticipantID *int   `json:"p2_participant_id,omitempty"`
}

type MatchCompletedPayload struct {
	MatchID             int  `json:"match_id"`
	Revision            int  `json:"revision"`
	WinnerParticipantID int  `json:"winner_participant_id"`
	LoserParticipantID  *int `json:"loser_participant_id,omitempty"`
	ScoreA              int  `json:"score_a"`
	ScoreB              int  `json:"score_b"`
	Forfeit             bool `json:"forfeit"`
}

type TournamentCompletedPayload struct {
	WinnerParticipantID *int `json:"winner_participant_id,omitempty"`
}

type TournamentCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}

type DisputeOpenedPayload struct {
	DisputeID          int `json:"dispute_id"`
	MatchID            int `json:"match_id"`
	FilerParticipantID int `json:"filer_participant_id"`
}

type DisputeResolvedPayload struct {
	DisputeID  int    `json:"dispute_id"`
	MatchID    int    `json:"match_id"`
	Resolution string `json:"resolution"`
	Revision   int    `json:"revision"`
}

type PrizeDistributedPayload struct {
	Placement        int    `json:"placement"`
	RecipientAccount string `json:"recipient_account"`
	Amount           int64  `json:"amount"`
	Kind             string `json:"kind"`
}
