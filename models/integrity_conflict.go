package models

import "time"

// IntegrityConflict records a dispute correction that could not be applied
// automatically because a downstream match had already started or finished
// under the old result. Conflicts are never auto-resolved; they sit in the
// organizer review queue until acknowledged.
type IntegrityConflict struct {
	ID                int        `json:"id" db:"id"`
	TournamentID      int        `json:"tournament_id" db:"tournament_id"`
	MatchID           int        `json:"match_id" db:"match_id"`
	DownstreamMatchID *int       `json:"downstream_match_id,omitempty" db:"downstream_match_id"`
	Revision          int        `json:"revision" db:"revision"`
	Detail            string     `json:"detail" db:"detail"`
	Resolved          bool       `json:"resolved" db:"resolved"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
