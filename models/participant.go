package models

import "time"

// Participant is a confirmed, seed-ranked entry handed over by the
// registration system. DisplayRef and AccountRef are opaque references to
// identities and wallet accounts owned elsewhere.
type Participant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Seed         int       `json:"seed" db:"seed"`
	DisplayRef   string    `json:"display_ref" db:"display_ref"`
	AccountRef   string    `json:"account_ref" db:"account_ref"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
