package models

import "time"

// RatingRecord is the current skill rating of one account in one game.
// MatchesPlayed drives the placement K-factor.
type RatingRecord struct {
	ID            int       `json:"id" db:"id"`
	AccountRef    string    `json:"account_ref" db:"account_ref"`
	Game          string    `json:"game" db:"game"`
	Rating        float64   `json:"rating" db:"rating"`
	MatchesPlayed int       `json:"matches_played" db:"matches_played"`
	LastMatchID   *int      `json:"last_match_id,omitempty" db:"last_match_id"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// RatingSnapshot is one append-only history row: the before/after rating of
// one account for one (match, revision). Re-delivered completion events
// are detected by the unique (match_id, revision, account_ref) key;
// a revision bump reverses the prior snapshot's delta before applying the
// new one.
type RatingSnapshot struct {
	ID           int       `json:"id" db:"id"`
	MatchID      int       `json:"match_id" db:"match_id"`
	Revision     int       `json:"revision" db:"revision"`
	AccountRef   string    `json:"account_ref" db:"account_ref"`
	Game         string    `json:"game" db:"game"`
	RatingBefore float64   `json:"rating_before" db:"rating_before"`
	RatingAfter  float64   `json:"rating_after" db:"rating_after"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (s RatingSnapshot) Delta() float64 {
	return s.RatingAfter - s.RatingBefore
}
