package models

import "time"

// Bracket is the published pairing structure of one tournament run.
// A published bracket is immutable: regeneration creates a new bracket and
// marks the old one superseded.
type Bracket struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	Format       BracketFormat `json:"format" db:"format"`
	Published    bool          `json:"published" db:"published"`
	SupersededBy *int          `json:"superseded_by,omitempty" db:"superseded_by"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// BracketView is the serializable round-grouped projection served to
// presentation layers and audit tooling.
type BracketView struct {
	BracketID    int           `json:"bracket_id"`
	TournamentID int           `json:"tournament_id"`
	Format       BracketFormat `json:"format"`
	Sides        []SideView    `json:"sides"`
}

type SideView struct {
	Side   BracketSide `json:"side"`
	Rounds []RoundView `json:"rounds"`
}

type RoundView struct {
	Round   int     `json:"round"`
	Matches []Match `json:"matches"`
}
