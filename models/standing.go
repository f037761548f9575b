package models

import "time"

// Standing is one row of the round-robin or swiss table, recomputed after
// every match completion. Buchholz is the sum of opponents' points.
type Standing struct {
	ID              int       `json:"id" db:"id"`
	TournamentID    int       `json:"tournament_id" db:"tournament_id"`
	ParticipantID   int       `json:"participant_id" db:"participant_id"`
	Points          int       `json:"points" db:"points"`
	GamesPlayed     int       `json:"games_played" db:"games_played"`
	Wins            int       `json:"wins" db:"wins"`
	Draws           int       `json:"draws" db:"draws"`
	Losses          int       `json:"losses" db:"losses"`
	ScoreFor        int       `json:"score_for" db:"score_for"`
	ScoreAgainst    int       `json:"score_against" db:"score_against"`
	ScoreDifference int       `json:"score_difference" db:"score_difference"`
	Buchholz        int       `json:"buchholz" db:"buchholz"`
	HadBye          bool      `json:"had_bye" db:"had_bye"`
	Rank            int       `json:"rank" db:"rank"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
