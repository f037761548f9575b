package services

import (
	"errors"
	"testing"

	"github.com/Dosada05/tournament-core/models"
)

func matchWith(p1, p2 int) *models.Match {
	return &models.Match{P1ParticipantID: &p1, P2ParticipantID: &p2}
}

func TestValidateResult(t *testing.T) {
	svc := &matchService{}
	m := matchWith(10, 20)

	cases := []struct {
		name    string
		format  models.BracketFormat
		scoreA  int
		scoreB  int
		winner  int
		wantErr error
	}{
		{"clean win slot one", models.FormatSingleElimination, 2, 0, 10, nil},
		{"clean win slot two", models.FormatSingleElimination, 0, 2, 20, nil},
		{"draw in round robin", models.FormatRoundRobin, 1, 1, 0, nil},
		{"draw in swiss", models.FormatSwiss, 0, 0, 0, nil},
		{"draw in single elim", models.FormatSingleElimination, 1, 1, 0, ErrDrawNotAllowed},
		{"draw in double elim", models.FormatDoubleElimination, 1, 1, 0, ErrDrawNotAllowed},
		{"draw with unequal scores", models.FormatRoundRobin, 2, 1, 0, ErrInvalidScore},
		{"winner with lower score", models.FormatSingleElimination, 0, 2, 10, ErrInvalidScore},
		{"winner with equal scores", models.FormatSingleElimination, 1, 1, 10, ErrInvalidScore},
		{"winner not in match", models.FormatSingleElimination, 2, 0, 99, ErrValidationFailed},
		{"negative score", models.FormatSingleElimination, -1, 0, 10, ErrValidationFailed},
	}

	for _, c := range cases {
		err := svc.validateResult(c.format, m, c.scoreA, c.scoreB, c.winner)
		if c.wantErr == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", c.name, err)
			}
			continue
		}
		if !errors.Is(err, c.wantErr) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.wantErr, err)
		}
	}
}
