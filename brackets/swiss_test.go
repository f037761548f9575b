package brackets

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-core/models"
)

func swissParams(n, rounds int) GenerateParams {
	return GenerateParams{
		Tournament:   &models.Tournament{ID: 1, Format: models.FormatSwiss},
		Participants: testParticipants(n),
		Config:       models.FormatConfig{Swiss: &models.SwissConfig{Rounds: rounds}},
	}
}

func TestSwissRoundOneFoldsHalves(t *testing.T) {
	gen := NewSwissGenerator()
	plan, err := gen.Generate(context.Background(), swissParams(6, 0))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("expected 3 round one matches for 6 participants, got %d", len(plan))
	}

	// Seed i plays seed i+N/2.
	want := map[int]int{101: 104, 102: 105, 103: 106}
	for _, m := range plan {
		if m.Round != 1 {
			t.Fatalf("swiss generation must stop at round one, saw round %d", m.Round)
		}
		if want[*m.Participant1ID] != *m.Participant2ID {
			t.Fatalf("unexpected pairing %d vs %d", *m.Participant1ID, *m.Participant2ID)
		}
	}
}

func TestSwissRoundOneOddFieldByesLowestSeed(t *testing.T) {
	gen := NewSwissGenerator()
	plan, err := gen.Generate(context.Background(), swissParams(7, 0))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(plan) != 4 {
		t.Fatalf("expected 3 matches plus a bye, got %d nodes", len(plan))
	}

	var bye *PlanMatch
	for _, m := range plan {
		if m.IsBye {
			bye = m
		}
	}
	if bye == nil {
		t.Fatal("odd field must produce a bye node")
	}
	if bye.ByeParticipantID == nil || *bye.ByeParticipantID != 107 {
		t.Fatalf("bye should go to the lowest seed, got %v", bye.ByeParticipantID)
	}
}

func TestSwissRounds(t *testing.T) {
	if got := SwissRounds(&models.SwissConfig{Rounds: 5}, 32); got != 5 {
		t.Fatalf("configured rounds ignored, got %d", got)
	}
	if got := SwissRounds(&models.SwissConfig{}, 8); got != 3 {
		t.Fatalf("expected ceil(log2(8)) = 3 rounds, got %d", got)
	}
	if got := SwissRounds(nil, 20); got != 5 {
		t.Fatalf("expected ceil(log2(20)) = 5 rounds, got %d", got)
	}
}

func TestPairSwissRoundAvoidsRematches(t *testing.T) {
	// 1 and 2 already met, as did 3 and 4. Both lead their score groups.
	seats := []SwissSeat{
		{ParticipantID: 1, Seed: 1, Points: 2, Opponents: []int{2}},
		{ParticipantID: 2, Seed: 2, Points: 2, Opponents: []int{1}},
		{ParticipantID: 3, Seed: 3, Points: 0, Opponents: []int{4}},
		{ParticipantID: 4, Seed: 4, Points: 0, Opponents: []int{3}},
	}
	pairs, bye, err := PairSwissRound(seats)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if bye != nil {
		t.Fatalf("even field should have no bye, got %d", *bye)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	for _, p := range pairs {
		if p.P1 == 1 && p.P2 == 2 || p.P1 == 2 && p.P2 == 1 {
			t.Fatal("rematch 1 vs 2 despite fresh opponents being available")
		}
		if p.P1 == 3 && p.P2 == 4 || p.P1 == 4 && p.P2 == 3 {
			t.Fatal("rematch 3 vs 4 despite fresh opponents being available")
		}
	}
}

func TestPairSwissRoundPrefersScoreGroups(t *testing.T) {
	seats := []SwissSeat{
		{ParticipantID: 1, Seed: 1, Points: 4},
		{ParticipantID: 2, Seed: 2, Points: 4},
		{ParticipantID: 3, Seed: 3, Points: 0},
		{ParticipantID: 4, Seed: 4, Points: 0},
	}
	pairs, _, err := PairSwissRound(seats)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if pairs[0].P1 != 1 || pairs[0].P2 != 2 {
		t.Fatalf("leaders should meet, got %d vs %d", pairs[0].P1, pairs[0].P2)
	}
	if pairs[1].P1 != 3 || pairs[1].P2 != 4 {
		t.Fatalf("trailing group should meet, got %d vs %d", pairs[1].P1, pairs[1].P2)
	}
}

func TestPairSwissRoundForcedRematch(t *testing.T) {
	// Everyone has already played everyone: only a rematch completes the round.
	seats := []SwissSeat{
		{ParticipantID: 1, Seed: 1, Points: 4, Opponents: []int{2, 3}},
		{ParticipantID: 2, Seed: 2, Points: 2, Opponents: []int{1, 3}},
		{ParticipantID: 3, Seed: 3, Points: 0, Opponents: []int{1, 2}},
	}
	pairs, bye, err := PairSwissRound(seats)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if bye == nil {
		t.Fatal("odd field must sit someone out")
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
}

func TestPairSwissRoundByeSkipsPreviousBye(t *testing.T) {
	seats := []SwissSeat{
		{ParticipantID: 1, Seed: 1, Points: 2},
		{ParticipantID: 2, Seed: 2, Points: 1},
		{ParticipantID: 3, Seed: 3, Points: 0, HadBye: true},
	}
	_, bye, err := PairSwissRound(seats)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if bye == nil || *bye != 2 {
		t.Fatalf("bye should skip participant 3 who already had one, got %v", bye)
	}
}
