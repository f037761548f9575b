package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-core/models"
	"github.com/jonboulle/clockwork"
)

type bracketFixture struct {
	svc         BracketService
	tournaments *fakeTournamentRepo
	brackets    *fakeBracketRepo
	matches     *fakeMatchRepo
}

func newBracketFixture(tournament *models.Tournament, participants []*models.Participant, brackets []*models.Bracket, matches []*models.Match) *bracketFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &bracketFixture{
		tournaments: newFakeTournamentRepo(tournament),
		brackets:    newFakeBracketRepo(brackets...),
		matches:     newFakeMatchRepo(matches...),
	}
	f.svc = NewBracketService(noopDB, f.tournaments, newFakeParticipantRepo(participants...),
		f.brackets, f.matches, &capturePublisher{}, clockwork.NewFakeClock(), time.Hour, logger)
	return f
}

// Two regenerations racing each other must supersede in a chain, never
// retire the same bracket twice and never leave two active brackets.
func TestRegenerateConcurrentRunsChainSupersession(t *testing.T) {
	tournament := &models.Tournament{
		ID: 1, Format: models.FormatSingleElimination, Status: models.StatusLive,
		CurrentBracketID: intPtr(1),
	}
	published := &models.Bracket{ID: 1, TournamentID: 1, Format: models.FormatSingleElimination, Published: true}
	matches := []*models.Match{
		{ID: 1, BracketID: 1, TournamentID: 1, UID: "R1M1", Side: models.SideWinners, Round: 1, Slot: 1,
			P1ParticipantID: intPtr(1), P2ParticipantID: intPtr(4), Status: models.MatchScheduled},
		{ID: 2, BracketID: 1, TournamentID: 1, UID: "R1M2", Side: models.SideWinners, Round: 1, Slot: 2,
			P1ParticipantID: intPtr(2), P2ParticipantID: intPtr(3), Status: models.MatchScheduled},
		{ID: 3, BracketID: 1, TournamentID: 1, UID: "R2M1", Side: models.SideWinners, Round: 2, Slot: 1,
			Status: models.MatchPending},
	}
	f := newBracketFixture(tournament, entrants(4), []*models.Bracket{published}, matches)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Regenerate(context.Background(), PublishBracketInput{TournamentID: 1})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("regenerate %d: %v", i, err)
		}
	}

	f.brackets.mu.Lock()
	defer f.brackets.mu.Unlock()
	var active []int
	supersededBy := make(map[int]int)
	for id, b := range f.brackets.rows {
		if b.SupersededBy == nil {
			active = append(active, id)
		} else {
			supersededBy[id] = *b.SupersededBy
		}
	}
	if len(active) != 1 {
		t.Fatalf("active brackets = %v, want exactly one", active)
	}
	if len(supersededBy) != 2 {
		t.Fatalf("superseded brackets = %v, want the original and the first replacement", supersededBy)
	}

	// The chain walks from the original to the single active bracket.
	cursor := 1
	for range supersededBy {
		next, ok := supersededBy[cursor]
		if !ok {
			t.Fatalf("supersession chain broken at bracket %d: %v", cursor, supersededBy)
		}
		cursor = next
	}
	if cursor != active[0] {
		t.Fatalf("chain ends at %d, active bracket is %d", cursor, active[0])
	}

	tour, err := f.tournaments.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	if tour.CurrentBracketID == nil || *tour.CurrentBracketID != active[0] {
		t.Fatalf("current bracket = %v, want %d", tour.CurrentBracketID, active[0])
	}
}

func TestRegenerateRejectsStartedBracket(t *testing.T) {
	tournament := &models.Tournament{
		ID: 1, Format: models.FormatSingleElimination, Status: models.StatusLive,
		CurrentBracketID: intPtr(1),
	}
	published := &models.Bracket{ID: 1, TournamentID: 1, Format: models.FormatSingleElimination, Published: true}
	matches := []*models.Match{
		{ID: 1, BracketID: 1, TournamentID: 1, UID: "R1M1", Side: models.SideWinners, Round: 1, Slot: 1,
			P1ParticipantID: intPtr(1), P2ParticipantID: intPtr(2), Status: models.MatchLive},
	}
	f := newBracketFixture(tournament, entrants(2), []*models.Bracket{published}, matches)

	if _, err := f.svc.Regenerate(context.Background(), PublishBracketInput{TournamentID: 1}); err == nil {
		t.Fatal("regenerate over a live match should fail")
	}
}
