package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/wallet"
)

type settlementFixture struct {
	svc       SettlementService
	wallet    *fakeWallet
	prizes    *fakePrizeRepo
	standings *fakeStandingRepo
	publisher *capturePublisher
}

func newSettlementFixture(tournament *models.Tournament, participants []*models.Participant) *settlementFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &settlementFixture{
		wallet:    newFakeWallet(),
		prizes:    newFakePrizeRepo(),
		standings: newFakeStandingRepo(),
		publisher: &capturePublisher{},
	}
	f.svc = NewSettlementService(noopDB, newFakeTournamentRepo(tournament), newFakeParticipantRepo(participants...),
		newFakeMatchRepo(), f.standings, f.prizes, f.wallet, f.publisher, logger)
	return f
}

func escrowID(id string) *string { return &id }

func TestRefundCreditsEveryEntrantAndReleasesEscrow(t *testing.T) {
	tournament := &models.Tournament{
		ID: 1, Format: models.FormatSingleElimination, Status: models.StatusCancelled,
		EntryFee: 100, EscrowID: escrowID("esc-1"), EscrowTotal: 200,
	}
	f := newSettlementFixture(tournament, []*models.Participant{
		{ID: 1, TournamentID: 1, Seed: 1, AccountRef: "acct-a"},
		{ID: 2, TournamentID: 1, Seed: 2, AccountRef: "acct-b"},
	})

	err := f.svc.HandleTournamentCancelled(context.Background(), events.Event{
		Subject: events.TournamentCancelledSubject, TournamentID: 1,
		Payload: events.TournamentCancelledPayload{},
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	if len(f.wallet.credits) != 2 {
		t.Fatalf("credits = %d, want one refund per entrant", len(f.wallet.credits))
	}
	for _, c := range f.wallet.credits {
		if c.Amount != 100 {
			t.Fatalf("refund amount = %d, want the entry fee 100", c.Amount)
		}
	}
	if len(f.wallet.released) != 1 || f.wallet.released[0] != "esc-1" {
		t.Fatalf("released escrows = %v, want [esc-1]", f.wallet.released)
	}

	rows, err := f.svc.ListDistributions(context.Background(), 1)
	if err != nil {
		t.Fatalf("distributions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("distribution rows = %d, want 2", len(rows))
	}
	for _, d := range rows {
		if d.Kind != models.DistributionRefund || d.Status != models.DistributionPaid {
			t.Fatalf("distribution %s = %s/%s, want refund/paid", d.IdempotencyKey, d.Kind, d.Status)
		}
	}
}

func TestRefundHoldsEscrowWhileCreditsFail(t *testing.T) {
	tournament := &models.Tournament{
		ID: 1, Format: models.FormatSingleElimination, Status: models.StatusCancelled,
		EntryFee: 100, EscrowID: escrowID("esc-1"), EscrowTotal: 200,
	}
	f := newSettlementFixture(tournament, []*models.Participant{
		{ID: 1, TournamentID: 1, Seed: 1, AccountRef: "acct-a"},
		{ID: 2, TournamentID: 1, Seed: 2, AccountRef: "acct-b"},
	})
	f.wallet.outcome = wallet.OutcomeFailure

	err := f.svc.HandleTournamentCancelled(context.Background(), events.Event{
		Subject: events.TournamentCancelledSubject, TournamentID: 1,
		Payload: events.TournamentCancelledPayload{},
	})
	if err == nil {
		t.Fatal("failed credits should surface an error")
	}
	if len(f.wallet.released) != 0 {
		t.Fatalf("released escrows = %v, want none until every refund lands", f.wallet.released)
	}
}

func TestSettlePaysByPlacementAndReleasesEscrow(t *testing.T) {
	tournament := &models.Tournament{
		ID: 1, Format: models.FormatRoundRobin, Status: models.StatusCompleted,
		SettlementTriggered: true,
		EscrowID:            escrowID("esc-1"), EscrowTotal: 200,
	}
	f := newSettlementFixture(tournament, []*models.Participant{
		{ID: 1, TournamentID: 1, Seed: 1, AccountRef: "acct-a"},
		{ID: 2, TournamentID: 1, Seed: 2, AccountRef: "acct-b"},
	})
	if err := f.standings.ReplaceForTournament(context.Background(), nil, 1, []*models.Standing{
		{TournamentID: 1, ParticipantID: 1, Rank: 1},
		{TournamentID: 1, ParticipantID: 2, Rank: 2},
	}); err != nil {
		t.Fatalf("seed standings: %v", err)
	}

	if err := f.svc.Settle(context.Background(), 1); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Default scheme splits the 200 pot 70/30.
	amounts := make(map[string]int64)
	for _, c := range f.wallet.credits {
		amounts[c.AccountRef] = c.Amount
	}
	if amounts["acct-a"] != 140 || amounts["acct-b"] != 60 {
		t.Fatalf("payout amounts = %v, want acct-a 140 and acct-b 60", amounts)
	}
	if len(f.wallet.released) != 1 || f.wallet.released[0] != "esc-1" {
		t.Fatalf("released escrows = %v, want [esc-1]", f.wallet.released)
	}
	if got := f.publisher.bySubject(events.PrizeDistributedSubject); len(got) != 2 {
		t.Fatalf("prize events = %d, want 2", len(got))
	}
}
