package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/utils"
	"github.com/Dosada05/tournament-core/wallet"
)

// maxPayoutAttempts caps how often a failed credit is retried by the
// settlement loop before it needs manual intervention.
const maxPayoutAttempts = 10

// SettlementService turns a finished tournament into ledger instructions:
// prize payouts by final placement, or entry fee refunds on cancellation.
// Instructions are persisted with deterministic idempotency keys before
// any wallet call, so a crash or re-delivered event never pays twice.
type SettlementService interface {
	HandleTournamentCompleted(ctx context.Context, ev events.Event) error
	HandleTournamentCancelled(ctx context.Context, ev events.Event) error
	// Settle runs payouts for a completed tournament. Safe to call again
	// after a partial failure.
	Settle(ctx context.Context, tournamentID int) error
	// RetryFailed re-executes failed distributions across tournaments.
	RetryFailed(ctx context.Context) error
	ListDistributions(ctx context.Context, tournamentID int) ([]*models.PrizeDistribution, error)
}

type settlementService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.StandingRepository
	prizeRepo       repositories.PrizeRepository
	wallet          wallet.Client
	publisher       events.Publisher
	logger          *slog.Logger
}

func NewSettlementService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	prizeRepo repositories.PrizeRepository,
	walletClient wallet.Client,
	publisher events.Publisher,
	logger *slog.Logger,
) SettlementService {
	return &settlementService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		prizeRepo:       prizeRepo,
		wallet:          walletClient,
		publisher:       publisher,
		logger:          logger,
	}
}

func (s *settlementService) HandleTournamentCompleted(ctx context.Context, ev events.Event) error {
	return s.Settle(ctx, ev.TournamentID)
}

func (s *settlementService) HandleTournamentCancelled(ctx context.Context, ev events.Event) error {
	return s.refund(ctx, ev.TournamentID)
}

func (s *settlementService) ListDistributions(ctx context.Context, tournamentID int) ([]*models.PrizeDistribution, error) {
	return s.prizeRepo.ListByTournament(ctx, tournamentID)
}

func (s *settlementService) Settle(ctx context.Context, tournamentID int) error {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !t.SettlementTriggered || t.Status != models.StatusCompleted {
		return ErrSettlementNotTriggered
	}

	acquired, err := s.tournamentRepo.TryBeginSettlement(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !acquired {
		// Another settle run holds the tournament; it will finish the job.
		return nil
	}
	defer func() {
		if err := s.tournamentRepo.FinishSettlement(context.WithoutCancel(ctx), tournamentID); err != nil {
			s.logger.Error("failed to release settlement lock",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	}()

	pot := t.EscrowTotal + t.PrizePool
	if pot <= 0 {
		s.logger.Info("nothing to settle", slog.Int("tournament_id", tournamentID))
		return nil
	}
	if t.EscrowTotal > 0 && t.EscrowID == nil {
		return ErrEscrowMissing
	}

	planned, err := s.planPayouts(ctx, t, pot)
	if err != nil {
		return err
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, d := range planned {
			if _, err := s.prizeRepo.InsertIfAbsent(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.execute(ctx, t, planned); err != nil {
		return err
	}

	if t.EscrowID != nil {
		if err := s.wallet.Release(ctx, *t.EscrowID); err != nil {
			s.logger.Warn("escrow release failed, will retry on next settlement pass",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	}
	return nil
}

// planPayouts maps the prize scheme onto final placements. Shares are
// integral basis points of the pot; rounding remainders and shares whose
// placement cannot be resolved (no third place in a two-round bracket, for
// example) fold into first place.
func (s *settlementService) planPayouts(ctx context.Context, t *models.Tournament, pot int64) ([]*models.PrizeDistribution, error) {
	scheme, err := t.PrizeScheme()
	if err != nil {
		return nil, fmt.Errorf("invalid prize scheme on tournament %d: %w", t.ID, err)
	}

	accounts, err := s.placementAccounts(ctx, t)
	if err != nil {
		return nil, err
	}
	if accounts[1] == "" {
		return nil, fmt.Errorf("tournament %d completed without a resolvable first place", t.ID)
	}

	amounts := make(map[int]int64, len(scheme))
	var assigned int64
	for _, tier := range scheme {
		if accounts[tier.Placement] == "" {
			continue
		}
		amount := pot * int64(tier.PercentBPS) / 10000
		amounts[tier.Placement] += amount
		assigned += amount
	}
	amounts[1] += pot - assigned

	placements := make([]int, 0, len(amounts))
	for placement := range amounts {
		placements = append(placements, placement)
	}
	// Deterministic order keeps the plan stable across retries.
	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			if placements[j] < placements[i] {
				placements[i], placements[j] = placements[j], placements[i]
			}
		}
	}

	planned := make([]*models.PrizeDistribution, 0, len(placements))
	for _, placement := range placements {
		account := accounts[placement]
		planned = append(planned, &models.PrizeDistribution{
			TournamentID:     t.ID,
			Kind:             models.DistributionPayout,
			Placement:        placement,
			RecipientAccount: account,
			Amount:           amounts[placement],
			IdempotencyKey: utils.IdempotencyKey("payout",
				strconv.Itoa(t.ID), strconv.Itoa(placement), account),
			Status: models.DistributionPending,
		})
	}
	return planned, nil
}

// placementAccounts resolves final placements to wallet accounts. Points
// formats read the standings table; elimination formats read the deciding
// matches.
func (s *settlementService) placementAccounts(ctx context.Context, t *models.Tournament) (map[int]string, error) {
	participants, err := s.participantRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	accountOf := make(map[int]string, len(participants))
	for _, p := range participants {
		accountOf[p.ID] = p.AccountRef
	}

	out := make(map[int]string)

	switch t.Format {
	case models.FormatRoundRobin, models.FormatSwiss:
		standings, err := s.standingRepo.ListByTournament(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, st := range standings {
			out[st.Rank] = accountOf[st.ParticipantID]
		}
		return out, nil
	}

	if t.CurrentBracketID == nil {
		return nil, ErrBracketNotPublished
	}
	matches, err := s.matchRepo.ListByBracket(ctx, *t.CurrentBracketID)
	if err != nil {
		return nil, err
	}

	var decider, lbFinal, consolation *models.Match
	for _, m := range matches {
		switch m.Side {
		case models.SideFinals:
			if decider == nil || decider.Side != models.SideFinals || m.Round > decider.Round {
				decider = m
			}
		case models.SideWinners:
			if decider == nil && m.WinnerNextMatchID == nil && !m.IsBye {
				decider = m
			}
		case models.SideLosers:
			if lbFinal == nil || m.Round > lbFinal.Round {
				lbFinal = m
			}
		case models.SideConsolation:
			consolation = m
		}
	}

	if decider != nil && decider.WinnerParticipantID != nil {
		out[1] = accountOf[*decider.WinnerParticipantID]
		if loser := decider.LoserParticipantID(); loser != nil {
			out[2] = accountOf[*loser]
		}
	}
	switch {
	case consolation != nil && consolation.WinnerParticipantID != nil:
		out[3] = accountOf[*consolation.WinnerParticipantID]
	case lbFinal != nil:
		if loser := lbFinal.LoserParticipantID(); loser != nil {
			out[3] = accountOf[*loser]
		}
	}
	return out, nil
}

func (s *settlementService) refund(ctx context.Context, tournamentID int) error {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusCancelled {
		return fmt.Errorf("%w: refunds require a cancelled tournament", ErrValidationFailed)
	}
	if t.EntryFee <= 0 {
		return nil
	}

	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	planned := make([]*models.PrizeDistribution, 0, len(participants))
	for _, p := range participants {
		planned = append(planned, &models.PrizeDistribution{
			TournamentID:     t.ID,
			Kind:             models.DistributionRefund,
			RecipientAccount: p.AccountRef,
			Amount:           t.EntryFee,
			IdempotencyKey: utils.IdempotencyKey("refund",
				strconv.Itoa(t.ID), p.AccountRef),
			Status: models.DistributionPending,
		})
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, d := range planned {
			if _, err := s.prizeRepo.InsertIfAbsent(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.execute(ctx, t, planned); err != nil {
		return err
	}

	// The escrow hold is released just like on the payout path; refunds
	// are credits against the house ledger, not draws from the hold.
	if t.EscrowID != nil {
		if err := s.wallet.Release(ctx, *t.EscrowID); err != nil {
			s.logger.Warn("escrow release failed after refunds",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	}
	return nil
}

// execute pushes every still-pending or failed instruction through the
// wallet. A duplicate answer from the ledger counts as paid: the money
// moved on an earlier attempt whose acknowledgement was lost.
func (s *settlementService) execute(ctx context.Context, t *models.Tournament, distributions []*models.PrizeDistribution) error {
	var firstErr error
	for _, d := range distributions {
		if d.Status == models.DistributionPaid {
			continue
		}

		outcome, err := s.wallet.Credit(ctx, wallet.CreditRequest{
			AccountRef:     d.RecipientAccount,
			Amount:         d.Amount,
			IdempotencyKey: d.IdempotencyKey,
			Reference:      fmt.Sprintf("tournament:%d:%s:%d", t.ID, d.Kind, d.Placement),
		})

		switch outcome {
		case wallet.OutcomeSuccess, wallet.OutcomeDuplicate:
			if err := s.markDistribution(ctx, d, models.DistributionPaid, nil); err != nil {
				return err
			}
			if pubErr := s.publisher.Publish(ctx, events.PrizeDistributedSubject, t.ID, events.PrizeDistributedPayload{
				Placement:        d.Placement,
				RecipientAccount: d.RecipientAccount,
				Amount:           d.Amount,
				Kind:             string(d.Kind),
			}); pubErr != nil {
				s.logger.Warn("failed to publish distribution",
					slog.Int("distribution_id", d.ID), slog.Any("error", pubErr))
			}
		default:
			msg := "credit failed"
			if err != nil {
				msg = err.Error()
			}
			s.logger.Error("distribution failed",
				slog.Int("tournament_id", t.ID),
				slog.String("recipient", d.RecipientAccount),
				slog.Int64("amount", d.Amount),
				slog.String("error", msg))
			if markErr := s.markDistribution(ctx, d, models.DistributionFailed, &msg); markErr != nil {
				return markErr
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("distribution %s failed: %s", d.IdempotencyKey, msg)
			}
		}
	}
	return firstErr
}

func (s *settlementService) markDistribution(ctx context.Context, d *models.PrizeDistribution, status models.DistributionStatus, lastError *string) error {
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.prizeRepo.UpdateStatus(ctx, tx, d.ID, status, lastError)
	})
	if err != nil {
		return err
	}
	d.Status = status
	d.LastError = lastError
	return nil
}

func (s *settlementService) RetryFailed(ctx context.Context) error {
	failed, err := s.prizeRepo.ListRetryable(ctx, maxPayoutAttempts)
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}

	byTournament := make(map[int][]*models.PrizeDistribution)
	for _, d := range failed {
		byTournament[d.TournamentID] = append(byTournament[d.TournamentID], d)
	}

	for tournamentID, batch := range byTournament {
		t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
		if err != nil {
			s.logger.Error("retry skipped", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
			continue
		}
		if err := s.execute(ctx, t, batch); err != nil {
			s.logger.Warn("retry pass left failures",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	}
	return nil
}
