package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/jonboulle/clockwork"
)

type SubmitResultInput struct {
	MatchID               int
	ReporterParticipantID int
	ScoreA                int
	ScoreB                int
	// WinnerParticipantID of 0 declares a draw, allowed only in round
	// robin and swiss tournaments.
	WinnerParticipantID int
	EvidenceKey         *string
}

type OpenDisputeInput struct {
	MatchID            int
	FilerParticipantID int
	Claim              string
	EvidenceKey        *string
	ClaimedWinnerID    *int
	ClaimedScoreA      *int
	ClaimedScoreB      *int
}

type ResolveDisputeInput struct {
	DisputeID   int
	Resolution  models.DisputeResolution
	ResolverRef string
	// Override outcome, required for ResolutionOverride.
	OverrideWinnerID *int
	OverrideScoreA   *int
	OverrideScoreB   *int
}

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	CheckIn(ctx context.Context, matchID, participantID int) (*models.Match, error)
	// Start moves a fully checked-in match live.
	Start(ctx context.Context, matchID int) (*models.Match, error)
	SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error)
	// ConfirmResult is called by the opponent of the reporter; the result
	// becomes final and the completion event publishes.
	ConfirmResult(ctx context.Context, matchID, participantID int) (*models.Match, error)
	OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error)
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Match, error)
	// SweepDeadlines forfeits no-shows past their check-in deadline and
	// auto-confirms results past their confirmation deadline.
	SweepDeadlines(ctx context.Context) error
}

type matchService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	disputeRepo    repositories.DisputeRepository
	publisher      events.Publisher
	clock          clockwork.Clock
	confirmWindow  time.Duration
	locks          *keyedMutex
	logger         *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	disputeRepo repositories.DisputeRepository,
	publisher events.Publisher,
	clock clockwork.Clock,
	confirmWindow time.Duration,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		disputeRepo:    disputeRepo,
		publisher:      publisher,
		clock:          clock,
		confirmWindow:  confirmWindow,
		locks:          newKeyedMutex(),
		logger:         logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return s.matchRepo.GetByID(ctx, id)
}

func (s *matchService) CheckIn(ctx context.Context, matchID, participantID int) (*models.Match, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchScheduled {
		return nil, fmt.Errorf("%w: check-in requires a scheduled match, match %d is %s", ErrMatchNotInState, matchID, m.Status)
	}

	switch m.SlotOf(participantID) {
	case 1:
		if m.P1CheckedIn {
			return nil, ErrAlreadyCheckedIn
		}
		m.P1CheckedIn = true
	case 2:
		if m.P2CheckedIn {
			return nil, ErrAlreadyCheckedIn
		}
		m.P2CheckedIn = true
	default:
		return nil, ErrNotAMatchParticipant
	}

	if m.P1CheckedIn && m.P2CheckedIn {
		m.Status = models.MatchCheckedIn
	}
	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *matchService) Start(ctx context.Context, matchID int) (*models.Match, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.IsBye {
		return nil, ErrByeMatchImmutable
	}
	if m.Status != models.MatchCheckedIn {
		return nil, fmt.Errorf("%w: starting requires both check-ins, match %d is %s", ErrMatchNotInState, matchID, m.Status)
	}

	m.Status = models.MatchLive
	m.CheckInDeadline = nil
	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *matchService) SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error) {
	unlock := s.locks.Lock(input.MatchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchLive {
		return nil, fmt.Errorf("%w: results can only be submitted for a live match, match %d is %s", ErrMatchNotInState, input.MatchID, m.Status)
	}
	if m.SlotOf(input.ReporterParticipantID) == 0 {
		return nil, ErrNotAMatchParticipant
	}

	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.validateResult(t.Format, m, input.ScoreA, input.ScoreB, input.WinnerParticipantID); err != nil {
		return nil, err
	}

	m.ScoreA = intPtr(input.ScoreA)
	m.ScoreB = intPtr(input.ScoreB)
	if input.WinnerParticipantID != 0 {
		m.WinnerParticipantID = intPtr(input.WinnerParticipantID)
	} else {
		m.WinnerParticipantID = nil
	}
	m.ReportedBy = intPtr(input.ReporterParticipantID)
	m.EvidenceKey = input.EvidenceKey
	m.Status = models.MatchAwaitingConfirmation
	deadline := s.clock.Now().Add(s.confirmWindow)
	m.ConfirmDeadline = &deadline

	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return nil, err
	}
	return m, nil
}

// validateResult checks the score against the declared winner. A draw
// (winner 0, equal scores) is legal only in points formats.
func (s *matchService) validateResult(format models.BracketFormat, m *models.Match, scoreA, scoreB, winnerID int) error {
	if scoreA < 0 || scoreB < 0 {
		return fmt.Errorf("%w: scores must not be negative", ErrValidationFailed)
	}
	if winnerID == 0 {
		if format == models.FormatSingleElimination || format == models.FormatDoubleElimination {
			return ErrDrawNotAllowed
		}
		if scoreA != scoreB {
			return fmt.Errorf("%w: a draw requires equal scores", ErrInvalidScore)
		}
		return nil
	}

	slot := m.SlotOf(winnerID)
	if slot == 0 {
		return fmt.Errorf("%w: declared winner does not play in this match", ErrValidationFailed)
	}
	if scoreA == scoreB {
		return fmt.Errorf("%w: equal scores cannot name a winner", ErrInvalidScore)
	}
	winnerHasHigher := (slot == 1 && scoreA > scoreB) || (slot == 2 && scoreB > scoreA)
	if !winnerHasHigher {
		return ErrInvalidScore
	}
	return nil
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID, participantID int) (*models.Match, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchAwaitingConfirmation {
		return nil, fmt.Errorf("%w: confirmation requires a submitted result, match %d is %s", ErrMatchNotInState, matchID, m.Status)
	}
	if m.SlotOf(participantID) == 0 {
		return nil, ErrNotAMatchParticipant
	}
	if m.ReportedBy != nil && *m.ReportedBy == participantID {
		return nil, ErrConfirmBySubmitter
	}

	if err := s.publishResult(ctx, m, models.MatchCompleted, false); err != nil {
		return nil, err
	}
	return m, nil
}

// publishResult finalizes the recorded outcome: the revision counter is
// bumped, the row written and exactly one completion event published for
// that revision.
func (s *matchService) publishResult(ctx context.Context, m *models.Match, status models.MatchStatus, forfeit bool) error {
	m.Status = status
	m.Forfeit = forfeit
	m.ConfirmDeadline = nil
	m.Revision++

	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return err
	}

	s.logger.Info("match result published",
		slog.Int("match_id", m.ID),
		slog.Int("revision", m.Revision),
		slog.Int("winner_participant_id", derefInt(m.WinnerParticipantID)),
		slog.Bool("forfeit", forfeit))

	return s.publisher.Publish(ctx, events.MatchCompletedSubject, m.TournamentID, events.MatchCompletedPayload{
		MatchID:             m.ID,
		Revision:            m.Revision,
		WinnerParticipantID: derefInt(m.WinnerParticipantID),
		LoserParticipantID:  m.LoserParticipantID(),
		ScoreA:              derefInt(m.ScoreA),
		ScoreB:              derefInt(m.ScoreB),
		Forfeit:             forfeit,
	})
}

func (s *matchService) OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error) {
	unlock := s.locks.Lock(input.MatchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchAwaitingConfirmation && m.Status != models.MatchCompleted {
		return nil, ErrDisputeWindowClosed
	}
	if m.SlotOf(input.FilerParticipantID) == 0 {
		return nil, ErrNotAMatchParticipant
	}
	if m.DisputeID != nil {
		return nil, ErrMatchAlreadyDisputed
	}
	if input.Claim == "" {
		return nil, fmt.Errorf("%w: a dispute requires a claim", ErrValidationFailed)
	}

	d := &models.Dispute{
		MatchID:            m.ID,
		TournamentID:       m.TournamentID,
		FilerParticipantID: input.FilerParticipantID,
		Claim:              input.Claim,
		EvidenceKey:        input.EvidenceKey,
		Status:             models.DisputeOpened,
		ClaimedWinnerID:    input.ClaimedWinnerID,
		ClaimedScoreA:      input.ClaimedScoreA,
		ClaimedScoreB:      input.ClaimedScoreB,
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.disputeRepo.Create(ctx, tx, d); err != nil {
			return err
		}
		m.Status = models.MatchDisputed
		m.DisputeID = &d.ID
		m.ConfirmDeadline = nil
		return s.matchRepo.Update(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.DisputeOpenedSubject, m.TournamentID, events.DisputeOpenedPayload{
		DisputeID:          d.ID,
		MatchID:            m.ID,
		FilerParticipantID: input.FilerParticipantID,
	}); err != nil {
		s.logger.Warn("failed to publish dispute opening", slog.Int("dispute_id", d.ID), slog.Any("error", err))
	}
	return d, nil
}

func (s *matchService) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Match, error) {
	d, err := s.disputeRepo.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeResolved {
		return nil, repositories.ErrDisputeAlreadyResolved
	}

	unlock := s.locks.Lock(d.MatchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, d.MatchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchDisputed {
		return nil, fmt.Errorf("%w: match %d is %s, expected disputed", ErrMatchNotInState, m.ID, m.Status)
	}

	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}

	alreadyPublished := m.Revision > 0

	switch input.Resolution {
	case models.ResolutionAccept:
		if d.ClaimedScoreA == nil || d.ClaimedScoreB == nil {
			return nil, fmt.Errorf("%w: dispute %d carries no claimed result to accept", ErrValidationFailed, d.ID)
		}
		if err := s.validateResult(t.Format, m, *d.ClaimedScoreA, *d.ClaimedScoreB, derefInt(d.ClaimedWinnerID)); err != nil {
			return nil, err
		}
		m.ScoreA, m.ScoreB = d.ClaimedScoreA, d.ClaimedScoreB
		m.WinnerParticipantID = d.ClaimedWinnerID
	case models.ResolutionOverride:
		if input.OverrideScoreA == nil || input.OverrideScoreB == nil {
			return nil, fmt.Errorf("%w: an override resolution requires a full result", ErrValidationFailed)
		}
		if err := s.validateResult(t.Format, m, *input.OverrideScoreA, *input.OverrideScoreB, derefInt(input.OverrideWinnerID)); err != nil {
			return nil, err
		}
		m.ScoreA, m.ScoreB = input.OverrideScoreA, input.OverrideScoreB
		m.WinnerParticipantID = input.OverrideWinnerID
	case models.ResolutionReject:
		// The originally recorded result stands.
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrValidationFailed, input.Resolution)
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.disputeRepo.Resolve(ctx, tx, d.ID, input.Resolution, input.ResolverRef)
	})
	if err != nil {
		return nil, err
	}

	m.DisputeID = nil
	if input.Resolution == models.ResolutionReject && alreadyPublished {
		// The published revision is untouched; just close the match again.
		m.Status = models.MatchCompleted
		if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
			return nil, err
		}
	} else {
		if err := s.publishResult(ctx, m, models.MatchCompleted, false); err != nil {
			return nil, err
		}
	}

	if err := s.publisher.Publish(ctx, events.DisputeResolvedSubject, m.TournamentID, events.DisputeResolvedPayload{
		DisputeID:  d.ID,
		MatchID:    m.ID,
		Resolution: string(input.Resolution),
		Revision:   m.Revision,
	}); err != nil {
		s.logger.Warn("failed to publish dispute resolution", slog.Int("dispute_id", d.ID), slog.Any("error", err))
	}
	return m, nil
}

func (s *matchService) SweepDeadlines(ctx context.Context) error {
	now := s.clock.Now()

	expired, err := s.matchRepo.ListCheckInExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, m := range expired {
		if err := s.forfeitNoShow(ctx, m.ID); err != nil {
			s.logger.Error("check-in sweep failed",
				slog.Int("match_id", m.ID), slog.Any("error", err))
		}
	}

	unconfirmed, err := s.matchRepo.ListConfirmExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, m := range unconfirmed {
		if err := s.autoConfirm(ctx, m.ID); err != nil {
			s.logger.Error("confirmation sweep failed",
				slog.Int("match_id", m.ID), slog.Any("error", err))
		}
	}
	return nil
}

// forfeitNoShow resolves a match whose check-in window closed. One
// checked-in side wins by forfeit; with neither present the match is
// voided and downstream slots are treated as exhausted.
func (s *matchService) forfeitNoShow(ctx context.Context, matchID int) error {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status != models.MatchScheduled || m.CheckInDeadline == nil || m.CheckInDeadline.After(s.clock.Now()) {
		return nil
	}

	switch {
	case m.P1CheckedIn && !m.P2CheckedIn:
		m.WinnerParticipantID = m.P1ParticipantID
		return s.publishResult(ctx, m, models.MatchForfeited, true)
	case m.P2CheckedIn && !m.P1CheckedIn:
		m.WinnerParticipantID = m.P2ParticipantID
		return s.publishResult(ctx, m, models.MatchForfeited, true)
	default:
		m.WinnerParticipantID = nil
		return s.publishResult(ctx, m, models.MatchCancelled, true)
	}
}

func (s *matchService) autoConfirm(ctx context.Context, matchID int) error {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status != models.MatchAwaitingConfirmation || m.ConfirmDeadline == nil || m.ConfirmDeadline.After(s.clock.Now()) {
		return nil
	}
	return s.publishResult(ctx, m, models.MatchCompleted, false)
}
