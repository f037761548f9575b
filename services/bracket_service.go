package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/tournament-core/brackets"
	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

type PublishBracketInput struct {
	TournamentID int
	// LiveDraw reshuffles the handed-over seeds with a deterministic draw
	// before generation; DrawSeed makes the draw replayable.
	LiveDraw bool
	DrawSeed int64
}

type BracketService interface {
	// GenerateAndPublish generates the bracket for a seeding tournament,
	// persists it atomically and moves the tournament live.
	GenerateAndPublish(ctx context.Context, input PublishBracketInput) (*models.Bracket, error)
	// Regenerate replaces a published bracket before any match has
	// started. The old bracket is kept and marked superseded.
	Regenerate(ctx context.Context, input PublishBracketInput) (*models.Bracket, error)
	GetBracketView(ctx context.Context, tournamentID int) (*models.BracketView, error)
}

type bracketService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	matchRepo       repositories.MatchRepository
	publisher       events.Publisher
	clock           clockwork.Clock
	checkInWindow   time.Duration
	locks           *keyedMutex
	logger          *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	publisher events.Publisher,
	clock clockwork.Clock,
	checkInWindow time.Duration,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		matchRepo:       matchRepo,
		publisher:       publisher,
		clock:           clock,
		checkInWindow:   checkInWindow,
		locks:           newKeyedMutex(),
		logger:          logger,
	}
}

func (s *bracketService) GenerateAndPublish(ctx context.Context, input PublishBracketInput) (*models.Bracket, error) {
	// Publication is serialized per tournament so two concurrent calls
	// cannot both pass the no-bracket-yet check.
	unlock := s.locks.Lock(input.TournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, input.TournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusSeeding {
		return nil, ErrTournamentNotSeeding
	}
	if t.CurrentBracketID != nil {
		return nil, ErrBracketAlreadyPublished
	}

	bracket, scheduled, err := s.generate(ctx, t, input, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket published",
		slog.Int("tournament_id", t.ID),
		slog.Int("bracket_id", bracket.ID),
		slog.String("format", string(t.Format)))

	s.announceScheduled(ctx, t.ID, scheduled)
	return bracket, nil
}

func (s *bracketService) Regenerate(ctx context.Context, input PublishBracketInput) (*models.Bracket, error) {
	// Serialized per tournament: concurrent regenerations read the current
	// bracket one after the other, so each supersedes its predecessor
	// instead of both retiring the same one.
	unlock := s.locks.Lock(input.TournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, input.TournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusLive {
		return nil, ErrTournamentNotLive
	}
	if t.CurrentBracketID == nil {
		return nil, ErrBracketNotPublished
	}
	oldBracketID := *t.CurrentBracketID

	existing, err := s.matchRepo.ListByBracket(ctx, oldBracketID)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if m.Status != models.MatchPending && m.Status != models.MatchScheduled && !m.IsBye {
			return nil, fmt.Errorf("%w: match %s has already started", ErrMatchNotInState, m.UID)
		}
	}

	bracket, scheduled, err := s.generate(ctx, t, input, existing)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket regenerated",
		slog.Int("tournament_id", t.ID),
		slog.Int("old_bracket_id", oldBracketID),
		slog.Int("bracket_id", bracket.ID))

	s.announceScheduled(ctx, t.ID, scheduled)
	return bracket, nil
}

// generate runs the format generator and persists the plan. When
// replacing is non-nil the old bracket's matches are cancelled and the
// old bracket marked superseded, all in the same transaction.
func (s *bracketService) generate(ctx context.Context, t *models.Tournament, input PublishBracketInput, replacing []*models.Match) (*models.Bracket, []*models.Match, error) {
	cfg, err := t.FormatConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	participants, err := s.participantRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}

	if input.LiveDraw {
		participants = brackets.LiveDrawOrder(participants, input.DrawSeed)
	}

	generator, err := brackets.ForFormat(t.Format)
	if err != nil {
		return nil, nil, err
	}
	plan, err := generator.Generate(ctx, brackets.GenerateParams{
		Tournament:   t,
		Participants: participants,
		Config:       cfg,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate %s bracket for tournament %d: %w", generator.Name(), t.ID, err)
	}

	bracket := &models.Bracket{TournamentID: t.ID, Format: t.Format}
	var scheduled []*models.Match

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		if input.LiveDraw {
			if err := s.participantRepo.UpdateSeeds(ctx, tx, participants); err != nil {
				return err
			}
		}

		if err := s.bracketRepo.Create(ctx, tx, bracket); err != nil {
			return err
		}

		scheduled, err = s.persistPlan(ctx, tx, t, bracket.ID, plan)
		if err != nil {
			return err
		}

		if replacing != nil {
			for _, m := range replacing {
				if m.Status.Terminal() {
					continue
				}
				m.Status = models.MatchCancelled
				if err := s.matchRepo.Update(ctx, tx, m); err != nil {
					return err
				}
			}
			if err := s.bracketRepo.Supersede(ctx, tx, *t.CurrentBracketID, bracket.ID); err != nil {
				return err
			}
		} else {
			if err := s.tournamentRepo.UpdateStatus(ctx, tx, t.ID, models.StatusSeeding, models.StatusLive); err != nil {
				return err
			}
		}

		if err := s.tournamentRepo.SetCurrentBracket(ctx, tx, t.ID, bracket.ID); err != nil {
			return err
		}
		return s.bracketRepo.MarkPublished(ctx, tx, bracket.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	bracket.Published = true
	return bracket, scheduled, nil
}

// persistPlan writes the plan in two passes: the first inserts every node
// and records the UID to id mapping, the second rewrites the plan's UID
// links as foreign keys. Returns the matches that start out scheduled.
func (s *bracketService) persistPlan(ctx context.Context, tx *sql.Tx, t *models.Tournament, bracketID int, plan []*brackets.PlanMatch) ([]*models.Match, error) {
	idByUID := make(map[string]int, len(plan))
	rows := make([]*models.Match, 0, len(plan))
	var scheduled []*models.Match

	for _, pm := range plan {
		// Byes whose occupant is already known carry no information for
		// elimination play: the winner was folded into the next round at
		// generation time. Swiss byes stay, completed, because they score.
		if pm.IsBye && pm.ByeParticipantID != nil && t.Format != models.FormatSwiss {
			continue
		}

		m := &models.Match{
			BracketID:    bracketID,
			TournamentID: t.ID,
			UID:          pm.UID,
			Side:         pm.Side,
			Round:        pm.Round,
			Slot:         pm.Slot,
			P1ParticipantID: pm.Participant1ID,
			P2ParticipantID: pm.Participant2ID,
			IsBye:           pm.IsBye,
			Status:          models.MatchPending,
		}

		switch {
		case pm.IsBye && pm.ByeParticipantID != nil:
			// Swiss bye: a completed walkover worth a win.
			m.Status = models.MatchCompleted
			m.WinnerParticipantID = pm.ByeParticipantID
			m.Revision = 1
		case pm.IsBye:
			// Pass-through bye waiting for its feeder's winner.
			m.Status = models.MatchPending
		case pm.Participant1ID != nil && pm.Participant2ID != nil:
			m.Status = models.MatchScheduled
			deadline := s.clock.Now().Add(s.checkInWindow)
			m.CheckInDeadline = &deadline
		}

		if err := s.matchRepo.Create(ctx, tx, m); err != nil {
			return nil, err
		}
		idByUID[pm.UID] = m.ID
		rows = append(rows, m)
		if m.Status == models.MatchScheduled {
			scheduled = append(scheduled, m)
		}
	}

	for i, pm := range planWithRows(plan, idByUID) {
		m := rows[i]
		var winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source *int

		if pm.WinnerToUID != nil {
			if id, ok := idByUID[*pm.WinnerToUID]; ok {
				winnerNext, winnerSlot = &id, intPtr(pm.WinnerToSlot)
			}
		}
		if pm.LoserToUID != nil {
			if id, ok := idByUID[*pm.LoserToUID]; ok {
				loserNext, loserSlot = &id, intPtr(pm.LoserToSlot)
			}
		}
		if pm.Source1UID != nil {
			if id, ok := idByUID[*pm.Source1UID]; ok {
				p1Source = &id
			}
		}
		if pm.Source2UID != nil {
			if id, ok := idByUID[*pm.Source2UID]; ok {
				p2Source = &id
			}
		}

		if winnerNext == nil && loserNext == nil && p1Source == nil && p2Source == nil {
			continue
		}
		if err := s.matchRepo.UpdateLinks(ctx, tx, m.ID, winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source); err != nil {
			return nil, err
		}
		m.WinnerNextMatchID, m.WinnerNextSlot = winnerNext, winnerSlot
		m.LoserNextMatchID, m.LoserNextSlot = loserNext, loserSlot
		m.P1SourceMatchID, m.P2SourceMatchID = p1Source, p2Source
	}

	return scheduled, nil
}

// planWithRows filters the plan down to the nodes that were persisted, in
// insertion order, so it zips with the rows slice.
func planWithRows(plan []*brackets.PlanMatch, idByUID map[string]int) []*brackets.PlanMatch {
	out := make([]*brackets.PlanMatch, 0, len(idByUID))
	for _, pm := range plan {
		if _, ok := idByUID[pm.UID]; ok {
			out = append(out, pm)
		}
	}
	return out
}

func (s *bracketService) announceScheduled(ctx context.Context, tournamentID int, scheduled []*models.Match) {
	for _, m := range scheduled {
		err := s.publisher.Publish(ctx, events.MatchScheduledSubject, tournamentID, events.MatchScheduledPayload{
			MatchID:         m.ID,
			UID:             m.UID,
			Round:           m.Round,
			P1ParticipantID: m.P1ParticipantID,
			P2ParticipantID: m.P2ParticipantID,
		})
		if err != nil {
			s.logger.Warn("failed to announce scheduled match",
				slog.Int("match_id", m.ID), slog.Any("error", err))
		}
	}
}

func (s *bracketService) GetBracketView(ctx context.Context, tournamentID int) (*models.BracketView, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.CurrentBracketID == nil {
		return nil, ErrBracketNotPublished
	}

	var bracket *models.Bracket
	var matches []*models.Match

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bracket, err = s.bracketRepo.GetByID(gCtx, *t.CurrentBracketID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByBracket(gCtx, *t.CurrentBracketID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &models.BracketView{
		BracketID:    bracket.ID,
		TournamentID: tournamentID,
		Format:       bracket.Format,
	}

	bySide := make(map[models.BracketSide]map[int][]models.Match)
	for _, m := range matches {
		if bySide[m.Side] == nil {
			bySide[m.Side] = make(map[int][]models.Match)
		}
		bySide[m.Side][m.Round] = append(bySide[m.Side][m.Round], *m)
	}

	for _, side := range []models.BracketSide{models.SideWinners, models.SideLosers, models.SideFinals, models.SideConsolation} {
		roundsMap, ok := bySide[side]
		if !ok {
			continue
		}
		roundNums := make([]int, 0, len(roundsMap))
		for r := range roundsMap {
			roundNums = append(roundNums, r)
		}
		sort.Ints(roundNums)

		sv := models.SideView{Side: side}
		for _, r := range roundNums {
			sv.Rounds = append(sv.Rounds, models.RoundView{Round: r, Matches: roundsMap[r]})
		}
		view.Sides = append(view.Sides, sv)
	}
	return view, nil
}

func intPtr(v int) *int { return &v }
