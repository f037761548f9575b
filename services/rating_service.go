package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

const (
	// BaseRating seeds a new account's first record.
	BaseRating = 1200.0
	// PlacementMatches is how many matches play with the placement K.
	PlacementMatches   = 10
	placementKFactor   = 64.0
	establishedKFactor = 32.0
)

// RatingService applies ELO updates from the completion event stream.
// Every update is snapshotted per (match, revision, account): re-delivered
// events no-op on the snapshot key, and a revision bump reverses the prior
// revision's deltas before applying the new result. Forfeits and walkovers
// carry no skill signal and are skipped.
type RatingService interface {
	HandleMatchCompleted(ctx context.Context, ev events.Event) error
	GetRating(ctx context.Context, accountRef, game string) (*models.RatingRecord, error)
}

type ratingService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	ratingRepo      repositories.RatingRepository
	locks           *keyedMutex
	logger          *slog.Logger
}

func NewRatingService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	ratingRepo repositories.RatingRepository,
	logger *slog.Logger,
) RatingService {
	return &ratingService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		ratingRepo:      ratingRepo,
		locks:           newKeyedMutex(),
		logger:          logger,
	}
}

func (s *ratingService) GetRating(ctx context.Context, accountRef, game string) (*models.RatingRecord, error) {
	return s.ratingRepo.Get(ctx, accountRef, game)
}

func (s *ratingService) HandleMatchCompleted(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.MatchCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T on %s", ev.Payload, ev.Subject)
	}
	if payload.Forfeit {
		return nil
	}

	unlock := s.locks.Lock(payload.MatchID)
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, payload.MatchID)
	if err != nil {
		return err
	}
	// Ratings need two real players on the board.
	if m.P1ParticipantID == nil || m.P2ParticipantID == nil || m.IsBye {
		return nil
	}

	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		return err
	}
	p1, err := s.participantRepo.GetByID(ctx, *m.P1ParticipantID)
	if err != nil {
		return err
	}
	p2, err := s.participantRepo.GetByID(ctx, *m.P2ParticipantID)
	if err != nil {
		return err
	}

	return s.apply(ctx, t.Game, m, payload, p1.AccountRef, p2.AccountRef)
}

func (s *ratingService) apply(ctx context.Context, game string, m *models.Match, payload events.MatchCompletedPayload, accountA, accountB string) error {
	recA, createdA, err := s.getOrNew(ctx, accountA, game)
	if err != nil {
		return err
	}
	recB, createdB, err := s.getOrNew(ctx, accountB, game)
	if err != nil {
		return err
	}

	// A corrected result first unwinds the deltas of the revision it
	// replaces, so ratings track the final outcome, not the history.
	firstApplication := true
	if payload.Revision > 1 {
		snapshots, err := s.ratingRepo.ListSnapshotsByMatch(ctx, m.ID)
		if err != nil {
			return err
		}
		prior := latestPriorRevision(snapshots, payload.Revision)
		if prior > 0 {
			firstApplication = false
			for _, snap := range snapshots {
				if snap.Revision != prior {
					continue
				}
				switch snap.AccountRef {
				case recA.AccountRef:
					recA.Rating -= snap.Delta()
				case recB.AccountRef:
					recB.Rating -= snap.Delta()
				}
			}
		}
	}

	scoreA := scoreFor(payload, *m.P1ParticipantID)
	expectedA := 1.0 / (1.0 + math.Pow(10, (recB.Rating-recA.Rating)/400.0))

	// A shared K keeps the exchange zero-sum even when only one side is
	// still in placement.
	k := math.Max(kFactor(recA.MatchesPlayed), kFactor(recB.MatchesPlayed))
	deltaA := k * (scoreA - expectedA)

	beforeA, beforeB := recA.Rating, recB.Rating
	afterA, afterB := beforeA+deltaA, beforeB-deltaA

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		inserted, err := s.ratingRepo.InsertSnapshot(ctx, tx, &models.RatingSnapshot{
			MatchID:      m.ID,
			Revision:     payload.Revision,
			AccountRef:   recA.AccountRef,
			Game:         game,
			RatingBefore: beforeA,
			RatingAfter:  afterA,
		})
		if err != nil {
			return err
		}
		if !inserted {
			// This revision has been applied before; leave everything as is.
			return errAlreadyApplied
		}
		if _, err := s.ratingRepo.InsertSnapshot(ctx, tx, &models.RatingSnapshot{
			MatchID:      m.ID,
			Revision:     payload.Revision,
			AccountRef:   recB.AccountRef,
			Game:         game,
			RatingBefore: beforeB,
			RatingAfter:  afterB,
		}); err != nil {
			return err
		}

		if err := s.persistRecord(ctx, tx, recA, createdA, afterA, firstApplication, m.ID); err != nil {
			return err
		}
		return s.persistRecord(ctx, tx, recB, createdB, afterB, firstApplication, m.ID)
	})
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	if err == nil {
		s.logger.Info("ratings updated",
			slog.Int("match_id", m.ID),
			slog.Int("revision", payload.Revision),
			slog.Float64("delta", deltaA))
	}
	return err
}

var errAlreadyApplied = errors.New("rating revision already applied")

func (s *ratingService) getOrNew(ctx context.Context, accountRef, game string) (*models.RatingRecord, bool, error) {
	rec, err := s.ratingRepo.Get(ctx, accountRef, game)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, repositories.ErrRatingNotFound) {
		return nil, false, err
	}
	return &models.RatingRecord{AccountRef: accountRef, Game: game, Rating: BaseRating}, true, nil
}

func (s *ratingService) persistRecord(ctx context.Context, tx *sql.Tx, rec *models.RatingRecord, created bool, after float64, firstApplication bool, matchID int) error {
	expectPlayed := rec.MatchesPlayed
	rec.Rating = after
	if firstApplication {
		rec.MatchesPlayed++
	}
	rec.LastMatchID = &matchID

	if created {
		return s.ratingRepo.Create(ctx, tx, rec)
	}
	return s.ratingRepo.Update(ctx, tx, rec, expectPlayed)
}

func kFactor(matchesPlayed int) float64 {
	if matchesPlayed < PlacementMatches {
		return placementKFactor
	}
	return establishedKFactor
}

// scoreFor maps the outcome to the ELO score of the slot-1 participant.
func scoreFor(payload events.MatchCompletedPayload, p1ID int) float64 {
	switch payload.WinnerParticipantID {
	case 0:
		return 0.5
	case p1ID:
		return 1.0
	default:
		return 0.0
	}
}

// latestPriorRevision finds the highest snapshot revision below limit.
func latestPriorRevision(snapshots []*models.RatingSnapshot, limit int) int {
	prior := 0
	for _, snap := range snapshots {
		if snap.Revision < limit && snap.Revision > prior {
			prior = snap.Revision
		}
	}
	return prior
}
