package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type CreateTournamentInput struct {
	Name            string
	Game            string
	OrganizerRef    string
	Format          models.BracketFormat
	MaxParticipants int
	EntryFee        int64
	PrizePool       int64
	PrizeScheme     []models.PrizeTier
	Config          *models.FormatConfig
	StartDate       time.Time
}

// RegisterEntry is one confirmed participant handed over by the
// registration system, already seed-ranked.
type RegisterEntry struct {
	Seed       int
	DisplayRef string
	AccountRef string
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// OpenSeeding freezes the configuration and admits the participant
	// handover.
	OpenSeeding(ctx context.Context, id int) error
	// RegisterParticipants ingests the confirmed field and escrows the
	// collected entry fees.
	RegisterParticipants(ctx context.Context, id int, escrowID string, entries []RegisterEntry) error
	// Cancel aborts a tournament that has not completed. Entry fee refunds
	// are driven by the cancellation event.
	Cancel(ctx context.Context, id int, reason string) error
}

type tournamentService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	publisher       events.Publisher
	logger          *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		publisher:       publisher,
		logger:          logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" || input.Game == "" || input.OrganizerRef == "" {
		return nil, fmt.Errorf("%w: name, game and organizer are required", ErrValidationFailed)
	}
	if !input.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrValidationFailed, input.Format)
	}
	if input.MaxParticipants < 2 {
		return nil, fmt.Errorf("%w: max participants must be at least 2", ErrValidationFailed)
	}
	if input.EntryFee < 0 || input.PrizePool < 0 {
		return nil, fmt.Errorf("%w: entry fee and prize pool must not be negative", ErrValidationFailed)
	}

	t := &models.Tournament{
		Name:            input.Name,
		Game:            input.Game,
		OrganizerRef:    input.OrganizerRef,
		Format:          input.Format,
		Status:          models.StatusDraft,
		MaxParticipants: input.MaxParticipants,
		EntryFee:        input.EntryFee,
		PrizePool:       input.PrizePool,
		StartDate:       input.StartDate,
	}

	if len(input.PrizeScheme) > 0 {
		if err := validatePrizeScheme(input.PrizeScheme); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(input.PrizeScheme)
		if err != nil {
			return nil, fmt.Errorf("marshal prize scheme: %w", err)
		}
		scheme := string(raw)
		t.PrizeSchemeJSON = &scheme
	}

	cfg := models.FormatConfig{}
	if input.Config != nil {
		cfg = *input.Config
	}
	cfg.ApplyDefaults(input.Format)
	if err := cfg.Validate(input.Format); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal format config: %w", err)
	}
	cfgJSON := string(rawCfg)
	t.ConfigJSON = &cfgJSON

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("format", string(t.Format)))
	return t, nil
}

func validatePrizeScheme(tiers []models.PrizeTier) error {
	total := 0
	seen := make(map[int]bool, len(tiers))
	for _, tier := range tiers {
		if tier.Placement < 1 {
			return fmt.Errorf("%w: prize placement must be positive", ErrValidationFailed)
		}
		if seen[tier.Placement] {
			return fmt.Errorf("%w: duplicate prize placement %d", ErrValidationFailed, tier.Placement)
		}
		seen[tier.Placement] = true
		if tier.PercentBPS <= 0 {
			return fmt.Errorf("%w: prize share must be positive", ErrValidationFailed)
		}
		total += tier.PercentBPS
	}
	if total != 10000 {
		return fmt.Errorf("%w: prize shares must sum to 10000 basis points, got %d", ErrValidationFailed, total)
	}
	return nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListByTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		t.Participants = append(t.Participants, *p)
	}
	return t, nil
}

func (s *tournamentService) OpenSeeding(ctx context.Context, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.Status.CanTransitionTo(models.StatusSeeding) {
		return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusSeeding)
	}
	return s.tournamentRepo.UpdateStatus(ctx, s.db, id, t.Status, models.StatusSeeding)
}

func (s *tournamentService) RegisterParticipants(ctx context.Context, id int, escrowID string, entries []RegisterEntry) error {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != models.StatusSeeding {
		return ErrTournamentNotSeeding
	}
	if len(entries) < 2 {
		return fmt.Errorf("%w: at least 2 participants required", ErrValidationFailed)
	}
	if len(entries) > t.MaxParticipants {
		return fmt.Errorf("%w: %d participants exceed the limit of %d", ErrValidationFailed, len(entries), t.MaxParticipants)
	}

	existing, err := s.participantRepo.ListByTournament(ctx, id)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrParticipantsAlreadyRegistered
	}

	seen := make(map[int]bool, len(entries))
	participants := make([]*models.Participant, 0, len(entries))
	for _, e := range entries {
		if e.Seed < 1 || e.Seed > len(entries) || seen[e.Seed] {
			return fmt.Errorf("%w: seeds must be unique and contiguous starting at 1", ErrValidationFailed)
		}
		seen[e.Seed] = true
		if e.AccountRef == "" {
			return fmt.Errorf("%w: participant seed %d has no account reference", ErrValidationFailed, e.Seed)
		}
		participants = append(participants, &models.Participant{
			TournamentID: id,
			Seed:         e.Seed,
			DisplayRef:   e.DisplayRef,
			AccountRef:   e.AccountRef,
		})
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.participantRepo.CreateBatch(ctx, tx, participants)
	})
	if err != nil {
		return err
	}

	if t.EntryFee > 0 {
		escrowed := t.EntryFee * int64(len(participants))
		if err := s.tournamentRepo.AddEscrow(ctx, id, escrowID, escrowed); err != nil {
			return err
		}
		s.logger.Info("entry fees escrowed",
			slog.Int("tournament_id", id),
			slog.Int64("amount", escrowed),
			slog.String("escrow_id", escrowID))
	}
	return nil
}

func (s *tournamentService) Cancel(ctx context.Context, id int, reason string) error {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.Status.CanTransitionTo(models.StatusCancelled) {
		return ErrTournamentAlreadyTerminal
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, s.db, id, t.Status, models.StatusCancelled); err != nil {
		return err
	}

	// Unfinished matches are cancelled so no further results can publish.
	matches, err := s.matchRepo.ListByTournament(ctx, id, nil, nil)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.Status.Terminal() {
			continue
		}
		m.Status = models.MatchCancelled
		if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
			return err
		}
	}

	s.logger.Info("tournament cancelled",
		slog.Int("tournament_id", id),
		slog.String("reason", reason))
	return s.publisher.Publish(ctx, events.TournamentCancelledSubject, id,
		events.TournamentCancelledPayload{Reason: reason})
}
