package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	// ListByTournament returns the confirmed field ordered by seed.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
	UpdateSeeds(ctx context.Context, exec SQLExecutor, participants []*models.Participant) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, seed, display_ref, account_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for _, p := range participants {
		err := exec.QueryRowContext(ctx, query,
			p.TournamentID, p.Seed, p.DisplayRef, p.AccountRef,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert participant seed %d: %w", p.Seed, err)
		}
	}
	return nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `
		SELECT id, tournament_id, seed, display_ref, account_ref, created_at
		FROM participants
		WHERE id = $1`

	p := &models.Participant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.TournamentID, &p.Seed, &p.DisplayRef, &p.AccountRef, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	query := `
		SELECT id, tournament_id, seed, display_ref, account_ref, created_at
		FROM participants
		WHERE tournament_id = $1
		ORDER BY seed`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.Seed, &p.DisplayRef, &p.AccountRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateSeeds persists a live-draw re-seeding before bracket generation.
func (r *postgresParticipantRepository) UpdateSeeds(ctx context.Context, exec SQLExecutor, participants []*models.Participant) error {
	for _, p := range participants {
		result, err := exec.ExecContext(ctx,
			`UPDATE participants SET seed = $1 WHERE id = $2`, p.Seed, p.ID)
		if err != nil {
			return fmt.Errorf("failed to update seed for participant %d: %w", p.ID, err)
		}
		if err := checkAffectedRows(result, ErrParticipantNotFound); err != nil {
			return err
		}
	}
	return nil
}
