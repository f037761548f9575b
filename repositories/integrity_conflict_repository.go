package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var ErrConflictNotFound = errors.New("integrity conflict not found")

type IntegrityConflictRepository interface {
	Create(ctx context.Context, exec SQLExecutor, c *models.IntegrityConflict) error
	ListOpenByTournament(ctx context.Context, tournamentID int) ([]*models.IntegrityConflict, error)
	MarkResolved(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresIntegrityConflictRepository struct {
	db *sql.DB
}

func NewPostgresIntegrityConflictRepository(db *sql.DB) IntegrityConflictRepository {
	return &postgresIntegrityConflictRepository{db: db}
}

func (r *postgresIntegrityConflictRepository) Create(ctx context.Context, exec SQLExecutor, c *models.IntegrityConflict) error {
	query := `
		INSERT INTO integrity_conflicts
			(tournament_id, match_id, downstream_match_id, revision, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		c.TournamentID, c.MatchID, c.DownstreamMatchID, c.Revision, c.Detail,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert integrity conflict for match %d: %w", c.MatchID, err)
	}
	return nil
}

func (r *postgresIntegrityConflictRepository) ListOpenByTournament(ctx context.Context, tournamentID int) ([]*models.IntegrityConflict, error) {
	query := `
		SELECT id, tournament_id, match_id, downstream_match_id, revision, detail,
		       resolved, created_at, resolved_at
		FROM integrity_conflicts
		WHERE tournament_id = $1 AND resolved = FALSE
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrity conflicts: %w", err)
	}
	defer rows.Close()

	var out []*models.IntegrityConflict
	for rows.Next() {
		c := &models.IntegrityConflict{}
		if err := rows.Scan(&c.ID, &c.TournamentID, &c.MatchID, &c.DownstreamMatchID,
			&c.Revision, &c.Detail, &c.Resolved, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan integrity conflict row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresIntegrityConflictRepository) MarkResolved(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE integrity_conflicts
		SET resolved = TRUE, resolved_at = NOW()
		WHERE id = $1 AND resolved = FALSE`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve integrity conflict %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrConflictNotFound)
}
