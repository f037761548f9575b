package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var ErrBracketNotFound = errors.New("bracket not found")

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	MarkPublished(ctx context.Context, exec SQLExecutor, id int) error
	// Supersede points a retired bracket at its replacement. Published
	// brackets are never mutated beyond this marker.
	Supersede(ctx context.Context, exec SQLExecutor, oldID, newID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	query := `
		INSERT INTO brackets (tournament_id, format, published)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, b.TournamentID, b.Format, b.Published).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bracket: %w", err)
	}
	return nil
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	query := `
		SELECT id, tournament_id, format, published, superseded_by, created_at
		FROM brackets
		WHERE id = $1`

	b := &models.Bracket{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.TournamentID, &b.Format, &b.Published, &b.SupersededBy, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket %d: %w", id, err)
	}
	return b, nil
}

func (r *postgresBracketRepository) MarkPublished(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE brackets SET published = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to publish bracket %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) Supersede(ctx context.Context, exec SQLExecutor, oldID, newID int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE brackets SET superseded_by = $1 WHERE id = $2`, newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to supersede bracket %d: %w", oldID, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}
