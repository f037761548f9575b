package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var ErrDistributionNotFound = errors.New("prize distribution not found")

type PrizeRepository interface {
	// InsertIfAbsent creates the distribution row unless one with the same
	// idempotency key already exists; reports whether a row was created.
	// When it was not, d is populated from the existing row.
	InsertIfAbsent(ctx context.Context, exec SQLExecutor, d *models.PrizeDistribution) (bool, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.DistributionStatus, lastError *string) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.PrizeDistribution, error)
	ListRetryable(ctx context.Context, maxAttempts int) ([]*models.PrizeDistribution, error)
}

type postgresPrizeRepository struct {
	db *sql.DB
}

func NewPostgresPrizeRepository(db *sql.DB) PrizeRepository {
	return &postgresPrizeRepository{db: db}
}

const distributionColumns = `
	id, tournament_id, kind, placement, recipient_account, amount,
	idempotency_key, status, attempts, last_error, created_at, updated_at`

func scanDistribution(row interface{ Scan(...interface{}) error }) (*models.PrizeDistribution, error) {
	d := &models.PrizeDistribution{}
	err := row.Scan(
		&d.ID, &d.TournamentID, &d.Kind, &d.Placement, &d.RecipientAccount, &d.Amount,
		&d.IdempotencyKey, &d.Status, &d.Attempts, &d.LastError, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *postgresPrizeRepository) InsertIfAbsent(ctx context.Context, exec SQLExecutor, d *models.PrizeDistribution) (bool, error) {
	query := `
		INSERT INTO prize_distributions
			(tournament_id, kind, placement, recipient_account, amount, idempotency_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		d.TournamentID, d.Kind, d.Placement, d.RecipientAccount, d.Amount,
		d.IdempotencyKey, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to insert distribution %s: %w", d.IdempotencyKey, err)
	}

	existing, err := r.getByKey(ctx, d.IdempotencyKey)
	if err != nil {
		return false, err
	}
	*d = *existing
	return false, nil
}

func (r *postgresPrizeRepository) getByKey(ctx context.Context, key string) (*models.PrizeDistribution, error) {
	query := `SELECT` + distributionColumns + ` FROM prize_distributions WHERE idempotency_key = $1`
	d, err := scanDistribution(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDistributionNotFound
		}
		return nil, fmt.Errorf("failed to scan distribution %s: %w", key, err)
	}
	return d, nil
}

func (r *postgresPrizeRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.DistributionStatus, lastError *string) error {
	query := `
		UPDATE prize_distributions
		SET status = $1, last_error = $2, attempts = attempts + 1, updated_at = NOW()
		WHERE id = $3`

	result, err := exec.ExecContext(ctx, query, status, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update distribution %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDistributionNotFound)
}

func (r *postgresPrizeRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.PrizeDistribution, error) {
	query := `SELECT` + distributionColumns + `
		FROM prize_distributions
		WHERE tournament_id = $1
		ORDER BY kind, placement`
	return r.queryDistributions(ctx, query, tournamentID)
}

func (r *postgresPrizeRepository) ListRetryable(ctx context.Context, maxAttempts int) ([]*models.PrizeDistribution, error) {
	query := `SELECT` + distributionColumns + `
		FROM prize_distributions
		WHERE status = $1 AND attempts < $2
		ORDER BY updated_at`
	return r.queryDistributions(ctx, query, models.DistributionFailed, maxAttempts)
}

func (r *postgresPrizeRepository) queryDistributions(ctx context.Context, query string, args ...interface{}) ([]*models.PrizeDistribution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var out []*models.PrizeDistribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
