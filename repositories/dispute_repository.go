package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrDisputeNotFound        = errors.New("dispute not found")
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")
)

type DisputeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, d *models.Dispute) error
	GetByID(ctx context.Context, id int) (*models.Dispute, error)
	GetOpenByMatch(ctx context.Context, matchID int) (*models.Dispute, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Dispute, error)
	Resolve(ctx context.Context, exec SQLExecutor, id int, resolution models.DisputeResolution, resolverRef string) error
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

const disputeColumns = `
	id, match_id, tournament_id, filer_participant_id, claim, evidence_key,
	status, claimed_winner_id, claimed_score_a, claimed_score_b,
	resolution, resolver_ref, created_at, resolved_at`

func scanDispute(row interface{ Scan(...interface{}) error }) (*models.Dispute, error) {
	d := &models.Dispute{}
	err := row.Scan(
		&d.ID, &d.MatchID, &d.TournamentID, &d.FilerParticipantID, &d.Claim, &d.EvidenceKey,
		&d.Status, &d.ClaimedWinnerID, &d.ClaimedScoreA, &d.ClaimedScoreB,
		&d.Resolution, &d.ResolverRef, &d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *postgresDisputeRepository) Create(ctx context.Context, exec SQLExecutor, d *models.Dispute) error {
	query := `
		INSERT INTO disputes
			(match_id, tournament_id, filer_participant_id, claim, evidence_key,
			 status, claimed_winner_id, claimed_score_a, claimed_score_b)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		d.MatchID, d.TournamentID, d.FilerParticipantID, d.Claim, d.EvidenceKey,
		d.Status, d.ClaimedWinnerID, d.ClaimedScoreA, d.ClaimedScoreB,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispute for match %d: %w", d.MatchID, err)
	}
	return nil
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	query := `SELECT` + disputeColumns + ` FROM disputes WHERE id = $1`
	d, err := scanDispute(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %d: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) GetOpenByMatch(ctx context.Context, matchID int) (*models.Dispute, error) {
	query := `SELECT` + disputeColumns + ` FROM disputes WHERE match_id = $1 AND status != $2`
	d, err := scanDispute(r.db.QueryRowContext(ctx, query, matchID, models.DisputeResolved))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan open dispute for match %d: %w", matchID, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Dispute, error) {
	query := `SELECT` + disputeColumns + ` FROM disputes WHERE tournament_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query disputes: %w", err)
	}
	defer rows.Close()

	var out []*models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispute row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *postgresDisputeRepository) Resolve(ctx context.Context, exec SQLExecutor, id int, resolution models.DisputeResolution, resolverRef string) error {
	query := `
		UPDATE disputes
		SET status = $1, resolution = $2, resolver_ref = $3, resolved_at = NOW()
		WHERE id = $4 AND status != $1`

	result, err := exec.ExecContext(ctx, query, models.DisputeResolved, resolution, resolverRef, id)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeAlreadyResolved)
}
