package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrRatingNotFound = errors.New("rating record not found")
	// ErrRatingStale means the record's matches_played moved since the
	// caller read it.
	ErrRatingStale = errors.New("rating record was modified concurrently")
)

type RatingRepository interface {
	Get(ctx context.Context, accountRef, game string) (*models.RatingRecord, error)
	Create(ctx context.Context, exec SQLExecutor, rec *models.RatingRecord) error
	// Update is guarded by the matches_played count the caller read.
	Update(ctx context.Context, exec SQLExecutor, rec *models.RatingRecord, expectPlayed int) error
	// InsertSnapshot reports false when a snapshot for the same
	// (match, revision, account) already exists.
	InsertSnapshot(ctx context.Context, exec SQLExecutor, snap *models.RatingSnapshot) (bool, error)
	ListSnapshotsByMatch(ctx context.Context, matchID int) ([]*models.RatingSnapshot, error)
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) Get(ctx context.Context, accountRef, game string) (*models.RatingRecord, error) {
	query := `
		SELECT id, account_ref, game, rating, matches_played, last_match_id, updated_at
		FROM ratings
		WHERE account_ref = $1 AND game = $2`

	rec := &models.RatingRecord{}
	err := r.db.QueryRowContext(ctx, query, accountRef, game).Scan(
		&rec.ID, &rec.AccountRef, &rec.Game, &rec.Rating,
		&rec.MatchesPlayed, &rec.LastMatchID, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to scan rating for %s/%s: %w", accountRef, game, err)
	}
	return rec, nil
}

func (r *postgresRatingRepository) Create(ctx context.Context, exec SQLExecutor, rec *models.RatingRecord) error {
	query := `
		INSERT INTO ratings (account_ref, game, rating, matches_played, last_match_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, updated_at`

	err := exec.QueryRowContext(ctx, query,
		rec.AccountRef, rec.Game, rec.Rating, rec.MatchesPlayed, rec.LastMatchID,
	).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rating for %s/%s: %w", rec.AccountRef, rec.Game, err)
	}
	return nil
}

func (r *postgresRatingRepository) Update(ctx context.Context, exec SQLExecutor, rec *models.RatingRecord, expectPlayed int) error {
	query := `
		UPDATE ratings
		SET rating = $1, matches_played = $2, last_match_id = $3, updated_at = NOW()
		WHERE id = $4 AND matches_played = $5`

	result, err := exec.ExecContext(ctx, query,
		rec.Rating, rec.MatchesPlayed, rec.LastMatchID, rec.ID, expectPlayed)
	if err != nil {
		return fmt.Errorf("failed to update rating %d: %w", rec.ID, err)
	}
	return checkAffectedRows(result, ErrRatingStale)
}

func (r *postgresRatingRepository) InsertSnapshot(ctx context.Context, exec SQLExecutor, snap *models.RatingSnapshot) (bool, error) {
	query := `
		INSERT INTO rating_snapshots
			(match_id, revision, account_ref, game, rating_before, rating_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, revision, account_ref) DO NOTHING
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		snap.MatchID, snap.Revision, snap.AccountRef, snap.Game,
		snap.RatingBefore, snap.RatingAfter,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert rating snapshot for match %d: %w", snap.MatchID, err)
	}
	return true, nil
}

func (r *postgresRatingRepository) ListSnapshotsByMatch(ctx context.Context, matchID int) ([]*models.RatingSnapshot, error) {
	query := `
		SELECT id, match_id, revision, account_ref, game, rating_before, rating_after, created_at
		FROM rating_snapshots
		WHERE match_id = $1
		ORDER BY revision, account_ref`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.RatingSnapshot
	for rows.Next() {
		s := &models.RatingSnapshot{}
		if err := rows.Scan(&s.ID, &s.MatchID, &s.Revision, &s.AccountRef, &s.Game,
			&s.RatingBefore, &s.RatingAfter, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating snapshot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
