package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

type StandingRepository interface {
	// ReplaceForTournament swaps the whole table in one transaction;
	// standings are always recomputed from scratch.
	ReplaceForTournament(ctx context.Context, exec SQLExecutor, tournamentID int, standings []*models.Standing) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) ReplaceForTournament(ctx context.Context, exec SQLExecutor, tournamentID int, standings []*models.Standing) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM standings WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to clear standings for tournament %d: %w", tournamentID, err)
	}

	query := `
		INSERT INTO standings
			(tournament_id, participant_id, points, games_played, wins, draws, losses,
			 score_for, score_against, score_difference, buchholz, had_bye, rank)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, updated_at`

	for _, s := range standings {
		err := exec.QueryRowContext(ctx, query,
			tournamentID, s.ParticipantID, s.Points, s.GamesPlayed, s.Wins, s.Draws, s.Losses,
			s.ScoreFor, s.ScoreAgainst, s.ScoreDifference, s.Buchholz, s.HadBye, s.Rank,
		).Scan(&s.ID, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert standing for participant %d: %w", s.ParticipantID, err)
		}
		s.TournamentID = tournamentID
	}
	return nil
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	query := `
		SELECT id, tournament_id, participant_id, points, games_played, wins, draws, losses,
		       score_for, score_against, score_difference, buchholz, had_bye, rank, updated_at
		FROM standings
		WHERE tournament_id = $1
		ORDER BY rank`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var out []*models.Standing
	for rows.Next() {
		s := &models.Standing{}
		if err := rows.Scan(&s.ID, &s.TournamentID, &s.ParticipantID, &s.Points, &s.GamesPlayed,
			&s.Wins, &s.Draws, &s.Losses, &s.ScoreFor, &s.ScoreAgainst, &s.ScoreDifference,
			&s.Buchholz, &s.HadBye, &s.Rank, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
