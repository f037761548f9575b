package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentStatusConflict = errors.New("tournament status changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error
	SetCurrentBracket(ctx context.Context, exec SQLExecutor, id, bracketID int) error
	AddEscrow(ctx context.Context, id int, escrowID string, amount int64) error
	CompleteAndTriggerSettlement(ctx context.Context, exec SQLExecutor, id int) (bool, error)
	TryBeginSettlement(ctx context.Context, id int) (bool, error)
	FinishSettlement(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, game, organizer_ref, format, status, max_participants,
	entry_fee, prize_pool, escrow_id, escrow_total,
	prize_scheme_json, config_json, current_bracket_id,
	settlement_triggered, settlement_in_progress, start_date, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Game, &t.OrganizerRef, &t.Format, &t.Status, &t.MaxParticipants,
		&t.EntryFee, &t.PrizePool, &t.EscrowID, &t.EscrowTotal,
		&t.PrizeSchemeJSON, &t.ConfigJSON, &t.CurrentBracketID,
		&t.SettlementTriggered, &t.SettlementInProgress, &t.StartDate, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, game, organizer_ref, format, status, max_participants,
			 entry_fee, prize_pool, prize_scheme_json, config_json, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Game, t.OrganizerRef, t.Format, t.Status, t.MaxParticipants,
		t.EntryFee, t.PrizePool, t.PrizeSchemeJSON, t.ConfigJSON, t.StartDate,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE status = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []*models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateStatus moves the tournament from one exact status to another. A
// zero-row update means another writer got there first.
func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusConflict)
}

func (r *postgresTournamentRepository) SetCurrentBracket(ctx context.Context, exec SQLExecutor, id, bracketID int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET current_bracket_id = $1 WHERE id = $2`,
		bracketID, id)
	if err != nil {
		return fmt.Errorf("failed to set current bracket for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) AddEscrow(ctx context.Context, id int, escrowID string, amount int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET escrow_id = $1, escrow_total = escrow_total + $2 WHERE id = $3`,
		escrowID, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add escrow to tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// CompleteAndTriggerSettlement flips the tournament to completed and arms
// the settlement trigger in a single statement so the trigger can fire at
// most once even under duplicate completion events.
func (r *postgresTournamentRepository) CompleteAndTriggerSettlement(ctx context.Context, exec SQLExecutor, id int) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE tournaments
		SET status = $1, settlement_triggered = TRUE
		WHERE id = $2 AND status = $3 AND settlement_triggered = FALSE`,
		models.StatusCompleted, id, models.StatusLive)
	if err != nil {
		return false, fmt.Errorf("failed to complete tournament %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *postgresTournamentRepository) TryBeginSettlement(ctx context.Context, id int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tournaments
		SET settlement_in_progress = TRUE
		WHERE id = $1 AND settlement_in_progress = FALSE`,
		id)
	if err != nil {
		return false, fmt.Errorf("failed to begin settlement for tournament %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *postgresTournamentRepository) FinishSettlement(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET settlement_in_progress = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to finish settlement for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
