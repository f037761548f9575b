package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchVersionConflict means another writer advanced the match
	// between the caller's read and write. Callers must re-read.
	ErrMatchVersionConflict = errors.New("match was modified concurrently")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus, round *int) ([]*models.Match, error)
	// Update writes every mutable field guarded by the optimistic version
	// column; m.Version is bumped on success.
	Update(ctx context.Context, exec SQLExecutor, m *models.Match) error
	UpdateLinks(ctx context.Context, exec SQLExecutor, matchID int, winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source *int) error
	ListCheckInExpired(ctx context.Context, now time.Time) ([]*models.Match, error)
	ListConfirmExpired(ctx context.Context, now time.Time) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, bracket_id, tournament_id, uid, side, round, slot,
	p1_participant_id, p2_participant_id, p1_source_match_id, p2_source_match_id,
	winner_next_match_id, winner_next_slot, loser_next_match_id, loser_next_slot,
	status, is_bye, score_a, score_b, winner_participant_id, forfeit, evidence_key,
	reported_by, p1_checked_in, p2_checked_in, check_in_deadline, confirm_deadline,
	revision, version, progressed_revision, dispute_id, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.BracketID, &m.TournamentID, &m.UID, &m.Side, &m.Round, &m.Slot,
		&m.P1ParticipantID, &m.P2ParticipantID, &m.P1SourceMatchID, &m.P2SourceMatchID,
		&m.WinnerNextMatchID, &m.WinnerNextSlot, &m.LoserNextMatchID, &m.LoserNextSlot,
		&m.Status, &m.IsBye, &m.ScoreA, &m.ScoreB, &m.WinnerParticipantID, &m.Forfeit, &m.EvidenceKey,
		&m.ReportedBy, &m.P1CheckedIn, &m.P2CheckedIn, &m.CheckInDeadline, &m.ConfirmDeadline,
		&m.Revision, &m.Version, &m.ProgressedRevision, &m.DisputeID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(bracket_id, tournament_id, uid, side, round, slot,
			 p1_participant_id, p2_participant_id, status, is_bye,
			 check_in_deadline, score_a, score_b, winner_participant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		m.BracketID, m.TournamentID, m.UID, m.Side, m.Round, m.Slot,
		m.P1ParticipantID, m.P2ParticipantID, m.Status, m.IsBye,
		m.CheckInDeadline, m.ScoreA, m.ScoreB, m.WinnerParticipantID,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m.UID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE bracket_id = $1 ORDER BY side, round, slot`
	return r.queryMatches(ctx, query, bracketID)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus, round *int) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholder := 2
	if status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholder))
		args = append(args, *status)
		placeholder++
	}
	if round != nil {
		queryBuilder.WriteString(" AND round = $" + strconv.Itoa(placeholder))
		args = append(args, *round)
		placeholder++
	}
	queryBuilder.WriteString(" ORDER BY side, round, slot")

	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			p1_participant_id = $1, p2_participant_id = $2,
			status = $3, score_a = $4, score_b = $5, winner_participant_id = $6,
			forfeit = $7, evidence_key = $8, reported_by = $9,
			p1_checked_in = $10, p2_checked_in = $11,
			check_in_deadline = $12, confirm_deadline = $13,
			revision = $14, progressed_revision = $15, dispute_id = $16,
			version = version + 1, updated_at = NOW()
		WHERE id = $17 AND version = $18`

	result, err := exec.ExecContext(ctx, query,
		m.P1ParticipantID, m.P2ParticipantID,
		m.Status, m.ScoreA, m.ScoreB, m.WinnerParticipantID,
		m.Forfeit, m.EvidenceKey, m.ReportedBy,
		m.P1CheckedIn, m.P2CheckedIn,
		m.CheckInDeadline, m.ConfirmDeadline,
		m.Revision, m.ProgressedRevision, m.DisputeID,
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", m.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		return err
	}
	m.Version++
	return nil
}

func (r *postgresMatchRepository) UpdateLinks(ctx context.Context, exec SQLExecutor, matchID int, winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source *int) error {
	query := `
		UPDATE matches SET
			winner_next_match_id = $1, winner_next_slot = $2,
			loser_next_match_id = $3, loser_next_slot = $4,
			p1_source_match_id = $5, p2_source_match_id = $6
		WHERE id = $7`

	result, err := exec.ExecContext(ctx, query,
		winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source, matchID)
	if err != nil {
		return fmt.Errorf("failed to update links for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListCheckInExpired(ctx context.Context, now time.Time) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE status = $1 AND check_in_deadline IS NOT NULL AND check_in_deadline < $2`
	return r.queryMatches(ctx, query, models.MatchScheduled, now)
}

func (r *postgresMatchRepository) ListConfirmExpired(ctx context.Context, now time.Time) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE status = $1 AND confirm_deadline IS NOT NULL AND confirm_deadline < $2`
	return r.queryMatches(ctx, query, models.MatchAwaitingConfirmation, now)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
