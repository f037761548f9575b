package db

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	name       string
	statements []string
}

// schemaMigrations are applied in order; each entry runs once, inside its
// own transaction, and is recorded in schema_migrations.
var schemaMigrations = []migration{
	{
		name: "0001_create_tournaments",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS tournaments (
				id                     SERIAL PRIMARY KEY,
				name                   TEXT NOT NULL,
				game                   TEXT NOT NULL,
				organizer_ref          TEXT NOT NULL,
				format                 TEXT NOT NULL,
				status                 TEXT NOT NULL DEFAULT 'draft',
				max_participants       INT NOT NULL,
				entry_fee              BIGINT NOT NULL DEFAULT 0,
				prize_pool             BIGINT NOT NULL DEFAULT 0,
				escrow_id              TEXT,
				escrow_total           BIGINT NOT NULL DEFAULT 0,
				prize_scheme_json      TEXT,
				config_json            TEXT,
				current_bracket_id     INT,
				settlement_triggered   BOOLEAN NOT NULL DEFAULT FALSE,
				settlement_in_progress BOOLEAN NOT NULL DEFAULT FALSE,
				start_date             TIMESTAMPTZ NOT NULL,
				created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
	{
		name: "0002_create_participants",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS participants (
				id            SERIAL PRIMARY KEY,
				tournament_id INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				seed          INT NOT NULL,
				display_ref   TEXT NOT NULL,
				account_ref   TEXT NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (tournament_id, seed),
				UNIQUE (tournament_id, account_ref)
			)`,
		},
	},
	{
		name: "0003_create_brackets",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS brackets (
				id            SERIAL PRIMARY KEY,
				tournament_id INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				format        TEXT NOT NULL,
				published     BOOLEAN NOT NULL DEFAULT FALSE,
				superseded_by INT REFERENCES brackets(id),
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
	{
		name: "0004_create_matches",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS matches (
				id                    SERIAL PRIMARY KEY,
				bracket_id            INT NOT NULL REFERENCES brackets(id) ON DELETE CASCADE,
				tournament_id         INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				uid                   TEXT NOT NULL,
				side                  TEXT NOT NULL,
				round                 INT NOT NULL,
				slot                  INT NOT NULL,
				p1_participant_id     INT REFERENCES participants(id),
				p2_participant_id     INT REFERENCES participants(id),
				p1_source_match_id    INT REFERENCES matches(id),
				p2_source_match_id    INT REFERENCES matches(id),
				winner_next_match_id  INT REFERENCES matches(id),
				winner_next_slot      INT,
				loser_next_match_id   INT REFERENCES matches(id),
				loser_next_slot       INT,
				status                TEXT NOT NULL DEFAULT 'pending',
				is_bye                BOOLEAN NOT NULL DEFAULT FALSE,
				score_a               INT,
				score_b               INT,
				winner_participant_id INT REFERENCES participants(id),
				forfeit               BOOLEAN NOT NULL DEFAULT FALSE,
				evidence_key          TEXT,
				reported_by           INT REFERENCES participants(id),
				p1_checked_in         BOOLEAN NOT NULL DEFAULT FALSE,
				p2_checked_in         BOOLEAN NOT NULL DEFAULT FALSE,
				check_in_deadline     TIMESTAMPTZ,
				confirm_deadline      TIMESTAMPTZ,
				revision              INT NOT NULL DEFAULT 0,
				version               INT NOT NULL DEFAULT 0,
				progressed_revision   INT NOT NULL DEFAULT 0,
				dispute_id            INT,
				created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (bracket_id, uid)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_matches_tournament ON matches (tournament_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_matches_checkin_deadline ON matches (check_in_deadline) WHERE status = 'scheduled'`,
			`CREATE INDEX IF NOT EXISTS idx_matches_confirm_deadline ON matches (confirm_deadline) WHERE status = 'awaiting_confirmation'`,
		},
	},
	{
		name: "0005_create_disputes",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS disputes (
				id                   SERIAL PRIMARY KEY,
				match_id             INT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
				tournament_id        INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				filer_participant_id INT NOT NULL REFERENCES participants(id),
				claim                TEXT NOT NULL,
				evidence_key         TEXT,
				status               TEXT NOT NULL DEFAULT 'open',
				claimed_winner_id    INT REFERENCES participants(id),
				claimed_score_a      INT,
				claimed_score_b      INT,
				resolution           TEXT,
				resolver_ref         TEXT,
				created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				resolved_at          TIMESTAMPTZ
			)`,
			`ALTER TABLE matches ADD CONSTRAINT fk_matches_dispute
				FOREIGN KEY (dispute_id) REFERENCES disputes(id)`,
		},
	},
	{
		name: "0006_create_ratings",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS ratings (
				id             SERIAL PRIMARY KEY,
				account_ref    TEXT NOT NULL,
				game           TEXT NOT NULL,
				rating         DOUBLE PRECISION NOT NULL,
				matches_played INT NOT NULL DEFAULT 0,
				last_match_id  INT,
				updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (account_ref, game)
			)`,
			`CREATE TABLE IF NOT EXISTS rating_snapshots (
				id            SERIAL PRIMARY KEY,
				match_id      INT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
				revision      INT NOT NULL,
				account_ref   TEXT NOT NULL,
				game          TEXT NOT NULL,
				rating_before DOUBLE PRECISION NOT NULL,
				rating_after  DOUBLE PRECISION NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (match_id, revision, account_ref)
			)`,
		},
	},
	{
		name: "0007_create_prize_distributions",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS prize_distributions (
				id                SERIAL PRIMARY KEY,
				tournament_id     INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				kind              TEXT NOT NULL,
				placement         INT NOT NULL DEFAULT 0,
				recipient_account TEXT NOT NULL,
				amount            BIGINT NOT NULL,
				idempotency_key   TEXT NOT NULL UNIQUE,
				status            TEXT NOT NULL DEFAULT 'pending',
				attempts          INT NOT NULL DEFAULT 0,
				last_error        TEXT,
				created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_distributions_retry ON prize_distributions (status, attempts)`,
		},
	},
	{
		name: "0008_create_standings",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS standings (
				id               SERIAL PRIMARY KEY,
				tournament_id    INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				participant_id   INT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
				points           INT NOT NULL DEFAULT 0,
				games_played     INT NOT NULL DEFAULT 0,
				wins             INT NOT NULL DEFAULT 0,
				draws            INT NOT NULL DEFAULT 0,
				losses           INT NOT NULL DEFAULT 0,
				score_for        INT NOT NULL DEFAULT 0,
				score_against    INT NOT NULL DEFAULT 0,
				score_difference INT NOT NULL DEFAULT 0,
				buchholz         INT NOT NULL DEFAULT 0,
				had_bye          BOOLEAN NOT NULL DEFAULT FALSE,
				rank             INT NOT NULL,
				updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (tournament_id, participant_id)
			)`,
		},
	},
	{
		name: "0009_create_integrity_conflicts",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS integrity_conflicts (
				id                  SERIAL PRIMARY KEY,
				tournament_id       INT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
				match_id            INT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
				downstream_match_id INT REFERENCES matches(id),
				revision            INT NOT NULL,
				detail              TEXT NOT NULL,
				resolved            BOOLEAN NOT NULL DEFAULT FALSE,
				created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				resolved_at         TIMESTAMPTZ
			)`,
		},
	},
}

// Migrate brings the schema up to date. Safe to call on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range schemaMigrations {
		applied, err := hasApplied(ctx, db, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func hasApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE name = $1`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return count > 0, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", m.name, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.name, err)
	}
	return nil
}
