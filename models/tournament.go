package models

import (
	"encoding/json"
	"time"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusDraft     TournamentStatus = "draft"
	StatusSeeding   TournamentStatus = "seeding"
	StatusLive      TournamentStatus = "live"
	StatusCompleted TournamentStatus = "completed"
	StatusCancelled TournamentStatus = "cancelled"
)

// statusOrder encodes the monotonic progression draft -> seeding -> live -> completed.
var statusOrder = map[TournamentStatus]int{
	StatusDraft:     0,
	StatusSeeding:   1,
	StatusLive:      2,
	StatusCompleted: 3,
}

// CanTransitionTo reports whether moving to next is a legal status change.
// The only non-forward transition allowed is an explicit cancellation of a
// tournament that has not completed yet.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	if s == next {
		return false
	}
	if next == StatusCancelled {
		return s != StatusCompleted && s != StatusCancelled
	}
	cur, ok := statusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := statusOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// Terminal reports whether no further status change is possible.
func (s TournamentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PrizeTier assigns a share of the prize pool to a final placement.
// Shares are expressed in basis points so they stay integral.
type PrizeTier struct {
	Placement  int `json:"placement"`
	PercentBPS int `json:"percent_bps"`
}

type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Game            string           `json:"game" db:"game"`
	OrganizerRef    string           `json:"organizer_ref" db:"organizer_ref"`
	Format          BracketFormat    `json:"format" db:"format"`
	Status          TournamentStatus `json:"status" db:"status"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`

	// Money is tracked in minor currency units.
	EntryFee    int64   `json:"entry_fee" db:"entry_fee"`
	PrizePool   int64   `json:"prize_pool" db:"prize_pool"`
	EscrowID    *string `json:"escrow_id,omitempty" db:"escrow_id"`
	EscrowTotal int64   `json:"escrow_total" db:"escrow_total"`

	// PrizeSchemeJSON holds the placement share table ([]PrizeTier).
	PrizeSchemeJSON *string `json:"-" db:"prize_scheme_json"`
	// ConfigJSON holds the per-format FormatConfig variant.
	ConfigJSON *string `json:"-" db:"config_json"`

	CurrentBracketID *int `json:"current_bracket_id,omitempty" db:"current_bracket_id"`

	// Settlement guards. Triggered is set transactionally with the
	// completion transition; InProgress serializes concurrent settle calls.
	SettlementTriggered  bool `json:"-" db:"settlement_triggered"`
	SettlementInProgress bool `json:"-" db:"settlement_in_progress"`

	StartDate time.Time `json:"start_date" db:"start_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Optional linked entities, populated by services.
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
	Standings    []Standing    `json:"standings,omitempty" db:"-"`
}

// DefaultPrizeScheme is used when the organizer configured no prize table.
var DefaultPrizeScheme = []PrizeTier{
	{Placement: 1, PercentBPS: 7000},
	{Placement: 2, PercentBPS: 3000},
}

// PrizeScheme parses the stored prize table, falling back to the default
// 70/30 split when none is configured.
func (t *Tournament) PrizeScheme() ([]PrizeTier, error) {
	if t.PrizeSchemeJSON == nil || *t.PrizeSchemeJSON == "" {
		return DefaultPrizeScheme, nil
	}
	var tiers []PrizeTier
	if err := json.Unmarshal([]byte(*t.PrizeSchemeJSON), &tiers); err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return DefaultPrizeScheme, nil
	}
	return tiers, nil
}

// FormatConfig parses the stored per-format settings variant. A missing
// config yields the defaults for the tournament's format.
func (t *Tournament) FormatConfig() (FormatConfig, error) {
	cfg := FormatConfig{}
	if t.ConfigJSON != nil && *t.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(*t.ConfigJSON), &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyDefaults(t.Format)
	return cfg, cfg.Validate(t.Format)
}
