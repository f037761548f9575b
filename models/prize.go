package models

import "time"

type DistributionStatus string

const (
	DistributionPending DistributionStatus = "pending"
	DistributionPaid    DistributionStatus = "paid"
	DistributionFailed  DistributionStatus = "failed"
)

type DistributionKind string

const (
	DistributionPayout DistributionKind = "payout"
	DistributionRefund DistributionKind = "refund"
)

// PrizeDistribution is one ledger instruction: pay a placement share to a
// recipient, or refund an entry fee on cancellation. The deterministic
// IdempotencyKey makes both the local insert and the ledger credit safe to
// retry; a paid row is never paid again.
type PrizeDistribution struct {
	ID               int                `json:"id" db:"id"`
	TournamentID     int                `json:"tournament_id" db:"tournament_id"`
	Kind             DistributionKind   `json:"kind" db:"kind"`
	Placement        int                `json:"placement" db:"placement"`
	RecipientAccount string             `json:"recipient_account" db:"recipient_account"`
	Amount           int64              `json:"amount" db:"amount"`
	IdempotencyKey   string             `json:"idempotency_key" db:"idempotency_key"`
	Status           DistributionStatus `json:"status" db:"status"`
	Attempts         int                `json:"attempts" db:"attempts"`
	LastError        *string            `json:"last_error,omitempty" db:"last_error"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}
