package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")
	ErrInvalidSeeding        = errors.New("participant seeds must be unique and contiguous starting at 1")
)

type GenerateParams struct {
	Tournament *models.Tournament
	// Participants ordered by seed, an immutable snapshot taken from the
	// registration system at generation time.
	Participants []*models.Participant
	Config       models.FormatConfig
}

// PlanMatch is one node of a generated bracket before persistence. UIDs are
// stable within the plan; the persistence pass maps them to database ids.
type PlanMatch struct {
	UID   string
	Side  models.BracketSide
	Round int
	Slot  int

	Participant1ID *int
	Participant2ID *int

	// Feeder links by plan UID.
	Source1UID *string
	Source2UID *string

	// Successor links by plan UID.
	WinnerToUID  *string
	WinnerToSlot int
	LoserToUID   *string
	LoserToSlot  int

	// A bye node auto-resolves without a state machine instance.
	// ByeParticipantID is set when the advancing participant is already
	// known at generation time; a bye with only a source link is a
	// pass-through whose occupant arrives during progression.
	IsBye            bool
	ByeParticipantID *int
}

// Generator turns a seeded participant list into a bracket plan.
// Generation is deterministic: the same inputs always produce the same
// plan, with ties broken by seed order.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*PlanMatch, error)
	Name() string
}

// ForFormat returns the generator for the tournament format.
func ForFormat(format models.BracketFormat) (Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.FormatSwiss:
		return NewSwissGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported bracket format %q", format)
	}
}

// validateParticipants enforces the generation preconditions shared by all
// formats before any node is created.
func validateParticipants(participants []*models.Participant) error {
	if len(participants) < 2 {
		return ErrNotEnoughParticipants
	}
	seen := make(map[int]bool, len(participants))
	for _, p := range participants {
		if p.Seed < 1 || p.Seed > len(participants) || seen[p.Seed] {
			return ErrInvalidSeeding
		}
		seen[p.Seed] = true
	}
	return nil
}

// bySeed returns the participants indexed so that bySeed[i] has seed i+1.
func bySeed(participants []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, len(participants))
	for _, p := range participants {
		out[p.Seed-1] = p
	}
	return out
}

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
