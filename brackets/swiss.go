package brackets

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Dosada05/tournament-core/models"
)

type SwissGenerator struct{}

func NewSwissGenerator() Generator {
	return &SwissGenerator{}
}

func (g *SwissGenerator) Name() string { return "Swiss" }

// Generate produces round one only: later rounds depend on results and are
// paired by the progression engine through PairSwissRound. Round one pairs
// the top seed half against the bottom half (1 vs N/2+1, 2 vs N/2+2, ...);
// with an odd field the lowest seed receives the bye.
func (g *SwissGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlanMatch, error) {
	if err := validateParticipants(params.Participants); err != nil {
		return nil, err
	}
	if params.Config.Swiss == nil {
		return nil, fmt.Errorf("swiss generator requires a swiss config")
	}

	seeded := bySeed(params.Participants)
	n := len(seeded)

	paired := seeded
	var byeID *int
	if n%2 != 0 {
		byeID = intPtr(seeded[n-1].ID)
		paired = seeded[:n-1]
	}

	half := len(paired) / 2
	plan := make([]*PlanMatch, 0, half+1)
	for i := 0; i < half; i++ {
		plan = append(plan, &PlanMatch{
			UID:            fmt.Sprintf("R1M%d", i+1),
			Side:           models.SideWinners,
			Round:          1,
			Slot:           i + 1,
			Participant1ID: intPtr(paired[i].ID),
			Participant2ID: intPtr(paired[i+half].ID),
		})
	}
	if byeID != nil {
		plan = append(plan, &PlanMatch{
			UID:              fmt.Sprintf("R1M%d", half+1),
			Side:             models.SideWinners,
			Round:            1,
			Slot:             half + 1,
			Participant1ID:   byeID,
			IsBye:            true,
			ByeParticipantID: byeID,
		})
	}
	return plan, nil
}

// SwissRounds is the number of rounds played: the configured count, or
// ceil(log2(N)) when the config leaves it to the system.
func SwissRounds(cfg *models.SwissConfig, participants int) int {
	if cfg != nil && cfg.Rounds > 0 {
		return cfg.Rounds
	}
	return int(math.Ceil(math.Log2(float64(participants))))
}

// SwissSeat is one participant's pairing state entering a round.
type SwissSeat struct {
	ParticipantID int
	Seed          int
	Points        int
	Opponents     []int
	HadBye        bool
}

func (s SwissSeat) played(opponent int) bool {
	for _, o := range s.Opponents {
		if o == opponent {
			return true
		}
	}
	return false
}

// SwissPair is one pairing produced for the next round.
type SwissPair struct {
	P1 int
	P2 int
}

// PairSwissRound pairs the next round from current results. Participants
// are grouped by score (descending, ties by seed); pairing prefers
// opponents in the same score group who have not been met before and only
// falls back to a repeat when no complete no-repeat pairing exists. With
// an odd field the lowest-scored participant without a previous bye sits
// out.
func PairSwissRound(seats []SwissSeat) ([]SwissPair, *int, error) {
	if len(seats) < 2 {
		return nil, nil, ErrNotEnoughParticipants
	}

	ordered := make([]SwissSeat, len(seats))
	copy(ordered, seats)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Points != ordered[j].Points {
			return ordered[i].Points > ordered[j].Points
		}
		return ordered[i].Seed < ordered[j].Seed
	})

	var byeID *int
	if len(ordered)%2 != 0 {
		byeIdx := len(ordered) - 1
		for i := len(ordered) - 1; i >= 0; i-- {
			if !ordered[i].HadBye {
				byeIdx = i
				break
			}
		}
		byeID = intPtr(ordered[byeIdx].ParticipantID)
		ordered = append(ordered[:byeIdx], ordered[byeIdx+1:]...)
	}

	pairs, ok := pairSeats(ordered, false)
	if !ok {
		// No complete pairing without a rematch exists; permit repeats.
		pairs, ok = pairSeats(ordered, true)
	}
	if !ok {
		return nil, nil, fmt.Errorf("no valid swiss pairing for %d participants", len(seats))
	}
	return pairs, byeID, nil
}

// pairSeats pairs the ordered field by backtracking. The first unpaired
// seat tries candidates in standings order, which keeps pairings inside a
// score group whenever the group can be completed. With allowRepeat set,
// fresh opponents are still tried before rematches.
func pairSeats(ordered []SwissSeat, allowRepeat bool) ([]SwissPair, bool) {
	if len(ordered) == 0 {
		return nil, true
	}
	first := ordered[0]
	rest := ordered[1:]

	candidates := make([]int, 0, len(rest))
	for i, c := range rest {
		if !first.played(c.ParticipantID) {
			candidates = append(candidates, i)
		}
	}
	if allowRepeat {
		for i, c := range rest {
			if first.played(c.ParticipantID) {
				candidates = append(candidates, i)
			}
		}
	}

	for _, idx := range candidates {
		remaining := make([]SwissSeat, 0, len(rest)-1)
		remaining = append(remaining, rest[:idx]...)
		remaining = append(remaining, rest[idx+1:]...)
		if sub, ok := pairSeats(remaining, allowRepeat); ok {
			return append([]SwissPair{{P1: first.ParticipantID, P2: rest[idx].ParticipantID}}, sub...), true
		}
	}
	return nil, false
}
