package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string { return "RoundRobin" }

// Generate schedules every pairing once (or twice with colors swapped for
// a double round robin) using the circle method: the first participant
// stays fixed while the rest rotate one position each round. An odd field
// gets a synthetic bye that rotates with the others, idling one
// participant per round.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlanMatch, error) {
	if err := validateParticipants(params.Participants); err != nil {
		return nil, err
	}
	cfg := params.Config.RoundRobin
	if cfg == nil {
		return nil, fmt.Errorf("round robin generator requires a round robin config")
	}

	seeded := bySeed(params.Participants)
	circle := make([]int, 0, len(seeded)+1)
	for _, p := range seeded {
		circle = append(circle, p.ID)
	}
	const byeMarker = 0
	if len(circle)%2 != 0 {
		circle = append(circle, byeMarker)
	}

	n := len(circle)
	roundsPerLeg := n - 1
	legs := 1
	if cfg.DoubleRound {
		legs = 2
	}

	plan := make([]*PlanMatch, 0, legs*roundsPerLeg*n/2)
	for leg := 0; leg < legs; leg++ {
		arr := make([]int, n)
		copy(arr, circle)
		for r := 1; r <= roundsPerLeg; r++ {
			round := leg*roundsPerLeg + r
			slot := 0
			for i := 0; i < n/2; i++ {
				a, b := arr[i], arr[n-1-i]
				if a == byeMarker || b == byeMarker {
					continue
				}
				if leg == 1 {
					a, b = b, a
				}
				slot++
				plan = append(plan, &PlanMatch{
					UID:            fmt.Sprintf("R%dM%d", round, slot),
					Side:           models.SideWinners,
					Round:          round,
					Slot:           slot,
					Participant1ID: intPtr(a),
					Participant2ID: intPtr(b),
				})
			}
			// Rotate everything but the fixed first position.
			last := arr[n-1]
			copy(arr[2:], arr[1:n-1])
			arr[1] = last
		}
	}

	return plan, nil
}
