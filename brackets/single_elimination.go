package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

// seNode is one entry feeding a round: either a known participant (seeded
// directly or advanced through a bye), the winner of an earlier match, or
// a permanently empty bye slot.
type seNode struct {
	participantID *int
	sourceUID     *string
	bye           bool
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string { return "SingleElimination" }

func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlanMatch, error) {
	if err := validateParticipants(params.Participants); err != nil {
		return nil, err
	}
	cfg := params.Config.SingleElim
	if cfg == nil {
		return nil, fmt.Errorf("single elimination generator requires a single elimination config")
	}

	seeded := bySeed(params.Participants)
	n := len(seeded)
	size := bracketSize(n)
	rounds := numRounds(size)

	nodes := firstRoundNodes(seeded, size)
	plan, _ := buildEliminationRounds(nodes, "", models.SideWinners, rounds)

	if cfg.ThirdPlaceMatch && rounds >= 2 {
		plan = attachThirdPlaceMatch(plan, rounds)
	}

	return plan, nil
}

// firstRoundNodes places the seeds into bracket positions. Positions whose
// seed exceeds the participant count are byes, which lands the byes on the
// top seeds.
func firstRoundNodes(seeded []*models.Participant, size int) []seNode {
	positions := seedPositions(size)
	nodes := make([]seNode, size)
	for i, seed := range positions {
		if seed <= len(seeded) {
			nodes[i] = seNode{participantID: intPtr(seeded[seed-1].ID)}
		} else {
			nodes[i] = seNode{bye: true}
		}
	}
	return nodes
}

// buildEliminationRounds folds the entry nodes round by round into a full
// elimination tree. Byes auto-resolve: the real participant is carried
// into the next round and the bye node produces no playable match.
// Successor links are wired as each round is built. Returns the plan and
// the UID of the terminal match.
func buildEliminationRounds(entries []seNode, uidPrefix string, side models.BracketSide, rounds int) ([]*PlanMatch, string) {
	plan := make([]*PlanMatch, 0, len(entries))
	byUID := make(map[string]*PlanMatch)
	cur := entries
	finalUID := ""

	for r := 1; r <= rounds; r++ {
		next := make([]seNode, 0, len(cur)/2)
		slot := 0
		for i := 0; i < len(cur); i += 2 {
			a, b := cur[i], cur[i+1]

			if a.bye && b.bye {
				next = append(next, seNode{bye: true})
				continue
			}

			slot++
			uid := fmt.Sprintf("%sR%dM%d", uidPrefix, r, slot)
			pm := &PlanMatch{UID: uid, Side: side, Round: r, Slot: slot}

			switch {
			case b.bye:
				pm.IsBye = true
				if a.participantID != nil {
					pm.Participant1ID = a.participantID
					pm.ByeParticipantID = a.participantID
					next = append(next, seNode{participantID: a.participantID})
				} else {
					pm.Source1UID = a.sourceUID
					wireWinnerLink(byUID, *a.sourceUID, uid, 1)
					next = append(next, seNode{sourceUID: strPtr(uid)})
				}
			case a.bye:
				pm.IsBye = true
				if b.participantID != nil {
					pm.Participant1ID = b.participantID
					pm.ByeParticipantID = b.participantID
					next = append(next, seNode{participantID: b.participantID})
				} else {
					pm.Source1UID = b.sourceUID
					wireWinnerLink(byUID, *b.sourceUID, uid, 1)
					next = append(next, seNode{sourceUID: strPtr(uid)})
				}
			default:
				if a.participantID != nil {
					pm.Participant1ID = a.participantID
				} else {
					pm.Source1UID = a.sourceUID
					wireWinnerLink(byUID, *a.sourceUID, uid, 1)
				}
				if b.participantID != nil {
					pm.Participant2ID = b.participantID
				} else {
					pm.Source2UID = b.sourceUID
					wireWinnerLink(byUID, *b.sourceUID, uid, 2)
				}
				next = append(next, seNode{sourceUID: strPtr(uid)})
			}

			plan = append(plan, pm)
			byUID[uid] = pm
			finalUID = uid
		}
		cur = next
	}

	return plan, finalUID
}

func wireWinnerLink(byUID map[string]*PlanMatch, sourceUID, targetUID string, targetSlot int) {
	src, ok := byUID[sourceUID]
	if !ok {
		return
	}
	src.WinnerToUID = strPtr(targetUID)
	src.WinnerToSlot = targetSlot
}

// attachThirdPlaceMatch adds a consolation node fed by the losers of the
// playable semifinals. With a bye semifinal only one feeder exists and the
// slot stays empty; progression treats the exhausted feeder like a bye.
func attachThirdPlaceMatch(plan []*PlanMatch, rounds int) []*PlanMatch {
	tp := &PlanMatch{
		UID:   "TP1",
		Side:  models.SideConsolation,
		Round: rounds,
		Slot:  2,
	}
	feeder := 0
	for _, m := range plan {
		if m.Round != rounds-1 || m.Side != models.SideWinners || m.IsBye {
			continue
		}
		feeder++
		m.LoserToUID = strPtr(tp.UID)
		m.LoserToSlot = feeder
		if feeder == 1 {
			tp.Source1UID = strPtr(m.UID)
		} else {
			tp.Source2UID = strPtr(m.UID)
		}
	}
	if feeder == 0 {
		return plan
	}
	return append(plan, tp)
}
