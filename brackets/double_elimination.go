package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

// lbEntry is one feeder into a losers-bracket match: the loser dropping
// out of a winners-bracket match, or the winner of an earlier losers-
// bracket match. A phantom entry descends from a winners-bracket bye and
// never produces a player.
type lbEntry struct {
	uid     string
	isDrop  bool
	phantom bool
}

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() Generator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) Name() string { return "DoubleElimination" }

// Generate builds the winners bracket exactly like single elimination,
// then routes every winners-bracket loser into the matching losers-bracket
// round: losers of winners round 1 pair up, each later winners round drops
// its losers into the even losers rounds against the survivors of the odd
// ones. The grand final is fed by both bracket champions; the optional
// bracket reset node is materialized by the progression engine only when
// the losers-side representative wins the first grand final.
func (g *DoubleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlanMatch, error) {
	if err := validateParticipants(params.Participants); err != nil {
		return nil, err
	}
	if params.Config.DoubleElim == nil {
		return nil, fmt.Errorf("double elimination generator requires a double elimination config")
	}

	seeded := bySeed(params.Participants)
	size := bracketSize(len(seeded))
	rounds := numRounds(size)

	nodes := firstRoundNodes(seeded, size)
	plan, wbFinalUID := buildEliminationRounds(nodes, "W", models.SideWinners, rounds)

	byUID := make(map[string]*PlanMatch, len(plan))
	for _, m := range plan {
		byUID[m.UID] = m
	}

	var lbFinalUID string
	if size >= 4 {
		var lbPlan []*PlanMatch
		lbPlan, lbFinalUID = buildLosersBracket(byUID, plan, size, rounds)
		plan = append(plan, lbPlan...)
		for _, m := range lbPlan {
			byUID[m.UID] = m
		}
	} else {
		// Two entrants: the winners final loser goes straight to the
		// grand final.
		lbFinalUID = wbFinalUID
	}

	gf := &PlanMatch{
		UID:        "GF1",
		Side:       models.SideFinals,
		Round:      1,
		Slot:       1,
		Source1UID: strPtr(wbFinalUID),
		Source2UID: strPtr(lbFinalUID),
	}
	wbFinal := byUID[wbFinalUID]
	wbFinal.WinnerToUID = strPtr(gf.UID)
	wbFinal.WinnerToSlot = 1
	if lbFinalUID == wbFinalUID {
		wbFinal.LoserToUID = strPtr(gf.UID)
		wbFinal.LoserToSlot = 2
	} else {
		lbFinal := byUID[lbFinalUID]
		lbFinal.WinnerToUID = strPtr(gf.UID)
		lbFinal.WinnerToSlot = 2
	}
	plan = append(plan, gf)

	return plan, nil
}

// buildLosersBracket creates losers rounds 1..2R-2 for a winners bracket
// of R rounds. Drop order is reversed on alternating winners rounds so
// early winners-bracket rematches are pushed as late as possible.
func buildLosersBracket(byUID map[string]*PlanMatch, wbPlan []*PlanMatch, size, rounds int) ([]*PlanMatch, string) {
	plan := make([]*PlanMatch, 0, size-2)
	lbRound := 0
	finalUID := ""

	emit := func(entries []lbEntry) []lbEntry {
		lbRound++
		out := make([]lbEntry, 0, len(entries)/2)
		slot := 0
		for i := 0; i < len(entries); i += 2 {
			a, b := entries[i], entries[i+1]
			if a.phantom && b.phantom {
				out = append(out, lbEntry{phantom: true})
				continue
			}
			slot++
			uid := fmt.Sprintf("LR%dM%d", lbRound, slot)
			pm := &PlanMatch{UID: uid, Side: models.SideLosers, Round: lbRound, Slot: slot}
			wire := func(e lbEntry, slotNo int) {
				src := byUID[e.uid]
				if slotNo == 1 {
					pm.Source1UID = strPtr(e.uid)
				} else {
					pm.Source2UID = strPtr(e.uid)
				}
				if e.isDrop {
					src.LoserToUID = strPtr(uid)
					src.LoserToSlot = slotNo
				} else {
					src.WinnerToUID = strPtr(uid)
					src.WinnerToSlot = slotNo
				}
			}
			switch {
			case b.phantom:
				pm.IsBye = true
				wire(a, 1)
			case a.phantom:
				pm.IsBye = true
				wire(b, 1)
			default:
				wire(a, 1)
				wire(b, 2)
			}
			plan = append(plan, pm)
			byUID[uid] = pm
			out = append(out, lbEntry{uid: uid})
			finalUID = uid
		}
		return out
	}

	// Losers round 1: winners round 1 losers pair among themselves.
	survivors := emit(dropEntries(wbPlan, 1, false))

	for wr := 2; wr <= rounds; wr++ {
		drops := dropEntries(wbPlan, wr, wr%2 == 0)
		paired := make([]lbEntry, 0, len(survivors)*2)
		for i := range survivors {
			paired = append(paired, survivors[i], drops[i])
		}
		survivors = emit(paired)
		if wr < rounds {
			survivors = emit(survivors)
		}
	}

	return plan, finalUID
}

// dropEntries lists the losers of one winners-bracket round in drop order.
// A winners-bracket bye produces a phantom entry: nobody drops out of it.
func dropEntries(wbPlan []*PlanMatch, round int, reversed bool) []lbEntry {
	var entries []lbEntry
	for _, m := range wbPlan {
		if m.Side != models.SideWinners || m.Round != round {
			continue
		}
		entries = append(entries, lbEntry{uid: m.UID, isDrop: true, phantom: m.IsBye})
	}
	if reversed {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries
}
