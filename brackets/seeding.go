package brackets

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Dosada05/tournament-core/models"
)

// bracketSize returns the next power of two at or above n.
func bracketSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func numRounds(size int) int {
	if size < 2 {
		return 0
	}
	return int(math.Round(math.Log2(float64(size))))
}

// seedPositions lays out seeds 1..size so that adjacent pairs meet in
// round one and the top seeds cannot meet before the last rounds: seed 1
// and seed 2 land in opposite halves, seeds 3-4 in opposite quarters, and
// so on. Positions holding seeds above the real participant count become
// byes, which automatically gives the top seeds the byes.
func seedPositions(size int) []int {
	pos := []int{1}
	for len(pos) < size {
		mirror := len(pos)*2 + 1
		next := make([]int, 0, len(pos)*2)
		for _, s := range pos {
			next = append(next, s, mirror-s)
		}
		pos = next
	}
	return pos
}

// LiveDrawOrder produces the effective seeding for a "live draw"
// tournament: a shuffle that is fully determined by the draw seed, so the
// draw can be persisted and generation replayed. Seeds are re-numbered
// 1..N in the drawn order.
func LiveDrawOrder(participants []*models.Participant, drawSeed int64) []*models.Participant {
	drawn := make([]*models.Participant, len(participants))
	copy(drawn, participants)
	sort.Slice(drawn, func(i, j int) bool { return drawn[i].Seed < drawn[j].Seed })

	rng := rand.New(rand.NewSource(drawSeed))
	rng.Shuffle(len(drawn), func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})
	for i, p := range drawn {
		p.Seed = i + 1
	}
	return drawn
}
