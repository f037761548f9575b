package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/tournament-core/brackets"
	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/jonboulle/clockwork"
)

// ProgressionService derives bracket state from published match results:
// slot advancement, standings, swiss round pairing, dispute corrections
// and tournament completion. It consumes the completion event stream and
// is idempotent under re-delivery.
type ProgressionService interface {
	HandleMatchCompleted(ctx context.Context, ev events.Event) error
	ResolveConflict(ctx context.Context, conflictID int) error
	ListOpenConflicts(ctx context.Context, tournamentID int) ([]*models.IntegrityConflict, error)
	GetStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error)
}

type progressionService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.StandingRepository
	conflictRepo    repositories.IntegrityConflictRepository
	publisher       events.Publisher
	clock           clockwork.Clock
	checkInWindow   time.Duration
	locks           *keyedMutex
	logger          *slog.Logger
}

func NewProgressionService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	conflictRepo repositories.IntegrityConflictRepository,
	publisher events.Publisher,
	clock clockwork.Clock,
	checkInWindow time.Duration,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		conflictRepo:    conflictRepo,
		publisher:       publisher,
		clock:           clock,
		checkInWindow:   checkInWindow,
		locks:           newKeyedMutex(),
		logger:          logger,
	}
}

func (s *progressionService) HandleMatchCompleted(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.MatchCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T on %s", ev.Payload, ev.Subject)
	}

	// Progression for one tournament is serialized: standings recompute
	// and swiss pairing read state the advancement just wrote.
	unlock := s.locks.Lock(ev.TournamentID)
	announce, err := s.progressAll(ctx, payload)
	unlock()

	// Walkover and void resolutions are announced only after the lock is
	// released: the bus is synchronous, so publishing inside the locked
	// section would re-enter this handler on the same goroutine and block
	// on the lock it already holds. The re-delivery stops at the revision
	// guard; ratings and websocket rooms still see every completion.
	for _, p := range announce {
		if pubErr := s.publisher.Publish(ctx, events.MatchCompletedSubject, ev.TournamentID, p); pubErr != nil {
			s.logger.Warn("failed to announce cascaded completion",
				slog.Int("match_id", p.MatchID), slog.Any("error", pubErr))
		}
	}
	return err
}

type completionCheck struct {
	t         *models.Tournament
	bracketID int
}

// progressAll drains the cascade with a worklist: resolving a pending
// node can exhaust feeders further downstream, so each processed
// completion may enqueue more. Completion is checked only after the
// worklist drains; checking per payload could complete the tournament
// while cascaded resolutions are still waiting to be progressed.
// Resolutions persisted before an error are still returned so they get
// announced.
func (s *progressionService) progressAll(ctx context.Context, first events.MatchCompletedPayload) ([]events.MatchCompletedPayload, error) {
	queue := []events.MatchCompletedPayload{first}
	var announce []events.MatchCompletedPayload
	var checks []completionCheck
	checked := make(map[int]bool)

	for len(queue) > 0 {
		payload := queue[0]
		queue = queue[1:]
		cascaded, check, err := s.progressOne(ctx, payload)
		announce = append(announce, cascaded...)
		if err != nil {
			return announce, err
		}
		if check != nil && !checked[check.bracketID] {
			checked[check.bracketID] = true
			checks = append(checks, *check)
		}
		queue = append(queue, cascaded...)
	}

	for _, c := range checks {
		if err := s.checkCompletion(ctx, c.t, c.bracketID); err != nil {
			return announce, err
		}
	}
	return announce, nil
}

func (s *progressionService) progressOne(ctx context.Context, payload events.MatchCompletedPayload) ([]events.MatchCompletedPayload, *completionCheck, error) {
	m, err := s.matchRepo.GetByID(ctx, payload.MatchID)
	if err != nil {
		return nil, nil, err
	}
	if payload.Revision <= m.ProgressedRevision {
		// Re-delivered or stale event, already applied.
		return nil, nil, nil
	}

	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != models.StatusLive {
		if t.Status == models.StatusCompleted && m.ProgressedRevision > 0 {
			return nil, nil, s.recordLateCorrection(ctx, t, m, payload)
		}
		return nil, nil, nil
	}

	var cascaded []events.MatchCompletedPayload
	if m.ProgressedRevision > 0 {
		if err := s.applyCorrection(ctx, t, m, payload); err != nil {
			return cascaded, nil, err
		}
	} else {
		if err := s.advance(ctx, m, &cascaded); err != nil {
			return cascaded, nil, err
		}
	}

	m.ProgressedRevision = payload.Revision
	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return cascaded, nil, err
	}

	switch t.Format {
	case models.FormatRoundRobin, models.FormatSwiss:
		if err := s.recomputeStandings(ctx, t); err != nil {
			return cascaded, nil, err
		}
		if t.Format == models.FormatSwiss {
			if err := s.pairNextSwissRound(ctx, t, m.BracketID); err != nil {
				return cascaded, nil, err
			}
		}
	case models.FormatDoubleElimination:
		if err := s.maybeScheduleGrandFinalsReset(ctx, t, m); err != nil {
			return cascaded, nil, err
		}
	}

	return cascaded, &completionCheck{t: t, bracketID: m.BracketID}, nil
}

// advance routes the winner and loser into their successor slots and
// resolves every touched successor.
func (s *progressionService) advance(ctx context.Context, m *models.Match, cascaded *[]events.MatchCompletedPayload) error {
	type link struct {
		matchID  *int
		slot     *int
		occupant *int
	}
	links := []link{
		{m.WinnerNextMatchID, m.WinnerNextSlot, m.WinnerParticipantID},
		{m.LoserNextMatchID, m.LoserNextSlot, m.LoserParticipantID()},
	}

	for _, l := range links {
		if l.matchID == nil {
			continue
		}
		target, err := s.matchRepo.GetByID(ctx, *l.matchID)
		if err != nil {
			return err
		}
		if l.occupant != nil && l.slot != nil {
			if err := s.fillSlot(ctx, target, *l.slot, *l.occupant); err != nil {
				return err
			}
		}
		if err := s.tryResolve(ctx, target, cascaded); err != nil {
			return err
		}
	}
	return nil
}

func (s *progressionService) fillSlot(ctx context.Context, target *models.Match, slot, participantID int) error {
	switch slot {
	case 1:
		if target.P1ParticipantID != nil && *target.P1ParticipantID == participantID {
			return nil
		}
		target.P1ParticipantID = &participantID
	case 2:
		if target.P2ParticipantID != nil && *target.P2ParticipantID == participantID {
			return nil
		}
		target.P2ParticipantID = &participantID
	default:
		return fmt.Errorf("invalid successor slot %d on match %d", slot, target.ID)
	}
	return s.matchRepo.Update(ctx, s.db, target)
}

// tryResolve inspects a pending node after its feeders moved. A node with
// both slots live becomes scheduled; a bye or a node whose other feeder is
// exhausted resolves immediately; a node with every feeder exhausted is
// voided. Resolutions are queued on the cascade worklist, not published:
// the caller holds the tournament lock.
func (s *progressionService) tryResolve(ctx context.Context, m *models.Match, cascaded *[]events.MatchCompletedPayload) error {
	if m.Status != models.MatchPending {
		return nil
	}

	if m.IsBye {
		occupant := m.P1ParticipantID
		if occupant == nil {
			occupant = m.P2ParticipantID
		}
		if occupant == nil {
			exhausted, err := s.feederExhausted(ctx, m, 1)
			if err != nil || !exhausted {
				return err
			}
			return s.resolvePending(ctx, m, models.MatchCancelled, nil, cascaded)
		}
		return s.resolvePending(ctx, m, models.MatchCompleted, occupant, cascaded)
	}

	p1Dead, err := s.slotExhausted(ctx, m, 1)
	if err != nil {
		return err
	}
	p2Dead, err := s.slotExhausted(ctx, m, 2)
	if err != nil {
		return err
	}

	switch {
	case m.P1ParticipantID != nil && m.P2ParticipantID != nil:
		m.Status = models.MatchScheduled
		deadline := s.clock.Now().Add(s.checkInWindow)
		m.CheckInDeadline = &deadline
		if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, events.MatchScheduledSubject, m.TournamentID, events.MatchScheduledPayload{
			MatchID:         m.ID,
			UID:             m.UID,
			Round:           m.Round,
			P1ParticipantID: m.P1ParticipantID,
			P2ParticipantID: m.P2ParticipantID,
		})
	case m.P1ParticipantID != nil && p2Dead:
		return s.resolvePending(ctx, m, models.MatchCompleted, m.P1ParticipantID, cascaded)
	case m.P2ParticipantID != nil && p1Dead:
		return s.resolvePending(ctx, m, models.MatchCompleted, m.P2ParticipantID, cascaded)
	case p1Dead && p2Dead:
		return s.resolvePending(ctx, m, models.MatchCancelled, nil, cascaded)
	}
	return nil
}

// slotExhausted reports whether the slot can never be populated: its
// feeder finished without producing an occupant for it, or it has neither
// an occupant nor a feeder at all.
func (s *progressionService) slotExhausted(ctx context.Context, m *models.Match, slot int) (bool, error) {
	var occupant, source *int
	if slot == 1 {
		occupant, source = m.P1ParticipantID, m.P1SourceMatchID
	} else {
		occupant, source = m.P2ParticipantID, m.P2SourceMatchID
	}
	if occupant != nil {
		return false, nil
	}
	if source == nil {
		return true, nil
	}
	return s.feederExhausted(ctx, m, slot)
}

func (s *progressionService) feederExhausted(ctx context.Context, m *models.Match, slot int) (bool, error) {
	source := m.P1SourceMatchID
	if slot == 2 {
		source = m.P2SourceMatchID
	}
	if source == nil {
		return false, nil
	}
	feeder, err := s.matchRepo.GetByID(ctx, *source)
	if err != nil {
		return false, err
	}
	if !feeder.Status.Terminal() {
		return false, nil
	}
	return s.occupantFromFeeder(feeder, m.ID) == nil, nil
}

// occupantFromFeeder returns who the finished feeder sends to the target,
// following whichever of its successor links points there.
func (s *progressionService) occupantFromFeeder(feeder *models.Match, targetID int) *int {
	if feeder.WinnerNextMatchID != nil && *feeder.WinnerNextMatchID == targetID {
		return feeder.WinnerParticipantID
	}
	if feeder.LoserNextMatchID != nil && *feeder.LoserNextMatchID == targetID {
		return feeder.LoserParticipantID()
	}
	return nil
}

// resolvePending finalizes a pending node without play: a bye or walkover
// completion, or a void when no occupant can ever arrive. The completion
// payload goes onto the cascade worklist and is published once the
// tournament lock is released.
func (s *progressionService) resolvePending(ctx context.Context, m *models.Match, status models.MatchStatus, winnerID *int, cascaded *[]events.MatchCompletedPayload) error {
	m.Status = status
	m.WinnerParticipantID = winnerID
	m.Forfeit = true
	m.Revision++
	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return err
	}
	*cascaded = append(*cascaded, events.MatchCompletedPayload{
		MatchID:             m.ID,
		Revision:            m.Revision,
		WinnerParticipantID: derefInt(winnerID),
		LoserParticipantID:  m.LoserParticipantID(),
		Forfeit:             true,
	})
	return nil
}

// applyCorrection re-routes successors after a dispute rewrote an already
// progressed result. Successors that have not started are repaired in
// place; anything already played under the stale result becomes an
// integrity conflict for organizer review.
func (s *progressionService) applyCorrection(ctx context.Context, t *models.Tournament, m *models.Match, payload events.MatchCompletedPayload) error {
	type link struct {
		matchID  *int
		slot     *int
		occupant *int
	}
	links := []link{
		{m.WinnerNextMatchID, m.WinnerNextSlot, m.WinnerParticipantID},
		{m.LoserNextMatchID, m.LoserNextSlot, m.LoserParticipantID()},
	}

	for _, l := range links {
		if l.matchID == nil || l.slot == nil {
			continue
		}
		target, err := s.matchRepo.GetByID(ctx, *l.matchID)
		if err != nil {
			return err
		}

		current := target.P1ParticipantID
		if *l.slot == 2 {
			current = target.P2ParticipantID
		}
		if derefInt(current) == derefInt(l.occupant) {
			continue
		}

		if target.Status == models.MatchPending || target.Status == models.MatchScheduled {
			if err := s.repairSlot(ctx, target, *l.slot, l.occupant); err != nil {
				return err
			}
			continue
		}

		conflict := &models.IntegrityConflict{
			TournamentID:      t.ID,
			MatchID:           m.ID,
			DownstreamMatchID: intPtr(target.ID),
			Revision:          payload.Revision,
			Detail: fmt.Sprintf("match %s was corrected to winner %d but match %s already ran under the previous result",
				m.UID, payload.WinnerParticipantID, target.UID),
		}
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.conflictRepo.Create(ctx, tx, conflict)
		})
		if err != nil {
			return err
		}
		s.logger.Warn("integrity conflict recorded",
			slog.Int("match_id", m.ID),
			slog.Int("downstream_match_id", target.ID),
			slog.Int("revision", payload.Revision))
	}
	return nil
}

// recordLateCorrection files a review row when a dispute rewrites a result
// after the tournament completed. Settlement and ratings already consumed
// the previous outcome, so nothing is repaired automatically; the conflict
// carries no downstream match because the damage is tournament-wide.
func (s *progressionService) recordLateCorrection(ctx context.Context, t *models.Tournament, m *models.Match, payload events.MatchCompletedPayload) error {
	conflict := &models.IntegrityConflict{
		TournamentID: t.ID,
		MatchID:      m.ID,
		Revision:     payload.Revision,
		Detail: fmt.Sprintf("match %s was corrected to winner %d after the tournament completed; settlement used the previous result",
			m.UID, payload.WinnerParticipantID),
	}
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.conflictRepo.Create(ctx, tx, conflict)
	})
	if err != nil {
		return err
	}

	// Mark the revision applied so a re-delivered event does not file a
	// second conflict for the same correction.
	m.ProgressedRevision = payload.Revision
	if err := s.matchRepo.Update(ctx, s.db, m); err != nil {
		return err
	}

	s.logger.Warn("late correction recorded as integrity conflict",
		slog.Int("tournament_id", t.ID),
		slog.Int("match_id", m.ID),
		slog.Int("revision", payload.Revision))
	return nil
}

// repairSlot swaps a not-yet-played successor's occupant for the corrected
// one and resets that side's check-in.
func (s *progressionService) repairSlot(ctx context.Context, target *models.Match, slot int, occupant *int) error {
	if slot == 1 {
		target.P1ParticipantID = occupant
		target.P1CheckedIn = false
	} else {
		target.P2ParticipantID = occupant
		target.P2CheckedIn = false
	}
	if occupant == nil && target.Status == models.MatchScheduled {
		target.Status = models.MatchPending
		target.CheckInDeadline = nil
	}
	return s.matchRepo.Update(ctx, s.db, target)
}

// maybeScheduleGrandFinalsReset creates the bracket reset match when the
// losers bracket representative takes the first grand final.
func (s *progressionService) maybeScheduleGrandFinalsReset(ctx context.Context, t *models.Tournament, m *models.Match) error {
	if m.Side != models.SideFinals || m.Round != 1 || m.WinnerParticipantID == nil {
		return nil
	}
	cfg, err := t.FormatConfig()
	if err != nil {
		return err
	}
	if cfg.DoubleElim == nil || !cfg.DoubleElim.GrandFinalsReset {
		return nil
	}
	// Only a win by the losers bracket side (slot 2) forces the reset.
	if m.SlotOf(*m.WinnerParticipantID) != 2 {
		return nil
	}

	existing, err := s.matchRepo.ListByBracket(ctx, m.BracketID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Side == models.SideFinals && other.Round == 2 {
			return nil
		}
	}

	deadline := s.clock.Now().Add(s.checkInWindow)
	reset := &models.Match{
		BracketID:       m.BracketID,
		TournamentID:    t.ID,
		UID:             "GF2",
		Side:            models.SideFinals,
		Round:           2,
		Slot:            1,
		P1ParticipantID: m.P1ParticipantID,
		P2ParticipantID: m.P2ParticipantID,
		Status:          models.MatchScheduled,
		CheckInDeadline: &deadline,
	}
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.matchRepo.Create(ctx, tx, reset)
	})
	if err != nil {
		return err
	}

	s.logger.Info("grand finals reset scheduled",
		slog.Int("tournament_id", t.ID), slog.Int("match_id", reset.ID))

	return s.publisher.Publish(ctx, events.MatchScheduledSubject, t.ID, events.MatchScheduledPayload{
		MatchID:         reset.ID,
		UID:             reset.UID,
		Round:           reset.Round,
		P1ParticipantID: reset.P1ParticipantID,
		P2ParticipantID: reset.P2ParticipantID,
	})
}

// pairNextSwissRound creates the next round once every match of the
// current one is terminal and rounds remain to be played.
func (s *progressionService) pairNextSwissRound(ctx context.Context, t *models.Tournament, bracketID int) error {
	matches, err := s.matchRepo.ListByBracket(ctx, bracketID)
	if err != nil {
		return err
	}

	currentRound := 0
	for _, m := range matches {
		if m.Round > currentRound {
			currentRound = m.Round
		}
	}
	for _, m := range matches {
		if m.Round == currentRound && !m.Status.Terminal() {
			return nil
		}
	}

	participants, err := s.participantRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return err
	}
	cfg, err := t.FormatConfig()
	if err != nil {
		return err
	}
	if currentRound >= brackets.SwissRounds(cfg.Swiss, len(participants)) {
		return nil
	}

	seats := buildSwissSeats(participants, matches)
	pairs, byeID, err := brackets.PairSwissRound(seats)
	if err != nil {
		return err
	}

	round := currentRound + 1
	deadline := s.clock.Now().Add(s.checkInWindow)
	var created []*models.Match

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, pair := range pairs {
			m := &models.Match{
				BracketID:       bracketID,
				TournamentID:    t.ID,
				UID:             fmt.Sprintf("R%dM%d", round, i+1),
				Side:            models.SideWinners,
				Round:           round,
				Slot:            i + 1,
				P1ParticipantID: intPtr(pair.P1),
				P2ParticipantID: intPtr(pair.P2),
				Status:          models.MatchScheduled,
				CheckInDeadline: &deadline,
			}
			if err := s.matchRepo.Create(ctx, tx, m); err != nil {
				return err
			}
			created = append(created, m)
		}
		if byeID != nil {
			bye := &models.Match{
				BracketID:           bracketID,
				TournamentID:        t.ID,
				UID:                 fmt.Sprintf("R%dM%d", round, len(pairs)+1),
				Side:                models.SideWinners,
				Round:               round,
				Slot:                len(pairs) + 1,
				P1ParticipantID:     byeID,
				IsBye:               true,
				Status:              models.MatchCompleted,
				WinnerParticipantID: byeID,
			}
			if err := s.matchRepo.Create(ctx, tx, bye); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("swiss round paired",
		slog.Int("tournament_id", t.ID),
		slog.Int("round", round),
		slog.Int("pairs", len(pairs)))

	for _, m := range created {
		if err := s.publisher.Publish(ctx, events.MatchScheduledSubject, t.ID, events.MatchScheduledPayload{
			MatchID:         m.ID,
			UID:             m.UID,
			Round:           m.Round,
			P1ParticipantID: m.P1ParticipantID,
			P2ParticipantID: m.P2ParticipantID,
		}); err != nil {
			s.logger.Warn("failed to announce swiss match", slog.Int("match_id", m.ID), slog.Any("error", err))
		}
	}
	return nil
}

// buildSwissSeats folds finished matches into per-participant pairing
// state. Wins score 2 points, draws 1, byes a full win.
func buildSwissSeats(participants []*models.Participant, matches []*models.Match) []brackets.SwissSeat {
	byID := make(map[int]*brackets.SwissSeat, len(participants))
	order := make([]int, 0, len(participants))
	for _, p := range participants {
		byID[p.ID] = &brackets.SwissSeat{ParticipantID: p.ID, Seed: p.Seed}
		order = append(order, p.ID)
	}

	for _, m := range matches {
		if !m.Status.Terminal() {
			continue
		}
		if m.IsBye {
			if m.P1ParticipantID != nil {
				if seat := byID[*m.P1ParticipantID]; seat != nil {
					seat.HadBye = true
					seat.Points += 2
				}
			}
			continue
		}
		if m.P1ParticipantID == nil || m.P2ParticipantID == nil {
			continue
		}
		p1, p2 := byID[*m.P1ParticipantID], byID[*m.P2ParticipantID]
		if p1 == nil || p2 == nil {
			continue
		}
		p1.Opponents = append(p1.Opponents, p2.ParticipantID)
		p2.Opponents = append(p2.Opponents, p1.ParticipantID)
		switch {
		case m.WinnerParticipantID == nil:
			p1.Points++
			p2.Points++
		case *m.WinnerParticipantID == p1.ParticipantID:
			p1.Points += 2
		case *m.WinnerParticipantID == p2.ParticipantID:
			p2.Points += 2
		}
	}

	seats := make([]brackets.SwissSeat, 0, len(order))
	for _, id := range order {
		seats = append(seats, *byID[id])
	}
	return seats
}

// checkCompletion finishes the tournament once every bracket node is
// terminal. The trigger is a single guarded update, so duplicate events
// complete and settle at most once.
func (s *progressionService) checkCompletion(ctx context.Context, t *models.Tournament, bracketID int) error {
	matches, err := s.matchRepo.ListByBracket(ctx, bracketID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if !m.Status.Terminal() {
			return nil
		}
	}

	triggered, err := s.tournamentRepo.CompleteAndTriggerSettlement(ctx, s.db, t.ID)
	if err != nil {
		return err
	}
	if !triggered {
		return nil
	}

	winner, err := s.tournamentWinner(ctx, t, matches)
	if err != nil {
		return err
	}
	s.logger.Info("tournament completed",
		slog.Int("tournament_id", t.ID),
		slog.Int("winner_participant_id", derefInt(winner)))

	return s.publisher.Publish(ctx, events.TournamentCompletedSubject, t.ID,
		events.TournamentCompletedPayload{WinnerParticipantID: winner})
}

func (s *progressionService) tournamentWinner(ctx context.Context, t *models.Tournament, matches []*models.Match) (*int, error) {
	switch t.Format {
	case models.FormatRoundRobin, models.FormatSwiss:
		standings, err := s.standingsFor(ctx, t)
		if err != nil {
			return nil, err
		}
		if len(standings) > 0 {
			return intPtr(standings[0].ParticipantID), nil
		}
		return nil, nil
	default:
		return eliminationWinner(matches), nil
	}
}

// eliminationWinner is the winner of the deciding match: the last finals
// round in double elimination, otherwise the winners bracket node with no
// successor.
func eliminationWinner(matches []*models.Match) *int {
	var decider *models.Match
	for _, m := range matches {
		if m.Side == models.SideFinals {
			if decider == nil || decider.Side != models.SideFinals || m.Round > decider.Round {
				decider = m
			}
			continue
		}
		if decider != nil && decider.Side == models.SideFinals {
			continue
		}
		if m.Side == models.SideWinners && m.WinnerNextMatchID == nil && !m.IsBye {
			if decider == nil || m.Round > decider.Round {
				decider = m
			}
		}
	}
	if decider == nil {
		return nil
	}
	return decider.WinnerParticipantID
}

func (s *progressionService) ResolveConflict(ctx context.Context, conflictID int) error {
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.conflictRepo.MarkResolved(ctx, tx, conflictID)
	})
}

func (s *progressionService) ListOpenConflicts(ctx context.Context, tournamentID int) ([]*models.IntegrityConflict, error) {
	return s.conflictRepo.ListOpenByTournament(ctx, tournamentID)
}

func (s *progressionService) GetStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	return s.standingRepo.ListByTournament(ctx, tournamentID)
}

// recomputeStandings rebuilds the table from scratch out of terminal
// matches and persists the replacement.
func (s *progressionService) recomputeStandings(ctx context.Context, t *models.Tournament) error {
	standings, err := s.standingsFor(ctx, t)
	if err != nil {
		return err
	}
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.standingRepo.ReplaceForTournament(ctx, tx, t.ID, standings)
	})
}

func (s *progressionService) standingsFor(ctx context.Context, t *models.Tournament) ([]*models.Standing, error) {
	participants, err := s.participantRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, t.ID, nil, nil)
	if err != nil {
		return nil, err
	}
	cfg, err := t.FormatConfig()
	if err != nil {
		return nil, err
	}

	tiebreaks := []models.TiebreakRule{models.TiebreakHeadToHead, models.TiebreakScoreDiff, models.TiebreakBuchholz}
	if cfg.RoundRobin != nil && len(cfg.RoundRobin.Tiebreaks) > 0 {
		tiebreaks = cfg.RoundRobin.Tiebreaks
	}
	return ComputeStandings(participants, matches, tiebreaks), nil
}

// ComputeStandings builds the ranked table. Wins score 2 points, draws 1.
// A bye counts as a win. Buchholz sums the final points of each
// participant's opponents. Ranking is by points, then the configured
// tiebreaks, then seed.
func ComputeStandings(participants []*models.Participant, matches []*models.Match, tiebreaks []models.TiebreakRule) []*models.Standing {
	byID := make(map[int]*models.Standing, len(participants))
	seedOf := make(map[int]int, len(participants))
	opponents := make(map[int][]int, len(participants))
	// headToHead[a][b] > 0 when a beat b, < 0 when b beat a.
	headToHead := make(map[int]map[int]int)

	standings := make([]*models.Standing, 0, len(participants))
	for _, p := range participants {
		st := &models.Standing{TournamentID: p.TournamentID, ParticipantID: p.ID}
		byID[p.ID] = st
		seedOf[p.ID] = p.Seed
		standings = append(standings, st)
	}

	recordH2H := func(winner, loser int) {
		if headToHead[winner] == nil {
			headToHead[winner] = make(map[int]int)
		}
		if headToHead[loser] == nil {
			headToHead[loser] = make(map[int]int)
		}
		headToHead[winner][loser]++
		headToHead[loser][winner]--
	}

	for _, m := range matches {
		if !m.Status.Terminal() {
			continue
		}
		if m.IsBye {
			if m.P1ParticipantID != nil {
				if st := byID[*m.P1ParticipantID]; st != nil {
					st.Points += 2
					st.Wins++
					st.GamesPlayed++
					st.HadBye = true
				}
			}
			continue
		}
		if m.P1ParticipantID == nil || m.P2ParticipantID == nil {
			continue
		}
		p1, p2 := byID[*m.P1ParticipantID], byID[*m.P2ParticipantID]
		if p1 == nil || p2 == nil {
			continue
		}
		if m.Status == models.MatchCancelled {
			continue
		}

		scoreA, scoreB := derefInt(m.ScoreA), derefInt(m.ScoreB)
		p1.GamesPlayed++
		p2.GamesPlayed++
		p1.ScoreFor += scoreA
		p1.ScoreAgainst += scoreB
		p2.ScoreFor += scoreB
		p2.ScoreAgainst += scoreA
		opponents[p1.ParticipantID] = append(opponents[p1.ParticipantID], p2.ParticipantID)
		opponents[p2.ParticipantID] = append(opponents[p2.ParticipantID], p1.ParticipantID)

		switch {
		case m.WinnerParticipantID == nil:
			p1.Points++
			p1.Draws++
			p2.Points++
			p2.Draws++
		case *m.WinnerParticipantID == p1.ParticipantID:
			p1.Points += 2
			p1.Wins++
			p2.Losses++
			recordH2H(p1.ParticipantID, p2.ParticipantID)
		case *m.WinnerParticipantID == p2.ParticipantID:
			p2.Points += 2
			p2.Wins++
			p1.Losses++
			recordH2H(p2.ParticipantID, p1.ParticipantID)
		}
	}

	for _, st := range standings {
		st.ScoreDifference = st.ScoreFor - st.ScoreAgainst
		for _, opp := range opponents[st.ParticipantID] {
			if o := byID[opp]; o != nil {
				st.Buchholz += o.Points
			}
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		for _, rule := range tiebreaks {
			switch rule {
			case models.TiebreakHeadToHead:
				if h2h := headToHead[a.ParticipantID][b.ParticipantID]; h2h != 0 {
					return h2h > 0
				}
			case models.TiebreakScoreDiff:
				if a.ScoreDifference != b.ScoreDifference {
					return a.ScoreDifference > b.ScoreDifference
				}
			case models.TiebreakBuchholz:
				if a.Buchholz != b.Buchholz {
					return a.Buchholz > b.Buchholz
				}
			}
		}
		return seedOf[a.ParticipantID] < seedOf[b.ParticipantID]
	})

	for i, st := range standings {
		st.Rank = i + 1
	}
	return standings
}
