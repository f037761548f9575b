package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/wallet"
)

// The fakes below keep rows in maps so service logic runs without
// Postgres. runInTx still wants a *sql.DB to hand out transactions, so a
// no-op driver supplies ones that commit nothing; the fakes ignore the
// executor they are passed.

type noopDriver struct{}
type noopConn struct{}
type noopTx struct{}

func (noopDriver) Open(string) (driver.Conn, error)  { return noopConn{}, nil }
func (noopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("no statements") }
func (noopConn) Close() error                        { return nil }
func (noopConn) Begin() (driver.Tx, error)           { return noopTx{}, nil }
func (noopTx) Commit() error                         { return nil }
func (noopTx) Rollback() error                       { return nil }

var noopDB = func() *sql.DB {
	sql.Register("services-noop", noopDriver{})
	db, err := sql.Open("services-noop", "")
	if err != nil {
		panic(err)
	}
	return db
}()

type fakeMatchRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]models.Match
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	r := &fakeMatchRepo{rows: make(map[int]models.Match)}
	for _, m := range matches {
		if m.ID == 0 {
			r.nextID++
			m.ID = r.nextID
		} else if m.ID > r.nextID {
			r.nextID = m.ID
		}
		r.rows[m.ID] = *m
	}
	return r
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	r.rows[m.ID] = *m
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	out := m
	return &out, nil
}

func (r *fakeMatchRepo) ListByBracket(_ context.Context, bracketID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.rows {
		if m.BracketID == bracketID {
			c := m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, status *models.MatchStatus, round *int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.rows {
		if m.TournamentID != tournamentID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		c := m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) Update(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if stored.Version != m.Version {
		return repositories.ErrMatchVersionConflict
	}
	m.Version++
	m.UpdatedAt = time.Now()
	r.rows[m.ID] = *m
	return nil
}

func (r *fakeMatchRepo) UpdateLinks(_ context.Context, _ repositories.SQLExecutor, matchID int, winnerNext, winnerSlot, loserNext, loserSlot, p1Source, p2Source *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.WinnerNextMatchID, m.WinnerNextSlot = winnerNext, winnerSlot
	m.LoserNextMatchID, m.LoserNextSlot = loserNext, loserSlot
	m.P1SourceMatchID, m.P2SourceMatchID = p1Source, p2Source
	r.rows[matchID] = m
	return nil
}

func (r *fakeMatchRepo) ListCheckInExpired(_ context.Context, now time.Time) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.rows {
		if m.Status == models.MatchScheduled && m.CheckInDeadline != nil && m.CheckInDeadline.Before(now) {
			c := m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListConfirmExpired(_ context.Context, now time.Time) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.rows {
		if m.Status == models.MatchAwaitingConfirmation && m.ConfirmDeadline != nil && m.ConfirmDeadline.Before(now) {
			c := m
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeTournamentRepo struct {
	mu   sync.Mutex
	rows map[int]models.Tournament
}

func newFakeTournamentRepo(tournaments ...*models.Tournament) *fakeTournamentRepo {
	r := &fakeTournamentRepo{rows: make(map[int]models.Tournament)}
	for _, t := range tournaments {
		r.rows[t.ID] = *t
	}
	return r
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = len(r.rows) + 1
	r.rows[t.ID] = *t
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	out := t
	return &out, nil
}

func (r *fakeTournamentRepo) ListByStatus(_ context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.rows {
		if t.Status == status {
			c := t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != from {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = to
	r.rows[id] = t
	return nil
}

func (r *fakeTournamentRepo) SetCurrentBracket(_ context.Context, _ repositories.SQLExecutor, id, bracketID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentBracketID = &bracketID
	r.rows[id] = t
	return nil
}

func (r *fakeTournamentRepo) AddEscrow(_ context.Context, id int, escrowID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.EscrowID = &escrowID
	t.EscrowTotal += amount
	r.rows[id] = t
	return nil
}

func (r *fakeTournamentRepo) CompleteAndTriggerSettlement(_ context.Context, _ repositories.SQLExecutor, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.Status != models.StatusLive || t.SettlementTriggered {
		return false, nil
	}
	t.Status = models.StatusCompleted
	t.SettlementTriggered = true
	r.rows[id] = t
	return true, nil
}

func (r *fakeTournamentRepo) TryBeginSettlement(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.SettlementInProgress {
		return false, nil
	}
	t.SettlementInProgress = true
	r.rows[id] = t
	return true, nil
}

func (r *fakeTournamentRepo) FinishSettlement(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.SettlementInProgress = false
	r.rows[id] = t
	return nil
}

type fakeParticipantRepo struct {
	mu   sync.Mutex
	rows []models.Participant
}

func newFakeParticipantRepo(participants ...*models.Participant) *fakeParticipantRepo {
	r := &fakeParticipantRepo{}
	for i, p := range participants {
		if p.ID == 0 {
			p.ID = i + 1
		}
		r.rows = append(r.rows, *p)
	}
	return r
}

func (r *fakeParticipantRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, participants []*models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range participants {
		p.ID = len(r.rows) + 1
		r.rows = append(r.rows, *p)
	}
	return nil
}

func (r *fakeParticipantRepo) GetByID(_ context.Context, id int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ID == id {
			c := p
			return &c, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Participant
	for _, p := range r.rows {
		if p.TournamentID == tournamentID {
			c := p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

func (r *fakeParticipantRepo) UpdateSeeds(_ context.Context, _ repositories.SQLExecutor, participants []*models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range participants {
		for i := range r.rows {
			if r.rows[i].ID == p.ID {
				r.rows[i].Seed = p.Seed
			}
		}
	}
	return nil
}

type fakeStandingRepo struct {
	mu           sync.Mutex
	byTournament map[int][]*models.Standing
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{byTournament: make(map[int][]*models.Standing)}
}

func (r *fakeStandingRepo) ReplaceForTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, standings []*models.Standing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced := make([]*models.Standing, 0, len(standings))
	for _, st := range standings {
		c := *st
		replaced = append(replaced, &c)
	}
	r.byTournament[tournamentID] = replaced
	return nil
}

func (r *fakeStandingRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Standing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Standing
	for _, st := range r.byTournament[tournamentID] {
		c := *st
		out = append(out, &c)
	}
	return out, nil
}

type fakeConflictRepo struct {
	mu   sync.Mutex
	rows []models.IntegrityConflict
}

func (r *fakeConflictRepo) Create(_ context.Context, _ repositories.SQLExecutor, c *models.IntegrityConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = len(r.rows) + 1
	c.CreatedAt = time.Now()
	r.rows = append(r.rows, *c)
	return nil
}

func (r *fakeConflictRepo) ListOpenByTournament(_ context.Context, tournamentID int) ([]*models.IntegrityConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.IntegrityConflict
	for _, c := range r.rows {
		if c.TournamentID == tournamentID && !c.Resolved {
			cc := c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (r *fakeConflictRepo) MarkResolved(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && !r.rows[i].Resolved {
			now := time.Now()
			r.rows[i].Resolved = true
			r.rows[i].ResolvedAt = &now
			return nil
		}
	}
	return repositories.ErrConflictNotFound
}

type fakeBracketRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]models.Bracket
}

func newFakeBracketRepo(brackets ...*models.Bracket) *fakeBracketRepo {
	r := &fakeBracketRepo{rows: make(map[int]models.Bracket)}
	for _, b := range brackets {
		if b.ID == 0 {
			r.nextID++
			b.ID = r.nextID
		} else if b.ID > r.nextID {
			r.nextID = b.ID
		}
		r.rows[b.ID] = *b
	}
	return r
}

func (r *fakeBracketRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.CreatedAt = time.Now()
	r.rows[b.ID] = *b
	return nil
}

func (r *fakeBracketRepo) GetByID(_ context.Context, id int) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	out := b
	return &out, nil
}

func (r *fakeBracketRepo) MarkPublished(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Published = true
	r.rows[id] = b
	return nil
}

func (r *fakeBracketRepo) Supersede(_ context.Context, _ repositories.SQLExecutor, oldID, newID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[oldID]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.SupersededBy = &newID
	r.rows[oldID] = b
	return nil
}

type fakePrizeRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]models.PrizeDistribution
}

func newFakePrizeRepo() *fakePrizeRepo {
	return &fakePrizeRepo{rows: make(map[string]models.PrizeDistribution)}
}

func (r *fakePrizeRepo) InsertIfAbsent(_ context.Context, _ repositories.SQLExecutor, d *models.PrizeDistribution) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[d.IdempotencyKey]; ok {
		*d = existing
		return false, nil
	}
	r.nextID++
	d.ID = r.nextID
	d.CreatedAt = time.Now()
	r.rows[d.IdempotencyKey] = *d
	return true, nil
}

func (r *fakePrizeRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.DistributionStatus, lastError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, d := range r.rows {
		if d.ID == id {
			d.Status = status
			d.LastError = lastError
			d.Attempts++
			r.rows[key] = d
			return nil
		}
	}
	return repositories.ErrDistributionNotFound
}

func (r *fakePrizeRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.PrizeDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PrizeDistribution
	for _, d := range r.rows {
		if d.TournamentID == tournamentID {
			c := d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePrizeRepo) ListRetryable(_ context.Context, maxAttempts int) ([]*models.PrizeDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PrizeDistribution
	for _, d := range r.rows {
		if d.Status == models.DistributionFailed && d.Attempts < maxAttempts {
			c := d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// capturePublisher records publishes without delivering them anywhere.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, subject string, tournamentID int, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events.Event{Subject: subject, TournamentID: tournamentID, Payload: payload})
	return nil
}

func (p *capturePublisher) bySubject(subject string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Subject == subject {
			out = append(out, ev)
		}
	}
	return out
}

type fakeWallet struct {
	mu       sync.Mutex
	outcome  wallet.CreditOutcome
	credits  []wallet.CreditRequest
	released []string
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{outcome: wallet.OutcomeSuccess}
}

func (w *fakeWallet) Credit(_ context.Context, req wallet.CreditRequest) (wallet.CreditOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credits = append(w.credits, req)
	if w.outcome == wallet.OutcomeFailure {
		return w.outcome, errors.New("insufficient house balance")
	}
	return w.outcome, nil
}

func (w *fakeWallet) Release(_ context.Context, escrowID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = append(w.released, escrowID)
	return nil
}
