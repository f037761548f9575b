package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-core/utils"
)

// Handler consumes one event. Handlers must be idempotent: the bus
// guarantees at-least-once delivery, and a failed publish may be retried
// by the caller wholesale.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the write side of the bus, what services depend on.
type Publisher interface {
	Publish(ctx context.Context, subject string, tournamentID int, payload interface{}) error
}

// Bus is the in-process event bus. Subscribers run synchronously in
// subscription order so that state-deriving consumers (progression,
// ratings) observe events before the publish call returns; fan-out-only
// consumers (websocket rooms) should not block.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]Handler
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for one subject. Not safe to call
// concurrently with Publish during startup wiring only by convention.
func (b *Bus) Subscribe(subject string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], h)
}

// Publish delivers the event to every subscriber of the subject. Handler
// errors are collected, logged and joined; the event is still delivered to
// the remaining subscribers.
func (b *Bus) Publish(ctx context.Context, subject string, tournamentID int, payload interface{}) error {
	ev := Event{
		ID:           utils.NewID(),
		Subject:      subject,
		TournamentID: tournamentID,
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := b.subs[subject]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			b.logger.Error("event handler failed",
				slog.String("subject", subject),
				slog.Int("tournament_id", tournamentID),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
