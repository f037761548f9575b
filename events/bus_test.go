package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := testBus()

	var order []string
	bus.Subscribe(MatchCompletedSubject, func(ctx context.Context, ev Event) error {
		order = append(order, "first")
		return nil
	})
	bus.Subscribe(MatchCompletedSubject, func(ctx context.Context, ev Event) error {
		order = append(order, "second")
		return nil
	})

	payload := MatchCompletedPayload{MatchID: 5, Revision: 1, WinnerParticipantID: 9}
	if err := bus.Publish(context.Background(), MatchCompletedSubject, 1, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("handlers ran out of order: %v", order)
	}
}

func TestBusEnvelope(t *testing.T) {
	bus := testBus()

	var got Event
	bus.Subscribe(TournamentCompletedSubject, func(ctx context.Context, ev Event) error {
		got = ev
		return nil
	})

	winner := 3
	if err := bus.Publish(context.Background(), TournamentCompletedSubject, 7, TournamentCompletedPayload{WinnerParticipantID: &winner}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.ID == "" {
		t.Fatal("envelope id must be set")
	}
	if got.Subject != TournamentCompletedSubject || got.TournamentID != 7 {
		t.Fatalf("envelope wrong: %+v", got)
	}
	payload, ok := got.Payload.(TournamentCompletedPayload)
	if !ok {
		t.Fatalf("payload type %T", got.Payload)
	}
	if payload.WinnerParticipantID == nil || *payload.WinnerParticipantID != 3 {
		t.Fatalf("payload winner wrong: %v", payload.WinnerParticipantID)
	}
}

func TestBusFailedHandlerDoesNotStopDelivery(t *testing.T) {
	bus := testBus()

	boom := errors.New("boom")
	delivered := false
	bus.Subscribe(DisputeOpenedSubject, func(ctx context.Context, ev Event) error {
		return boom
	})
	bus.Subscribe(DisputeOpenedSubject, func(ctx context.Context, ev Event) error {
		delivered = true
		return nil
	})

	err := bus.Publish(context.Background(), DisputeOpenedSubject, 1, DisputeOpenedPayload{DisputeID: 1, MatchID: 2})
	if !errors.Is(err, boom) {
		t.Fatalf("handler error should surface, got %v", err)
	}
	if !delivered {
		t.Fatal("later subscribers must still receive the event")
	}
}

func TestBusIgnoresUnrelatedSubjects(t *testing.T) {
	bus := testBus()

	called := false
	bus.Subscribe(MatchScheduledSubject, func(ctx context.Context, ev Event) error {
		called = true
		return nil
	})

	if err := bus.Publish(context.Background(), PrizeDistributedSubject, 1, PrizeDistributedPayload{Placement: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if called {
		t.Fatal("subscriber fired for a subject it never registered")
	}
}
