// Package capacity owns the confirmed-participant counter of every event.
//
// Every change to Event.ConfirmedCount goes through a Tracker, and always
// inside a repository.EventTx, so the check-and-increment runs while the
// event is locked: concurrent reservations on the same event can never
// jointly exceed its participant limit.
package capacity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
)

// Remaining is the free capacity of an event.
type Remaining struct {
	Slots     int  `json:"slots"`
	Unlimited bool `json:"unlimited"`
}

// Exhausted reports whether no further participant can be confirmed.
func (r Remaining) Exhausted() bool {
	return !r.Unlimited && r.Slots == 0
}

// Tracker reserves and releases participant slots.
type Tracker struct {
	store repository.Store
	log   zerolog.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(store repository.Store, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// TryReserveSlot takes one slot of the locked event if one is free. It
// returns false, without changing anything, when the limit is reached.
func (t *Tracker) TryReserveSlot(ctx context.Context, tx repository.EventTx) (bool, error) {
	ok, err := tx.ReserveSlot(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	e := tx.Event()
	if !ok {
		t.log.Info().Str("event_id", e.ID).Int("limit", e.ParticipantLimit).Msg("participant limit reached")
		return false, nil
	}
	t.log.Debug().Str("event_id", e.ID).Int("confirmed", e.ConfirmedCount).Msg("slot reserved")
	return true, nil
}

// ReleaseSlot gives one slot of the locked event back. The counter never
// drops below zero.
func (t *Tracker) ReleaseSlot(ctx context.Context, tx repository.EventTx) error {
	if err := tx.ReleaseSlot(ctx); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	e := tx.Event()
	t.log.Debug().Str("event_id", e.ID).Int("confirmed", e.ConfirmedCount).Msg("slot released")
	return nil
}

// RemainingCapacity reads the event's free capacity.
func (t *Tracker) RemainingCapacity(ctx context.Context, eventID string) (Remaining, error) {
	e, err := t.store.GetEvent(ctx, eventID)
	if err != nil {
		return Remaining{}, err
	}
	n, unlimited := e.RemainingCapacity()
	return Remaining{Slots: n, Unlimited: unlimited}, nil
}

// Resync recomputes the counter of the locked event from its CONFIRMED
// requests and reports the previous value when it had drifted.
func (t *Tracker) Resync(ctx context.Context, tx repository.EventTx) (prev int, changed bool, err error) {
	actual, err := tx.CountConfirmed(ctx)
	if err != nil {
		return 0, false, err
	}
	prev = tx.Event().ConfirmedCount
	if prev == actual {
		return prev, false, nil
	}
	if err := tx.ResetConfirmedCount(ctx, actual); err != nil {
		return prev, false, err
	}
	t.log.Warn().Str("event_id", tx.Event().ID).Int("stored", prev).Int("actual", actual).
		Msg("confirmed counter drift repaired")
	return prev, true, nil
}
