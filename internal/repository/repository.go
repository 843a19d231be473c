// Package repository persists users, events and participation requests.
//
// All writes that touch an event's participation state go through
// Store.WithEventLock, which serialises work per event id: a row-level
// SELECT … FOR UPDATE in Postgres, a per-event semaphore in memory. Work on
// different events proceeds in parallel.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a uniqueness rule:
// a second active request for the same (event, requester) pair, or a reused
// user email.
var ErrDuplicate = errors.New("duplicate")

// ErrLockTimeout is returned when the per-event lock could not be acquired
// within the configured wait after every retry.
var ErrLockTimeout = errors.New("event is busy, try again later")

// Store is the durable state the core depends on.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEventsByInitiator(ctx context.Context, initiatorID string, page model.Page) ([]model.Event, error)
	SearchEvents(ctx context.Context, f model.AdminEventFilter) ([]model.Event, error)
	ListPublishedEvents(ctx context.Context, f model.PublicEventFilter) ([]model.Event, error)

	GetRequest(ctx context.Context, id string) (*model.ParticipationRequest, error)
	ListRequestsByEvent(ctx context.Context, eventID string) ([]model.ParticipationRequest, error)
	ListRequestsByRequester(ctx context.Context, requesterID string) ([]model.ParticipationRequest, error)

	// WithEventLock runs fn while holding the event's lock. If fn returns an
	// error nothing it wrote is kept. Returns ErrNotFound when the event
	// does not exist and ErrLockTimeout when the lock stays contended.
	WithEventLock(ctx context.Context, eventID string, fn func(EventTx) error) error

	// EventIDsWithCountDrift lists events whose stored confirmed counter
	// differs from the number of CONFIRMED requests. The answer is a hint
	// only; callers re-check under the event lock.
	EventIDsWithCountDrift(ctx context.Context) ([]string, error)
}

// EventTx is a unit of work on one locked event.
type EventTx interface {
	// Event is the locked row. ReserveSlot and ReleaseSlot keep its
	// ConfirmedCount current.
	Event() *model.Event

	// ReserveSlot increments the confirmed counter if the event is
	// unlimited or below its limit, and reports whether it did.
	ReserveSlot(ctx context.Context) (bool, error)
	// ReleaseSlot decrements the confirmed counter, never below zero.
	ReleaseSlot(ctx context.Context) error
	// CountConfirmed counts CONFIRMED requests of the event.
	CountConfirmed(ctx context.Context) (int, error)
	// ResetConfirmedCount overwrites the counter. Only used to repair drift.
	ResetConfirmedCount(ctx context.Context, n int) error

	// SaveEvent writes content, state and publication fields. The confirmed
	// counter is never written through SaveEvent.
	SaveEvent(ctx context.Context, e *model.Event) error

	Request(ctx context.Context, id string) (*model.ParticipationRequest, error)
	Requests(ctx context.Context, ids []string) (map[string]model.ParticipationRequest, error)
	HasActiveRequest(ctx context.Context, requesterID string) (bool, error)
	InsertRequest(ctx context.Context, r *model.ParticipationRequest) error
	SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error
}
