// Package model defines the core domain types for the event moderation and
// participation service.
package model

import "time"

// Creation defaults applied when the initiator omits the field.
const (
	DefaultPaid              = false
	DefaultParticipantLimit  = 0
	DefaultRequestModeration = true
)

// MinLeadTime is how far in the future an event date must be whenever it is
// supplied on create or update.
const MinLeadTime = 2 * time.Hour

// User is an actor of the system: an initiator, a requester or both.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is the point where an event takes place.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is an activity proposed by its initiator and moderated by an admin
// before participation requests are accepted.
type Event struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Annotation        string     `json:"annotation"`
	Description       string     `json:"description"`
	Location          Location   `json:"location"`
	Paid              bool       `json:"paid"`
	EventDate         time.Time  `json:"eventDate"`
	InitiatorID       string     `json:"initiatorId"`
	ParticipantLimit  int        `json:"participantLimit"`
	RequestModeration bool       `json:"requestModeration"`
	ConfirmedCount    int        `json:"confirmedRequests"`
	State             EventState `json:"state"`
	CreatedOn         time.Time  `json:"createdOn"`
	PublishedOn       *time.Time `json:"publishedOn,omitempty"`

	// Views is decorated from the statistics service on read, never stored.
	Views int64 `json:"views"`
}

// Unlimited reports whether the event accepts any number of participants.
func (e *Event) Unlimited() bool {
	return e.ParticipantLimit == 0
}

// HasFreeSlot reports whether one more participant can be confirmed.
func (e *Event) HasFreeSlot() bool {
	return e.Unlimited() || e.ConfirmedCount < e.ParticipantLimit
}

// RemainingCapacity returns the number of free slots. The boolean is true
// when the event is unlimited, in which case the count is meaningless.
func (e *Event) RemainingCapacity() (int, bool) {
	if e.Unlimited() {
		return 0, true
	}
	if e.ConfirmedCount >= e.ParticipantLimit {
		return 0, false
	}
	return e.ParticipantLimit - e.ConfirmedCount, false
}

// URI is the path under which views of this event are counted.
func (e *Event) URI() string {
	return EventURI(e.ID)
}

// EventURI builds the statistics URI of a single event.
func EventURI(id string) string {
	return "/events/" + id
}

// EventsURI is the statistics URI of the public event listing.
const EventsURI = "/events"

// ParticipationRequest is a user's request to attend a published event.
type ParticipationRequest struct {
	ID          string        `json:"id"`
	EventID     string        `json:"event"`
	RequesterID string        `json:"requester"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created"`
}

// Active reports whether the request still blocks a new one for the same
// (event, requester) pair.
func (r *ParticipationRequest) Active() bool {
	return r.Status != RequestCanceled
}

// BulkDecision is the outcome of a bulk status update. Overflowed
// confirmations land in Rejected with status CANCELED.
type BulkDecision struct {
	Confirmed []ParticipationRequest `json:"confirmedRequests"`
	Rejected  []ParticipationRequest `json:"rejectedRequests"`
}

// EventSort orders public listings.
type EventSort string

const (
	SortByEventDate EventSort = "EVENT_DATE"
	SortByViews     EventSort = "VIEWS"
)

// Page is an offset window over a result set.
type Page struct {
	From int
	Size int
}

// PublicEventFilter selects published events for the public listing.
type PublicEventFilter struct {
	Text          string
	Paid          *bool
	RangeStart    *time.Time
	RangeEnd      *time.Time
	OnlyAvailable bool
	Sort          EventSort
	Page          Page
}

// AdminEventFilter selects events of any state for moderators.
type AdminEventFilter struct {
	InitiatorIDs []string
	States       []EventState
	RangeStart   *time.Time
	RangeEnd     *time.Time
	Page         Page
}

// NewEvent is the payload submitted by an initiator.
type NewEvent struct {
	Title             string    `json:"title" validate:"required,min=3,max=120"`
	Annotation        string    `json:"annotation" validate:"required,min=20,max=2000"`
	Description       string    `json:"description" validate:"required,min=20,max=7000"`
	EventDate         time.Time `json:"eventDate" validate:"required"`
	Location          *Location `json:"location" validate:"required"`
	Paid              *bool     `json:"paid"`
	ParticipantLimit  *int      `json:"participantLimit" validate:"omitempty,min=0"`
	RequestModeration *bool     `json:"requestModeration"`
}

// EventUpdate is a partial edit of an event. Nil fields are left untouched.
type EventUpdate struct {
	Title             *string      `json:"title" validate:"omitempty,min=3,max=120"`
	Annotation        *string      `json:"annotation" validate:"omitempty,min=20,max=2000"`
	Description       *string      `json:"description" validate:"omitempty,min=20,max=7000"`
	EventDate         *time.Time   `json:"eventDate"`
	Location          *Location    `json:"location"`
	Paid              *bool        `json:"paid"`
	ParticipantLimit  *int         `json:"participantLimit" validate:"omitempty,min=0"`
	RequestModeration *bool        `json:"requestModeration"`
	StateAction       *StateAction `json:"stateAction"`
}

// StatusUpdate is the initiator's bulk decision payload.
type StatusUpdate struct {
	RequestIDs []string      `json:"requestIds" validate:"required,min=1,dive,required"`
	Status     RequestStatus `json:"status" validate:"required"`
}

// NewUser registers an actor.
type NewUser struct {
	Name  string `json:"name" validate:"required,min=2,max=250"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
