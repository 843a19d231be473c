package model

// EventState is the position of an event in the moderation lifecycle.
type EventState string

const (
	EventPending   EventState = "PENDING"
	EventPublished EventState = "PUBLISHED"
	EventCanceled  EventState = "CANCELED"
)

// StateAction is a requested moderation move. The first two are available to
// the initiator, the last two to an admin.
type StateAction string

const (
	ActionSendToReview StateAction = "SEND_TO_REVIEW"
	ActionCancelReview StateAction = "CANCEL_REVIEW"
	ActionPublish      StateAction = "PUBLISH_EVENT"
	ActionReject       StateAction = "REJECT_EVENT"
)

// eventTransitions lists, per action, the states it may be applied from and
// the resulting state. Anything absent is refused.
var eventTransitions = map[StateAction]struct {
	from map[EventState]bool
	to   EventState
}{
	ActionSendToReview: {from: map[EventState]bool{EventPending: true, EventCanceled: true}, to: EventPending},
	ActionCancelReview: {from: map[EventState]bool{EventPending: true, EventCanceled: true}, to: EventCanceled},
	ActionPublish:      {from: map[EventState]bool{EventPending: true}, to: EventPublished},
	ActionReject:       {from: map[EventState]bool{EventPending: true, EventCanceled: true}, to: EventCanceled},
}

// Editable reports whether the event content may still change. Publication
// is a one-way gate.
func (s EventState) Editable() bool {
	return s != EventPublished
}

// Valid reports whether s is a known state.
func (s EventState) Valid() bool {
	switch s {
	case EventPending, EventPublished, EventCanceled:
		return true
	}
	return false
}

// Apply returns the state reached by applying action to s, or a
// ConditionsNotMet error naming the current state.
func (s EventState) Apply(action StateAction) (EventState, error) {
	t, ok := eventTransitions[action]
	if !ok {
		return s, Errorf(ErrIncorrectRequest, "apply state action", "unknown state action %q", action)
	}
	if !t.from[s] {
		return s, Errorf(ErrConditionsNotMet, "apply state action",
			"cannot %s the event because it's not in the right state: %s", action.verb(), s)
	}
	return t.to, nil
}

// ByInitiator reports whether the action belongs to the initiator's set.
func (a StateAction) ByInitiator() bool {
	return a == ActionSendToReview || a == ActionCancelReview
}

// ByAdmin reports whether the action belongs to the moderator's set.
func (a StateAction) ByAdmin() bool {
	return a == ActionPublish || a == ActionReject
}

func (a StateAction) verb() string {
	switch a {
	case ActionSendToReview:
		return "send to review"
	case ActionCancelReview:
		return "withdraw"
	case ActionPublish:
		return "publish"
	case ActionReject:
		return "reject"
	}
	return string(a)
}

// ParseEventState parses a state filter value.
func ParseEventState(v string) (EventState, error) {
	s := EventState(v)
	if !s.Valid() {
		return "", Errorf(ErrIncorrectRequest, "parse event state", "unknown event state %q", v)
	}
	return s, nil
}

// RequestStatus is the state of a participation request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestConfirmed RequestStatus = "CONFIRMED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCanceled  RequestStatus = "CANCELED"
)

// requestTransitions is the legal move table for participation requests.
// CANCELED is reachable from everywhere so requester cancellation stays
// idempotent.
var requestTransitions = map[RequestStatus]map[RequestStatus]bool{
	RequestPending:   {RequestConfirmed: true, RequestRejected: true, RequestCanceled: true},
	RequestConfirmed: {RequestCanceled: true},
	RequestRejected:  {RequestCanceled: true},
	RequestCanceled:  {RequestCanceled: true},
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	_, ok := requestTransitions[s]
	return ok
}

// Transition checks that moving from s to next is legal.
func (s RequestStatus) Transition(next RequestStatus) error {
	if !requestTransitions[s][next] {
		return Errorf(ErrIncorrectRequest, "request status transition",
			"request in status %s cannot become %s", s, next)
	}
	return nil
}

// Decidable reports whether s is a status an initiator may decide to.
func (s RequestStatus) Decidable() bool {
	return s == RequestConfirmed || s == RequestRejected
}

// ParseRequestStatus parses a request status value.
func ParseRequestStatus(v string) (RequestStatus, error) {
	s := RequestStatus(v)
	if !s.Valid() {
		return "", Errorf(ErrIncorrectRequest, "parse request status", "unknown request status %q", v)
	}
	return s, nil
}
