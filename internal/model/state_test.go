package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStateApply(t *testing.T) {
	tests := []struct {
		name    string
		from    EventState
		action  StateAction
		want    EventState
		wantErr error
	}{
		{"publish pending", EventPending, ActionPublish, EventPublished, nil},
		{"publish published", EventPublished, ActionPublish, EventPublished, ErrConditionsNotMet},
		{"publish canceled", EventCanceled, ActionPublish, EventCanceled, ErrConditionsNotMet},
		{"reject pending", EventPending, ActionReject, EventCanceled, nil},
		{"reject canceled", EventCanceled, ActionReject, EventCanceled, nil},
		{"reject published", EventPublished, ActionReject, EventPublished, ErrConditionsNotMet},
		{"withdraw pending", EventPending, ActionCancelReview, EventCanceled, nil},
		{"withdraw published", EventPublished, ActionCancelReview, EventPublished, ErrConditionsNotMet},
		{"resubmit canceled", EventCanceled, ActionSendToReview, EventPending, nil},
		{"resubmit pending", EventPending, ActionSendToReview, EventPending, nil},
		{"resubmit published", EventPublished, ActionSendToReview, EventPublished, ErrConditionsNotMet},
		{"unknown action", EventPending, StateAction("ARCHIVE"), EventPending, ErrIncorrectRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Apply(tt.action)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublishErrorNamesCurrentState(t *testing.T) {
	_, err := EventCanceled.Apply(ActionPublish)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CANCELED")

	var domainErr *Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "apply state action", domainErr.Op)
}

func TestRequestStatusTransition(t *testing.T) {
	legal := [][2]RequestStatus{
		{RequestPending, RequestConfirmed},
		{RequestPending, RequestRejected},
		{RequestPending, RequestCanceled},
		{RequestConfirmed, RequestCanceled},
		{RequestRejected, RequestCanceled},
		{RequestCanceled, RequestCanceled},
	}
	for _, tr := range legal {
		assert.NoError(t, tr[0].Transition(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]RequestStatus{
		{RequestConfirmed, RequestRejected},
		{RequestConfirmed, RequestPending},
		{RequestRejected, RequestConfirmed},
		{RequestCanceled, RequestConfirmed},
		{RequestCanceled, RequestPending},
	}
	for _, tr := range illegal {
		assert.ErrorIs(t, tr[0].Transition(tr[1]), ErrIncorrectRequest, "%s -> %s", tr[0], tr[1])
	}
}

func TestParse(t *testing.T) {
	s, err := ParseEventState("PUBLISHED")
	require.NoError(t, err)
	assert.Equal(t, EventPublished, s)

	_, err = ParseEventState("published")
	assert.ErrorIs(t, err, ErrIncorrectRequest)

	st, err := ParseRequestStatus("REJECTED")
	require.NoError(t, err)
	assert.True(t, st.Decidable())
	assert.False(t, RequestCanceled.Decidable())

	_, err = ParseRequestStatus("MAYBE")
	assert.ErrorIs(t, err, ErrIncorrectRequest)
}

func TestRemainingCapacity(t *testing.T) {
	e := Event{ParticipantLimit: 0, ConfirmedCount: 12}
	_, unlimited := e.RemainingCapacity()
	assert.True(t, unlimited)
	assert.True(t, e.HasFreeSlot())

	e = Event{ParticipantLimit: 3, ConfirmedCount: 1}
	n, unlimited := e.RemainingCapacity()
	assert.False(t, unlimited)
	assert.Equal(t, 2, n)

	e.ConfirmedCount = 3
	n, _ = e.RemainingCapacity()
	assert.Zero(t, n)
	assert.False(t, e.HasFreeSlot())
}
