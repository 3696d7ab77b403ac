package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to EventStatus
		allowed  bool
	}{
		{EventStatusDraft, EventStatusOpen, true},
		{EventStatusDraft, EventStatusConfirmed, true},
		{EventStatusDraft, EventStatusCancelled, false},
		{EventStatusOpen, EventStatusConfirmed, true},
		{EventStatusOpen, EventStatusCancelled, true},
		{EventStatusOpen, EventStatusDraft, false},
		{EventStatusConfirmed, EventStatusConfirmed, false},
		{EventStatusConfirmed, EventStatusCancelled, false},
		{EventStatusCancelled, EventStatusOpen, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, EventStatusConfirmed.Terminal())
	assert.True(t, EventStatusCancelled.Terminal())
	assert.False(t, EventStatusDraft.Terminal())
}

func TestEventSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []EventStatus{EventStatusDraft, EventStatusOpen}, EventSourcesFor(EventStatusConfirmed))
	assert.ElementsMatch(t, []EventStatus{EventStatusOpen}, EventSourcesFor(EventStatusCancelled))
	assert.ElementsMatch(t, []EventStatus{EventStatusDraft}, EventSourcesFor(EventStatusOpen))
	assert.Empty(t, EventSourcesFor(EventStatusDraft))
}

func TestParticipantStatus_NeverRegresses(t *testing.T) {
	assert.True(t, ParticipantStatusInvited.CanTransitionTo(ParticipantStatusResponded))
	assert.True(t, ParticipantStatusInvited.CanTransitionTo(ParticipantStatusDeclined))
	assert.False(t, ParticipantStatusResponded.CanTransitionTo(ParticipantStatusInvited))
	assert.False(t, ParticipantStatusResponded.CanTransitionTo(ParticipantStatusDeclined))

	assert.ElementsMatch(t,
		[]ParticipantStatus{ParticipantStatusInvited, ParticipantStatusDeclined},
		ParticipantSourcesFor(ParticipantStatusResponded),
	)
}

func TestEvent_DeadlinePassed(t *testing.T) {
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	assert.False(t, (&Event{}).DeadlinePassed(now))
	assert.True(t, (&Event{Deadline: &before}).DeadlinePassed(now))
	assert.False(t, (&Event{Deadline: &after}).DeadlinePassed(now))
}

func TestResponseStatus_Valid(t *testing.T) {
	assert.True(t, ResponseAvailable.Valid())
	assert.True(t, ResponseMaybe.Valid())
	assert.True(t, ResponseUnavailable.Valid())
	assert.False(t, ResponseStatus("perhaps").Valid())
}
