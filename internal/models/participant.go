package models

import "time"

// ParticipantStatus is where an invited user stands in an event.
type ParticipantStatus string

const (
	ParticipantStatusInvited   ParticipantStatus = "invited"
	ParticipantStatusResponded ParticipantStatus = "responded"
	ParticipantStatusDeclined  ParticipantStatus = "declined"
)

var participantTransitions = map[ParticipantStatus][]ParticipantStatus{
	ParticipantStatusInvited:  {ParticipantStatusResponded, ParticipantStatusDeclined},
	ParticipantStatusDeclined: {ParticipantStatusResponded},
}

// CanTransitionTo reports whether s -> to is allowed. Responded never
// moves back.
func (s ParticipantStatus) CanTransitionTo(to ParticipantStatus) bool {
	for _, next := range participantTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParticipantSourcesFor returns every status from which to is reachable.
func ParticipantSourcesFor(to ParticipantStatus) []ParticipantStatus {
	var sources []ParticipantStatus
	for _, from := range []ParticipantStatus{ParticipantStatusInvited, ParticipantStatusResponded, ParticipantStatusDeclined} {
		if from.CanTransitionTo(to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// EventParticipant joins a User to an Event.
type EventParticipant struct {
	ID        string            `json:"id" gorm:"primaryKey"`
	EventID   string            `json:"event_id" gorm:"uniqueIndex:idx_participant_event_user;not null"`
	UserID    string            `json:"user_id" gorm:"uniqueIndex:idx_participant_event_user;not null"`
	Status    ParticipantStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt time.Time         `json:"created_at"`
}

func (EventParticipant) TableName() string { return "event_participants" }

// ParticipantView is a participant as shown on a hydrated event.
type ParticipantView struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email"`
	Name   string            `json:"name"`
	Status ParticipantStatus `json:"participation_status"`
}
