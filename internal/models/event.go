package models

import "time"

// EventStatus is the lifecycle state of a coordination event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusOpen      EventStatus = "open"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCancelled EventStatus = "cancelled"
)

// eventTransitions lists, for every status, the statuses it may move to.
// Anything not listed here is rejected.
var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft: {EventStatusOpen, EventStatusConfirmed},
	EventStatusOpen:  {EventStatusConfirmed, EventStatusCancelled},
}

// CanTransitionTo reports whether the table allows s -> to.
func (s EventStatus) CanTransitionTo(to EventStatus) bool {
	for _, next := range eventTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s EventStatus) Terminal() bool {
	return len(eventTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusOpen, EventStatusConfirmed, EventStatusCancelled:
		return true
	}
	return false
}

// EventSourcesFor returns every status from which to is reachable.
// Stores use it as the guard of a compare-and-set status update.
func EventSourcesFor(to EventStatus) []EventStatus {
	var sources []EventStatus
	for _, from := range []EventStatus{EventStatusDraft, EventStatusOpen, EventStatusConfirmed, EventStatusCancelled} {
		if from.CanTransitionTo(to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// Event is a coordination unit: a meeting being scheduled among participants.
type Event struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	Title           string      `json:"title" gorm:"not null"`
	Description     string      `json:"description,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	CreatedBy       string      `json:"created_by" gorm:"index;not null"`
	Status          EventStatus `json:"status" gorm:"type:text;index;not null"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// DeadlinePassed reports whether responses are no longer accepted at now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.Deadline != nil && now.After(*e.Deadline)
}

// EventSummary is an Event as listed for a user, with the creator's name.
type EventSummary struct {
	Event
	CreatorName string `json:"creator_name"`
}

// EventDetails is an Event hydrated with its participants and slots.
type EventDetails struct {
	Event
	Participants []ParticipantView `json:"participants"`
	TimeSlots    []SlotView        `json:"time_slots"`
}

// ConfirmedEvent records the slot chosen for an Event and, once the
// external calendar event exists, where it lives.
type ConfirmedEvent struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	EventID         string    `json:"event_id" gorm:"uniqueIndex;not null"`
	TimeSlotID      string    `json:"time_slot_id" gorm:"not null"`
	Location        string    `json:"location,omitempty"`
	SyncRequested   bool      `json:"sync_requested"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	CalendarID      string    `json:"calendar_id,omitempty"`
	ExternalURL     string    `json:"external_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (ConfirmedEvent) TableName() string { return "confirmed_events" }

// Synced reports whether the external calendar event has been recorded.
func (c *ConfirmedEvent) Synced() bool {
	return c.ExternalEventID != ""
}
