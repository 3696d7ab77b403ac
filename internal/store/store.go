// Package store persists the coordination entities. The engine only relies
// on the Store interface; SQLite through GORM is the shipped implementation.
package store

import (
	"context"

	"meetsync/internal/models"
)

// EventFilter narrows ListEventsForUser.
type EventFilter struct {
	Status models.EventStatus
	Limit  int
	Offset int
}

// Store is the set of operations the engine performs against persistence.
// Implementations must be safe for concurrent use. Lookups of a missing row
// return models.ErrNotFound.
type Store interface {
	// RunAtomic runs fn in one serializable transaction. The Store handed to
	// fn is bound to that transaction; fn's error rolls everything back.
	RunAtomic(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByIdentityKey(ctx context.Context, key string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]*models.User, error)

	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEventsForUser(ctx context.Context, userID string, filter EventFilter) ([]*models.EventSummary, error)
	// TransitionEventStatus moves the event to `to` only if its current
	// status may transition there. It reports whether a row changed.
	TransitionEventStatus(ctx context.Context, id string, to models.EventStatus) (bool, error)

	AddParticipant(ctx context.Context, p *models.EventParticipant) error
	GetParticipant(ctx context.Context, eventID, userID string) (*models.EventParticipant, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.ParticipantView, error)
	TransitionParticipantStatus(ctx context.Context, eventID, userID string, to models.ParticipantStatus) (bool, error)

	CreateTimeSlots(ctx context.Context, slots []*models.TimeSlot) error
	GetTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error)
	// ListTimeSlots returns the event's slots in proposal order.
	ListTimeSlots(ctx context.Context, eventID string) ([]*models.TimeSlot, error)

	// ReplaceResponses drops every response userID gave to slots of eventID
	// and stores responses instead, atomically.
	ReplaceResponses(ctx context.Context, eventID, userID string, responses []*models.AvailabilityResponse) error
	ListResponses(ctx context.Context, eventID string) ([]models.ResponseRecord, error)

	CreateConfirmedEvent(ctx context.Context, c *models.ConfirmedEvent) error
	GetConfirmedEvent(ctx context.Context, eventID string) (*models.ConfirmedEvent, error)
	RecordExternalEvent(ctx context.Context, eventID, externalID, calendarID, url string) error
	// ListPendingSync returns confirmations that asked for calendar invites
	// but have no external event yet, oldest first.
	ListPendingSync(ctx context.Context) ([]*models.ConfirmedEvent, error)
}
