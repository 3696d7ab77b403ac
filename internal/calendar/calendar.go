// Package calendar defines the gateway the engine uses to talk to external
// calendar providers, plus the provider-neutral types that cross it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetsync/internal/models"
)

// ErrNoCredential is returned when a user has no usable calendar link.
var ErrNoCredential = errors.New("no calendar credential")

// BusyInterval is a block of time a user is already committed to.
type BusyInterval struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Summary    string    `json:"summary,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
}

// Overlaps reports whether b intersects [start, end). Touching boundaries
// do not count.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

// Overlapping returns the intervals that intersect [start, end), in input
// order. The result is never nil.
func Overlapping(intervals []BusyInterval, start, end time.Time) []BusyInterval {
	out := make([]BusyInterval, 0, len(intervals))
	for _, b := range intervals {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out
}

// EventRequest describes an external event to create.
type EventRequest struct {
	UID            string
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	AttendeeEmails []string
	Location       string
	OrganizerEmail string
}

// CreatedEvent locates an event created on a provider.
type CreatedEvent struct {
	ExternalEventID string
	CalendarID      string
	URL             string
}

// Gateway is an external calendar provider.
type Gateway interface {
	ListBusyIntervals(ctx context.Context, user *models.User, start, end time.Time) ([]BusyInterval, error)
	CreateExternalEvent(ctx context.Context, user *models.User, req EventRequest) (*CreatedEvent, error)
}

// ParseRef splits a "<provider>:<account>" calendar reference.
func ParseRef(ref string) (provider, account string, err error) {
	provider, account, ok := strings.Cut(ref, ":")
	if !ok || provider == "" || account == "" {
		return "", "", fmt.Errorf("%w: malformed calendar reference %q", ErrNoCredential, ref)
	}
	return provider, account, nil
}
