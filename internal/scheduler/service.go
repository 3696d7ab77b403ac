// Package scheduler is the meeting coordination engine: it owns the event,
// participant, time slot and response lifecycle, ranks candidate slots and
// performs the one-way confirmation of an event.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"meetsync/internal/logutil"
	"meetsync/internal/models"
	"meetsync/internal/store"
	"meetsync/internal/syncer"
)

const defaultDurationMinutes = 60

// CalendarSync creates the external calendar event of a confirmed event.
type CalendarSync interface {
	Sync(ctx context.Context, eventID string) syncer.Result
}

// Service implements the coordination operations on top of a Store.
type Service struct {
	store           store.Store
	sync            CalendarSync
	logger          *slog.Logger
	now             func() time.Time
	defaultDuration int
}

type Option func(*Service)

// WithClock overrides the clock used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultDuration sets the duration applied when an event is created
// without one.
func WithDefaultDuration(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 {
			s.defaultDuration = minutes
		}
	}
}

// NewService wires the engine. sync may be nil, in which case confirmations
// that ask for invites are left pending for a later sync pass.
func NewService(logger *slog.Logger, st store.Store, sync CalendarSync, opts ...Option) *Service {
	s := &Service{
		store:           st,
		sync:            sync,
		logger:          logutil.NoopIfNil(logger),
		now:             time.Now,
		defaultDuration: defaultDurationMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeEmail parses a bare or named address and lowercases it.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: email is required", models.ErrValidation)
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email %q", models.ErrValidation, raw)
	}
	return strings.ToLower(addr.Address), nil
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// authorize loads the event and checks that userID is its creator or one
// of its participants. The participant row is nil for the creator.
func authorize(ctx context.Context, tx store.Store, eventID, userID string) (*models.Event, *models.EventParticipant, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	participant, err := tx.GetParticipant(ctx, eventID, userID)
	switch {
	case err == nil:
		return event, participant, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, nil, err
	case event.CreatedBy == userID:
		return event, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: user %s cannot access event %s", models.ErrAccessDenied, userID, eventID)
	}
}
