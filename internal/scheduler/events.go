package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"meetsync/internal/models"
	"meetsync/internal/store"
)

// SlotInput is a proposed interval [Start, End).
type SlotInput struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CreateEventInput struct {
	Title             string
	Description       string
	DurationMinutes   int
	ParticipantEmails []string
	TimeSlots         []SlotInput
	Deadline          *time.Time
}

func (in CreateEventInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if in.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must be positive", models.ErrValidation)
	}
	for i, slot := range in.TimeSlots {
		if slot.Start.IsZero() || slot.End.IsZero() {
			return fmt.Errorf("%w: time slot %d needs a start and an end", models.ErrValidation, i+1)
		}
		if !slot.End.After(slot.Start) {
			return fmt.Errorf("%w: time slot %d must end after it starts", models.ErrValidation, i+1)
		}
	}
	return nil
}

// CreateEvent creates a draft event with its participants and time slots in
// one transaction. Unknown participant emails get placeholder users.
func (s *Service) CreateEvent(ctx context.Context, creatorID string, in CreateEventInput) (*models.EventDetails, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var emails []string
	seen := make(map[string]struct{}, len(in.ParticipantEmails))
	for _, raw := range in.ParticipantEmails {
		email, err := normalizeEmail(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = s.defaultDuration
	}

	event := &models.Event{
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: duration,
		CreatedBy:       creatorID,
		Status:          models.EventStatusDraft,
	}
	if in.Deadline != nil {
		deadline := in.Deadline.UTC()
		event.Deadline = &deadline
	}

	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		if _, err := tx.GetUser(ctx, creatorID); err != nil {
			return fmt.Errorf("creator %s: %w", creatorID, err)
		}
		if err := tx.CreateEvent(ctx, event); err != nil {
			return err
		}

		for _, email := range emails {
			user, err := s.findOrCreatePlaceholder(ctx, tx, email)
			if err != nil {
				return err
			}
			if err := tx.AddParticipant(ctx, &models.EventParticipant{
				EventID: event.ID,
				UserID:  user.ID,
				Status:  models.ParticipantStatusInvited,
			}); err != nil {
				return err
			}
		}

		slots := make([]*models.TimeSlot, 0, len(in.TimeSlots))
		for i, slot := range in.TimeSlots {
			slots = append(slots, &models.TimeSlot{
				EventID:   event.ID,
				StartTime: slot.Start.UTC(),
				EndTime:   slot.End.UTC(),
				Position:  i,
				CreatedBy: creatorID,
			})
		}
		return tx.CreateTimeSlots(ctx, slots)
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("Event created.", "event_id", event.ID, "creator", creatorID, "participants", len(emails), "slots", len(in.TimeSlots))
	return s.GetEventByID(ctx, event.ID, creatorID)
}

func (s *Service) findOrCreatePlaceholder(ctx context.Context, tx store.Store, email string) (*models.User, error) {
	user, err := tx.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		IdentityKey: "placeholder:" + email,
		Email:       email,
		Name:        localPart(email),
		Placeholder: true,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Debug("Created placeholder user.", "user_id", user.ID, "email", email)
	return user, nil
}

// GetEventByID returns the event with its participants and its slots, each
// slot carrying the responses it received.
func (s *Service) GetEventByID(ctx context.Context, eventID, requesterID string) (*models.EventDetails, error) {
	var details *models.EventDetails
	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		event, _, err := authorize(ctx, tx, eventID, requesterID)
		if err != nil {
			return err
		}

		participants, err := tx.ListParticipants(ctx, eventID)
		if err != nil {
			return err
		}
		slots, err := tx.ListTimeSlots(ctx, eventID)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, eventID)
		if err != nil {
			return err
		}

		details = hydrate(event, participants, slots, responses)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func hydrate(event *models.Event, participants []models.ParticipantView, slots []*models.TimeSlot, responses []models.ResponseRecord) *models.EventDetails {
	bySlot := make(map[string][]models.SlotResponse, len(slots))
	for _, r := range responses {
		bySlot[r.TimeSlotID] = append(bySlot[r.TimeSlotID], models.SlotResponse{UserID: r.UserID, Status: r.Status})
	}

	views := make([]models.SlotView, 0, len(slots))
	for _, slot := range slots {
		rs := bySlot[slot.ID]
		if rs == nil {
			rs = []models.SlotResponse{}
		}
		views = append(views, models.SlotView{TimeSlot: *slot, Responses: rs})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StartTime.Before(views[j].StartTime)
	})

	if participants == nil {
		participants = []models.ParticipantView{}
	}
	return &models.EventDetails{Event: *event, Participants: participants, TimeSlots: views}
}

// ListUserEvents returns the events userID created or was invited to,
// newest first.
func (s *Service) ListUserEvents(ctx context.Context, userID string, filter store.EventFilter) ([]*models.EventSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", models.ErrValidation)
	}
	return s.store.ListEventsForUser(ctx, userID, filter)
}

// PublishEvent opens a draft event for responses.
func (s *Service) PublishEvent(ctx context.Context, eventID, requesterID string) (*models.Event, error) {
	return s.transition(ctx, eventID, requesterID, models.EventStatusOpen)
}

// CancelEvent cancels an open event.
func (s *Service) CancelEvent(ctx context.Context, eventID, requesterID string) (*models.Event, error) {
	return s.transition(ctx, eventID, requesterID, models.EventStatusCancelled)
}

func (s *Service) transition(ctx context.Context, eventID, requesterID string, to models.EventStatus) (*models.Event, error) {
	var event *models.Event
	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		var err error
		event, err = tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		if event.CreatedBy != requesterID {
			return fmt.Errorf("%w: only the organizer can change the event status", models.ErrAccessDenied)
		}

		ok, err := tx.TransitionEventStatus(ctx, eventID, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: event cannot move from %s to %s", models.ErrInvalidState, event.Status, to)
		}
		event, err = tx.GetEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event status changed.", "event_id", eventID, "status", to)
	return event, nil
}

// DeclineEvent marks an invited participant as declined.
func (s *Service) DeclineEvent(ctx context.Context, eventID, userID string) error {
	return s.store.RunAtomic(ctx, func(tx store.Store) error {
		event, participant, err := authorize(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if participant == nil {
			return fmt.Errorf("%w: the organizer cannot decline their own event", models.ErrInvalidState)
		}
		if event.Status.Terminal() {
			return fmt.Errorf("%w: event is %s", models.ErrInvalidState, event.Status)
		}

		ok, err := tx.TransitionParticipantStatus(ctx, eventID, userID, models.ParticipantStatusDeclined)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: participant has already %s", models.ErrInvalidState, participant.Status)
		}
		s.logger.Info("Participant declined.", "event_id", eventID, "user_id", userID)
		return nil
	})
}
