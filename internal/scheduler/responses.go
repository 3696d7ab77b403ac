package scheduler

import (
	"context"
	"fmt"

	"meetsync/internal/models"
	"meetsync/internal/store"
)

// ResponseInput is one stance on one slot.
type ResponseInput struct {
	TimeSlotID string                `json:"time_slot_id"`
	Status     models.ResponseStatus `json:"status"`
}

// SubmitAvailabilityResponses replaces every response userID gave within
// the event with responses. Slots left out are withdrawn. A repeated slot
// keeps its last status. Submitting at least one response marks the
// participant as responded.
func (s *Service) SubmitAvailabilityResponses(ctx context.Context, userID, eventID string, responses []ResponseInput) error {
	for _, r := range responses {
		if r.TimeSlotID == "" {
			return fmt.Errorf("%w: time slot id is required", models.ErrValidation)
		}
		if !r.Status.Valid() {
			return fmt.Errorf("%w: unknown availability status %q", models.ErrValidation, r.Status)
		}
	}

	var stored int
	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		event, participant, err := authorize(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if event.Status.Terminal() {
			return fmt.Errorf("%w: event is %s", models.ErrInvalidState, event.Status)
		}
		if event.DeadlinePassed(s.now()) {
			return fmt.Errorf("%w: the response deadline has passed", models.ErrInvalidState)
		}

		slots, err := tx.ListTimeSlots(ctx, eventID)
		if err != nil {
			return err
		}
		owned := make(map[string]struct{}, len(slots))
		for _, slot := range slots {
			owned[slot.ID] = struct{}{}
		}

		var order []string
		latest := make(map[string]models.ResponseStatus, len(responses))
		for _, r := range responses {
			if _, ok := owned[r.TimeSlotID]; !ok {
				return fmt.Errorf("%w: time slot %s does not belong to event %s", models.ErrValidation, r.TimeSlotID, eventID)
			}
			if _, seen := latest[r.TimeSlotID]; !seen {
				order = append(order, r.TimeSlotID)
			}
			latest[r.TimeSlotID] = r.Status
		}

		rows := make([]*models.AvailabilityResponse, 0, len(order))
		for _, slotID := range order {
			rows = append(rows, &models.AvailabilityResponse{
				TimeSlotID: slotID,
				UserID:     userID,
				Status:     latest[slotID],
			})
		}
		if err := tx.ReplaceResponses(ctx, eventID, userID, rows); err != nil {
			return err
		}
		stored = len(rows)

		if participant != nil && stored > 0 && participant.Status != models.ParticipantStatusResponded {
			if _, err := tx.TransitionParticipantStatus(ctx, eventID, userID, models.ParticipantStatusResponded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("submit responses: %w", err)
	}

	s.logger.Info("Availability recorded.", "event_id", eventID, "user_id", userID, "responses", stored)
	return nil
}
