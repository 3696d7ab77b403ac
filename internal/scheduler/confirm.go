package scheduler

import (
	"context"
	"errors"
	"fmt"

	"meetsync/internal/models"
	"meetsync/internal/store"
	"meetsync/internal/syncer"
)

// ConfirmOptions tunes ConfirmEvent. The zero value sends calendar invites.
type ConfirmOptions struct {
	Location            string
	SkipCalendarInvites bool
}

// SchedulingResult is the committed scheduling decision.
type SchedulingResult struct {
	Event          *models.Event          `json:"event"`
	ConfirmedEvent *models.ConfirmedEvent `json:"confirmed_event"`
	TimeSlot       *models.TimeSlot       `json:"time_slot"`
}

// ConfirmResult reports the authoritative scheduling decision and the
// advisory calendar sync separately.
type ConfirmResult struct {
	Scheduling   SchedulingResult `json:"scheduling"`
	CalendarSync syncer.Result    `json:"calendar_sync"`
}

// Degraded reports whether the event was confirmed but calendar sync failed.
func (r *ConfirmResult) Degraded() bool {
	return r.CalendarSync.Attempted && r.CalendarSync.Err != nil
}

// ConfirmEvent fixes slotID as the event's meeting time. The status change
// and the confirmation record commit together; the calendar event is
// created afterwards and its failure never undoes the confirmation.
func (s *Service) ConfirmEvent(ctx context.Context, eventID, slotID, confirmerID string, opts ConfirmOptions) (*ConfirmResult, error) {
	var result SchedulingResult
	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		if event.Status.Terminal() {
			return fmt.Errorf("%w: event is already %s", models.ErrInvalidState, event.Status)
		}
		if event.CreatedBy != confirmerID {
			return fmt.Errorf("%w: only the organizer can confirm the event", models.ErrAccessDenied)
		}

		slot, err := tx.GetTimeSlot(ctx, slotID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && slot.EventID != eventID) {
			return fmt.Errorf("%w: time slot %s does not belong to event %s", models.ErrInvalidState, slotID, eventID)
		}
		if err != nil {
			return err
		}

		ok, err := tx.TransitionEventStatus(ctx, eventID, models.EventStatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: event was confirmed or cancelled concurrently", models.ErrInvalidState)
		}

		confirmed := &models.ConfirmedEvent{
			EventID:       eventID,
			TimeSlotID:    slot.ID,
			Location:      opts.Location,
			SyncRequested: !opts.SkipCalendarInvites,
		}
		if err := tx.CreateConfirmedEvent(ctx, confirmed); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: event already has a confirmation", models.ErrInvalidState)
			}
			return err
		}

		event, err = tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		result = SchedulingResult{Event: event, ConfirmedEvent: confirmed, TimeSlot: slot}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm event: %w", err)
	}
	s.logger.Info("Event confirmed.", "event_id", eventID, "slot_id", slotID, "start", result.TimeSlot.StartTime)

	res := &ConfirmResult{Scheduling: result}
	if opts.SkipCalendarInvites {
		return res, nil
	}
	if s.sync == nil {
		s.logger.Warn("Calendar sync is not configured, leaving confirmation pending.", "event_id", eventID)
		return res, nil
	}

	res.CalendarSync = s.sync.Sync(ctx, eventID)
	if res.Degraded() {
		s.logger.Warn("Event confirmed but calendar sync failed.", "event_id", eventID, "error", res.CalendarSync.Err)
	} else if res.CalendarSync.Synced {
		res.Scheduling.ConfirmedEvent.ExternalEventID = res.CalendarSync.ExternalEventID
		res.Scheduling.ConfirmedEvent.CalendarID = res.CalendarSync.CalendarID
		res.Scheduling.ConfirmedEvent.ExternalURL = res.CalendarSync.URL
	}
	return res, nil
}
