// Package conflicts checks candidate intervals against participants'
// external calendars. Lookups fail open: a user whose calendar cannot be
// read is reported as free.
package conflicts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"meetsync/internal/calendar"
	"meetsync/internal/logutil"
	"meetsync/internal/models"
	"meetsync/internal/store"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 8
)

// Result is the conflict status of one user.
type Result struct {
	HasConflict          bool                    `json:"has_conflict"`
	ConflictingIntervals []calendar.BusyInterval `json:"conflicting_intervals"`
}

func noConflict() Result {
	return Result{ConflictingIntervals: []calendar.BusyInterval{}}
}

// Checker queries the calendar gateway per user, in parallel.
type Checker struct {
	store       store.Store
	gateway     calendar.Gateway
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
}

func NewChecker(logger *slog.Logger, st store.Store, gw calendar.Gateway, timeout time.Duration, concurrency int) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Checker{
		store:       st,
		gateway:     gw,
		logger:      logutil.NoopIfNil(logger),
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// CheckSchedulingConflicts reports, for every user, the busy intervals that
// overlap [start, end). Each user is checked independently.
func (c *Checker) CheckSchedulingConflicts(ctx context.Context, userIDs []string, start, end time.Time) (map[string]Result, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: interval must end after it starts", models.ErrValidation)
	}

	results := make(map[string]Result, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := results[id]; dup {
			continue
		}
		results[id] = noConflict()
		unique = append(unique, id)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, id := range unique {
		g.Go(func() error {
			res := c.checkUser(ctx, id, start, end)
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (c *Checker) checkUser(ctx context.Context, userID string, start, end time.Time) Result {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		c.logger.Warn("Skipping conflict check for unknown user", "user_id", userID, "error", err)
		return noConflict()
	}
	if !user.HasCalendar() {
		return noConflict()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	busy, err := c.gateway.ListBusyIntervals(callCtx, user, start, end)
	if err != nil {
		if errors.Is(err, calendar.ErrNoCredential) {
			c.logger.Debug("No usable calendar credential", "user_id", userID, "error", err)
		} else {
			c.logger.Warn("Calendar lookup failed, assuming free", "user_id", userID, "error", err)
		}
		return noConflict()
	}

	overlapping := calendar.Overlapping(busy, start, end)
	return Result{HasConflict: len(overlapping) > 0, ConflictingIntervals: overlapping}
}

// CheckSlotConflicts checks one slot of an event for the organizer and
// every participant who has not declined.
func (c *Checker) CheckSlotConflicts(ctx context.Context, eventID, slotID, requesterID string) (map[string]Result, error) {
	event, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	participants, err := c.store.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	allowed := event.CreatedBy == requesterID
	userIDs := []string{event.CreatedBy}
	for _, p := range participants {
		if p.UserID == requesterID {
			allowed = true
		}
		if p.Status != models.ParticipantStatusDeclined {
			userIDs = append(userIDs, p.UserID)
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: user %s cannot access event %s", models.ErrAccessDenied, requesterID, eventID)
	}

	slot, err := c.store.GetTimeSlot(ctx, slotID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && slot.EventID != eventID) {
		return nil, fmt.Errorf("%w: time slot %s does not belong to event %s", models.ErrValidation, slotID, eventID)
	}
	if err != nil {
		return nil, err
	}

	return c.CheckSchedulingConflicts(ctx, userIDs, slot.StartTime, slot.EndTime)
}
