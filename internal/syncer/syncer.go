// Package syncer pushes confirmed events to the organizer's external
// calendar. Sync is best-effort: a failure is reported, never undone.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"meetsync/internal/calendar"
	"meetsync/internal/logutil"
	"meetsync/internal/models"
	"meetsync/internal/store"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultConcurrency = 4
)

// Result is the advisory outcome of syncing one confirmed event.
type Result struct {
	Attempted       bool   `json:"attempted"`
	Synced          bool   `json:"synced"`
	DryRun          bool   `json:"dry_run,omitempty"`
	ExternalEventID string `json:"external_event_id,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
	URL             string `json:"url,omitempty"`
	Error           string `json:"error,omitempty"`
	Err             error  `json:"-"`
}

func failed(err error) Result {
	return Result{Attempted: true, Err: err, Error: err.Error()}
}

// Summary counts the outcome of a SyncPending pass.
type Summary struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

type Options struct {
	DryRun      bool
	Timeout     time.Duration
	Concurrency int
}

// Syncer creates external calendar events for confirmed events.
type Syncer struct {
	logger      *slog.Logger
	store       store.Store
	gateway     calendar.Gateway
	dryRun      bool
	timeout     time.Duration
	concurrency int
}

func NewSyncer(logger *slog.Logger, st store.Store, gw calendar.Gateway, opts Options) *Syncer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Syncer{
		logger:      logutil.NoopIfNil(logger),
		store:       st,
		gateway:     gw,
		dryRun:      opts.DryRun,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
	}
}

// Sync creates the external event for a confirmed event once. An event
// that already carries an external id is reported as synced without
// calling the gateway.
func (s *Syncer) Sync(ctx context.Context, eventID string) Result {
	confirmed, err := s.store.GetConfirmedEvent(ctx, eventID)
	if err != nil {
		return failed(fmt.Errorf("load confirmation: %w", err))
	}
	if confirmed.Synced() {
		s.logger.Debug("Event already synced, skipping.", "event_id", eventID, "external_id", confirmed.ExternalEventID)
		return Result{
			Attempted:       true,
			Synced:          true,
			ExternalEventID: confirmed.ExternalEventID,
			CalendarID:      confirmed.CalendarID,
			URL:             confirmed.ExternalURL,
		}
	}

	creator, req, err := s.buildRequest(ctx, confirmed)
	if err != nil {
		return failed(err)
	}

	if s.dryRun {
		s.logger.Info("[DRY RUN] Would create calendar event", "event_id", eventID, "title", req.Title, "start", req.Start, "attendees", len(req.AttendeeEmails))
		return Result{Attempted: true, DryRun: true}
	}

	s.logger.Info("Creating calendar event.", "event_id", eventID, "title", req.Title)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.gateway.CreateExternalEvent(callCtx, creator, req)
	if err != nil {
		s.logger.Error("Failed to create calendar event", "event_id", eventID, "error", err)
		return failed(fmt.Errorf("%w: %w", models.ErrExternalService, err))
	}

	res := Result{
		Attempted:       true,
		Synced:          true,
		ExternalEventID: created.ExternalEventID,
		CalendarID:      created.CalendarID,
		URL:             created.URL,
	}
	if err := s.store.RecordExternalEvent(ctx, eventID, created.ExternalEventID, created.CalendarID, created.URL); err != nil {
		s.logger.Error("Failed to record external event", "event_id", eventID, "external_id", created.ExternalEventID, "error", err)
		res.Err = fmt.Errorf("record external event: %w", err)
		res.Error = res.Err.Error()
	}
	return res
}

func (s *Syncer) buildRequest(ctx context.Context, confirmed *models.ConfirmedEvent) (*models.User, calendar.EventRequest, error) {
	event, err := s.store.GetEvent(ctx, confirmed.EventID)
	if err != nil {
		return nil, calendar.EventRequest{}, fmt.Errorf("load event: %w", err)
	}
	slot, err := s.store.GetTimeSlot(ctx, confirmed.TimeSlotID)
	if err != nil {
		return nil, calendar.EventRequest{}, fmt.Errorf("load time slot: %w", err)
	}
	creator, err := s.store.GetUser(ctx, event.CreatedBy)
	if err != nil {
		return nil, calendar.EventRequest{}, fmt.Errorf("load organizer: %w", err)
	}
	if !creator.HasCalendar() {
		return nil, calendar.EventRequest{}, fmt.Errorf("%w: %w", models.ErrExternalService, calendar.ErrNoCredential)
	}
	participants, err := s.store.ListParticipants(ctx, event.ID)
	if err != nil {
		return nil, calendar.EventRequest{}, fmt.Errorf("load participants: %w", err)
	}

	var attendees []string
	for _, p := range participants {
		if p.Status == models.ParticipantStatusDeclined {
			continue
		}
		attendees = append(attendees, p.Email)
	}

	return creator, calendar.EventRequest{
		// Stable across retries of the same confirmation.
		UID:            confirmed.ID,
		Title:          event.Title,
		Description:    event.Description,
		Start:          slot.StartTime.UTC(),
		End:            slot.EndTime.UTC(),
		AttendeeEmails: attendees,
		Location:       confirmed.Location,
		OrganizerEmail: creator.Email,
	}, nil
}

// SyncPending retries every confirmation that asked for invites but has
// no external event yet. One failure does not stop the others.
func (s *Syncer) SyncPending(ctx context.Context) (Summary, error) {
	s.logger.Info("Starting sync cycle.")

	pending, err := s.store.ListPendingSync(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list pending confirmations: %w", err)
	}

	results := make([]Result, len(pending))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range pending {
		g.Go(func() error {
			results[i] = s.Sync(ctx, c.EventID)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Pending: len(pending)}
	for i, res := range results {
		switch {
		case res.Err != nil && !res.Synced:
			summary.Failed++
			s.logger.Warn("Failed to sync event", "event_id", pending[i].EventID, "error", res.Err)
		case res.Synced:
			summary.Synced++
		}
	}

	s.logger.Info("Sync cycle finished.", "pending", summary.Pending, "synced", summary.Synced, "failed", summary.Failed)
	return summary, nil
}
