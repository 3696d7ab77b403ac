package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meetsync/internal/calendar"
	"meetsync/internal/calendar/calendartest"
	"meetsync/internal/models"
	"meetsync/internal/store"
)

type fixture struct {
	store     *store.SQLite
	organizer *models.User
	event     *models.Event
	slot      *models.TimeSlot
}

func newFixture(t *testing.T, organizerRef string) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "sync.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	organizer := &models.User{IdentityKey: "k:owner", Email: "owner@x.com", Name: "Owner", CalendarRef: organizerRef}
	a := &models.User{IdentityKey: "k:a", Email: "a@x.com", Name: "A"}
	b := &models.User{IdentityKey: "k:b", Email: "b@x.com", Name: "B"}
	for _, u := range []*models.User{organizer, a, b} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	event := &models.Event{Title: "Kickoff", Description: "First sync", CreatedBy: organizer.ID, Status: models.EventStatusConfirmed}
	require.NoError(t, st.CreateEvent(ctx, event))
	require.NoError(t, st.AddParticipant(ctx, &models.EventParticipant{EventID: event.ID, UserID: a.ID, Status: models.ParticipantStatusResponded}))
	require.NoError(t, st.AddParticipant(ctx, &models.EventParticipant{EventID: event.ID, UserID: b.ID, Status: models.ParticipantStatusDeclined}))

	start := time.Date(2025, 9, 1, 14, 0, 0, 0, time.UTC)
	slot := &models.TimeSlot{EventID: event.ID, StartTime: start, EndTime: start.Add(time.Hour), CreatedBy: organizer.ID}
	require.NoError(t, st.CreateTimeSlots(ctx, []*models.TimeSlot{slot}))
	require.NoError(t, st.CreateConfirmedEvent(ctx, &models.ConfirmedEvent{
		EventID: event.ID, TimeSlotID: slot.ID, Location: "Room 1", SyncRequested: true,
	}))

	return &fixture{store: st, organizer: organizer, event: event, slot: slot}
}

func TestSyncer_Sync_CreatesAndRecords(t *testing.T) {
	f := newFixture(t, "google:work")
	gw := &calendartest.MockGateway{}
	gw.On("CreateExternalEvent", mock.Anything, mock.MatchedBy(func(u *models.User) bool { return u.ID == f.organizer.ID }),
		mock.MatchedBy(func(req calendar.EventRequest) bool {
			return req.Title == "Kickoff" &&
				req.Location == "Room 1" &&
				req.Start.Equal(f.slot.StartTime) &&
				assert.ObjectsAreEqual([]string{"a@x.com"}, req.AttendeeEmails)
		})).
		Return(&calendar.CreatedEvent{ExternalEventID: "ext-1", CalendarID: "primary", URL: "https://cal/ext-1"}, nil).Once()

	s := NewSyncer(nil, f.store, gw, Options{})
	res := s.Sync(context.Background(), f.event.ID)
	require.NoError(t, res.Err)
	assert.True(t, res.Synced)
	assert.Equal(t, "ext-1", res.ExternalEventID)

	// Already synced: no second gateway call.
	res = s.Sync(context.Background(), f.event.ID)
	assert.True(t, res.Synced)
	gw.AssertExpectations(t)

	confirmed, err := f.store.GetConfirmedEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cal/ext-1", confirmed.ExternalURL)
}

func TestSyncer_Sync_GatewayFailure(t *testing.T) {
	f := newFixture(t, "google:work")
	gw := &calendartest.MockGateway{}
	gw.On("CreateExternalEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	res := NewSyncer(nil, f.store, gw, Options{}).Sync(context.Background(), f.event.ID)
	assert.True(t, res.Attempted)
	assert.False(t, res.Synced)
	assert.ErrorIs(t, res.Err, models.ErrExternalService)
	assert.NotEmpty(t, res.Error)

	pending, err := f.store.ListPendingSync(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSyncer_Sync_OrganizerWithoutCalendar(t *testing.T) {
	f := newFixture(t, "")
	gw := &calendartest.MockGateway{}

	res := NewSyncer(nil, f.store, gw, Options{}).Sync(context.Background(), f.event.ID)
	assert.ErrorIs(t, res.Err, calendar.ErrNoCredential)
	assert.ErrorIs(t, res.Err, models.ErrExternalService)
	gw.AssertNotCalled(t, "CreateExternalEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncer_DryRun(t *testing.T) {
	f := newFixture(t, "google:work")
	gw := &calendartest.MockGateway{}

	res := NewSyncer(nil, f.store, gw, Options{DryRun: true}).Sync(context.Background(), f.event.ID)
	assert.True(t, res.DryRun)
	assert.NoError(t, res.Err)
	gw.AssertNotCalled(t, "CreateExternalEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncer_SyncPending(t *testing.T) {
	f := newFixture(t, "google:work")
	gw := &calendartest.MockGateway{}
	gw.On("CreateExternalEvent", mock.Anything, mock.Anything, mock.Anything).
		Return(&calendar.CreatedEvent{ExternalEventID: "ext-9", CalendarID: "primary"}, nil).Once()

	s := NewSyncer(nil, f.store, gw, Options{Concurrency: 2})
	summary, err := s.SyncPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Pending: 1, Synced: 1}, summary)

	summary, err = s.SyncPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	gw.AssertExpectations(t)
}
