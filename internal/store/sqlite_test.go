package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "meetsync.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedEvent(t *testing.T, s *SQLite) (*models.User, *models.User, *models.Event, []*models.TimeSlot) {
	t.Helper()
	ctx := context.Background()

	owner := &models.User{IdentityKey: "google:owner", Email: "owner@x.com", Name: "Owner"}
	guest := &models.User{IdentityKey: "placeholder:guest@x.com", Email: "guest@x.com", Name: "guest", Placeholder: true}
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateUser(ctx, guest))

	event := &models.Event{Title: "Kickoff", DurationMinutes: 60, CreatedBy: owner.ID, Status: models.EventStatusDraft}
	require.NoError(t, s.CreateEvent(ctx, event))
	require.NoError(t, s.AddParticipant(ctx, &models.EventParticipant{
		EventID: event.ID, UserID: guest.ID, Status: models.ParticipantStatusInvited,
	}))

	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	slots := []*models.TimeSlot{
		{EventID: event.ID, StartTime: base, EndTime: base.Add(time.Hour), Position: 0, CreatedBy: owner.ID},
		{EventID: event.ID, StartTime: base.Add(4 * time.Hour), EndTime: base.Add(5 * time.Hour), Position: 1, CreatedBy: owner.ID},
	}
	require.NoError(t, s.CreateTimeSlots(ctx, slots))
	return owner, guest, event, slots
}

func TestSQLite_UserLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{IdentityKey: "google:1", Email: "a@x.com", Name: "A"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.GetUserByIdentityKey(ctx, "google:1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = s.CreateUser(ctx, &models.User{IdentityKey: "google:2", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	users, err := s.GetUsers(ctx, []string{u.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSQLite_TransitionEventStatus_CompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, event, _ := seedEvent(t, s)

	ok, err := s.TransitionEventStatus(ctx, event.ID, models.EventStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok, "draft cannot be cancelled")

	ok, err = s.TransitionEventStatus(ctx, event.ID, models.EventStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionEventStatus(ctx, event.ID, models.EventStatusConfirmed)
	require.NoError(t, err)
	assert.False(t, ok, "confirmed is terminal")

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusConfirmed, got.Status)
}

func TestSQLite_ReplaceResponses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, guest, event, slots := seedEvent(t, s)

	require.NoError(t, s.ReplaceResponses(ctx, event.ID, guest.ID, []*models.AvailabilityResponse{
		{TimeSlotID: slots[0].ID, UserID: guest.ID, Status: models.ResponseAvailable},
		{TimeSlotID: slots[1].ID, UserID: guest.ID, Status: models.ResponseMaybe},
	}))
	require.NoError(t, s.ReplaceResponses(ctx, event.ID, guest.ID, []*models.AvailabilityResponse{
		{TimeSlotID: slots[1].ID, UserID: guest.ID, Status: models.ResponseUnavailable},
	}))

	records, err := s.ListResponses(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, slots[1].ID, records[0].TimeSlotID)
	assert.Equal(t, models.ResponseUnavailable, records[0].Status)
	assert.Equal(t, "guest", records[0].UserName)
}

func TestSQLite_RunAtomic_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var eventID string
	err := s.RunAtomic(ctx, func(tx Store) error {
		e := &models.Event{Title: "Lost", CreatedBy: "nobody", Status: models.EventStatusDraft}
		if err := tx.CreateEvent(ctx, e); err != nil {
			return err
		}
		eventID = e.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetEvent(ctx, eventID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLite_ListEventsForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, guest, event, _ := seedEvent(t, s)

	for _, id := range []string{owner.ID, guest.ID} {
		events, err := s.ListEventsForUser(ctx, id, EventFilter{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.ID, events[0].ID)
		assert.Equal(t, "Owner", events[0].CreatorName)
	}

	events, err := s.ListEventsForUser(ctx, guest.ID, EventFilter{Status: models.EventStatusOpen})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLite_ParticipantsAndConfirmation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, guest, event, slots := seedEvent(t, s)

	ok, err := s.TransitionParticipantStatus(ctx, event.ID, guest.ID, models.ParticipantStatusResponded)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TransitionParticipantStatus(ctx, event.ID, guest.ID, models.ParticipantStatusDeclined)
	require.NoError(t, err)
	assert.False(t, ok)

	participants, err := s.ListParticipants(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "guest@x.com", participants[0].Email)
	assert.Equal(t, models.ParticipantStatusResponded, participants[0].Status)

	ordered, err := s.ListTimeSlots(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, slots[0].ID, ordered[0].ID)

	require.NoError(t, s.CreateConfirmedEvent(ctx, &models.ConfirmedEvent{
		EventID: event.ID, TimeSlotID: slots[0].ID, SyncRequested: true,
	}))
	err = s.CreateConfirmedEvent(ctx, &models.ConfirmedEvent{EventID: event.ID, TimeSlotID: slots[1].ID})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	pending, err := s.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.RecordExternalEvent(ctx, event.ID, "ext-1", "primary", "https://cal/ext-1"))
	pending, err = s.ListPendingSync(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	confirmed, err := s.GetConfirmedEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Synced())
	assert.Equal(t, "primary", confirmed.CalendarID)

	assert.ErrorIs(t, s.RecordExternalEvent(ctx, "missing", "x", "y", "z"), models.ErrNotFound)
}
