package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meetsync/internal/calendar"
	"meetsync/internal/calendar/calendartest"
	"meetsync/internal/models"
)

func at(h, m int) time.Time {
	return time.Date(2025, 9, 1, h, m, 0, 0, time.UTC)
}

func TestBusyInterval_Overlaps(t *testing.T) {
	start, end := at(10, 0), at(11, 30)

	assert.False(t, calendar.BusyInterval{Start: at(11, 30), End: at(12, 0)}.Overlaps(start, end), "touching end")
	assert.False(t, calendar.BusyInterval{Start: at(9, 0), End: at(10, 0)}.Overlaps(start, end), "touching start")
	assert.True(t, calendar.BusyInterval{Start: at(11, 0), End: at(12, 0)}.Overlaps(start, end))
	assert.True(t, calendar.BusyInterval{Start: at(9, 0), End: at(13, 0)}.Overlaps(start, end), "containing")
	assert.True(t, calendar.BusyInterval{Start: at(10, 15), End: at(10, 45)}.Overlaps(start, end), "contained")
}

func TestOverlapping_NeverNil(t *testing.T) {
	got := calendar.Overlapping(nil, at(10, 0), at(11, 0))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseRef(t *testing.T) {
	provider, account, err := calendar.ParseRef("google:work")
	require.NoError(t, err)
	assert.Equal(t, "google", provider)
	assert.Equal(t, "work", account)

	for _, bad := range []string{"", "google", ":work", "google:"} {
		_, _, err := calendar.ParseRef(bad)
		assert.ErrorIs(t, err, calendar.ErrNoCredential, bad)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	ctx := context.Background()
	gw := &calendartest.MockGateway{}
	router := calendar.NewRouter()
	router.Register("google", gw)

	user := &models.User{ID: "u1", CalendarRef: "google:work"}
	busy := []calendar.BusyInterval{{Start: at(9, 0), End: at(10, 0)}}
	gw.On("ListBusyIntervals", mock.Anything, user, at(8, 0), at(12, 0)).Return(busy, nil)

	got, err := router.ListBusyIntervals(ctx, user, at(8, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, busy, got)
	gw.AssertExpectations(t)

	_, err = router.ListBusyIntervals(ctx, &models.User{ID: "u2"}, at(8, 0), at(12, 0))
	assert.ErrorIs(t, err, calendar.ErrNoCredential)

	_, err = router.CreateExternalEvent(ctx, &models.User{ID: "u3", CalendarRef: "outlook:me"}, calendar.EventRequest{})
	assert.ErrorIs(t, err, calendar.ErrNoCredential)
}
