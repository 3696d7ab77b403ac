package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"meetsync/internal/calendar"
	"meetsync/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := NewTokenStore(t.TempDir())
	_, err := tokens.Save("work", &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	config, err := OAuthConfig("client-id", "client-secret")
	require.NoError(t, err)

	return NewClient(nil, config, tokens, "", option.WithEndpoint(srv.URL+"/"))
}

func TestCalendarClient_ListBusyIntervals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "2025-09-01T08:00:00Z", r.URL.Query().Get("timeMin"))

		_ = json.NewEncoder(w).Encode(gcal.Events{Items: []*gcal.Event{
			{Id: "busy", Summary: "Standup", Start: &gcal.EventDateTime{DateTime: "2025-09-01T11:00:00+02:00"}, End: &gcal.EventDateTime{DateTime: "2025-09-01T12:00:00+02:00"}},
			{Id: "allday", Start: &gcal.EventDateTime{Date: "2025-09-01"}, End: &gcal.EventDateTime{Date: "2025-09-02"}},
			{Id: "free", Transparency: "transparent", Start: &gcal.EventDateTime{DateTime: "2025-09-01T13:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2025-09-01T14:00:00Z"}},
		}})
	})
	client := newTestClient(t, mux)

	user := &models.User{ID: "u1", CalendarRef: "google:work"}
	got, err := client.ListBusyIntervals(context.Background(), user,
		time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC), time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "busy", got[0].ExternalID)
	assert.Equal(t, time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC), got[0].Start)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), got[0].End)
}

func TestCalendarClient_CreateExternalEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))

		var ev gcal.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "Kickoff", ev.Summary)
		assert.Equal(t, "Room 1", ev.Location)
		assert.Equal(t, "2025-09-01T14:00:00Z", ev.Start.DateTime)
		require.Len(t, ev.Attendees, 2)
		assert.Equal(t, "a@x.com", ev.Attendees[0].Email)

		_ = json.NewEncoder(w).Encode(gcal.Event{Id: "ext-1", HtmlLink: "https://calendar.google.com/event?eid=ext-1"})
	})
	client := newTestClient(t, mux)

	created, err := client.CreateExternalEvent(context.Background(), &models.User{CalendarRef: "google:work"}, calendar.EventRequest{
		Title:          "Kickoff",
		Start:          time.Date(2025, 9, 1, 14, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 9, 1, 15, 0, 0, 0, time.UTC),
		AttendeeEmails: []string{"a@x.com", "b@x.com"},
		Location:       "Room 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", created.ExternalEventID)
	assert.Equal(t, "primary", created.CalendarID)
	assert.Contains(t, created.URL, "ext-1")
}

func TestCalendarClient_MissingToken(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.ListBusyIntervals(context.Background(), &models.User{CalendarRef: "google:personal"}, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, calendar.ErrNoCredential)
}

func TestTokenStore_Accounts(t *testing.T) {
	tokens := NewTokenStore(t.TempDir())
	_, err := tokens.Save("work", &oauth2.Token{AccessToken: "a"})
	require.NoError(t, err)
	_, err = tokens.Save("personal", &oauth2.Token{AccessToken: "b"})
	require.NoError(t, err)

	accounts, err := tokens.Accounts()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"work", "personal"}, accounts)

	_, err = tokens.Save("../escape", &oauth2.Token{})
	assert.Error(t, err)
}
