package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"meetsync/internal/calendar"
	"meetsync/internal/logutil"
	"meetsync/internal/models"
)

const (
	credentialsFile = "credentials.json"
	redirectURL     = "urn:ietf:wg:oauth:2.0:oob"
)

// CalendarClient is a calendar.Gateway backed by the Google Calendar API.
// Each user's calendar reference names the token account to act as
// ("google:<account>").
type CalendarClient struct {
	config     *oauth2.Config
	tokens     *TokenStore
	calendarID string
	logger     *slog.Logger
	opts       []option.ClientOption
}

// NewClient creates a Google Calendar gateway. Extra client options are
// appended after the authenticated HTTP client (tests point the endpoint
// at a local server with them).
func NewClient(logger *slog.Logger, config *oauth2.Config, tokens *TokenStore, calendarID string, opts ...option.ClientOption) *CalendarClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarClient{
		config:     config,
		tokens:     tokens,
		calendarID: calendarID,
		logger:     logutil.NoopIfNil(logger),
		opts:       opts,
	}
}

// service builds a calendar service authenticated as the user's account.
func (c *CalendarClient) service(ctx context.Context, user *models.User) (*gcal.Service, string, error) {
	_, account, err := calendar.ParseRef(user.CalendarRef)
	if err != nil {
		return nil, "", err
	}

	token, err := c.tokens.Load(account)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: no token for account %s, run the 'auth' command first", calendar.ErrNoCredential, account)
		}
		return nil, "", fmt.Errorf("could not load token for account %s: %w", account, err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(c.config.Client(ctx, token))}, c.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, account, nil
}

// ListBusyIntervals returns the timed events on the configured calendar
// that intersect [start, end). All-day and transparent events do not block
// time and are skipped.
func (c *CalendarClient) ListBusyIntervals(ctx context.Context, user *models.User, start, end time.Time) ([]calendar.BusyInterval, error) {
	svc, account, err := c.service(ctx, user)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Fetching busy intervals", "account", account, "calendarID", c.calendarID, "start", start, "end", end)

	var out []calendar.BusyInterval
	err = svc.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				if b, ok := toBusyInterval(item); ok {
					out = append(out, b)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Debug("Fetched busy intervals from Google Calendar", "account", account, "count", len(out))
	return out, nil
}

func toBusyInterval(item *gcal.Event) (calendar.BusyInterval, bool) {
	if item.Start == nil || item.Start.DateTime == "" || item.End == nil || item.End.DateTime == "" {
		return calendar.BusyInterval{}, false
	}
	if item.Transparency == "transparent" || item.Status == "cancelled" {
		return calendar.BusyInterval{}, false
	}

	startTime, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return calendar.BusyInterval{}, false
	}
	endTime, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return calendar.BusyInterval{}, false
	}

	return calendar.BusyInterval{
		Start:      startTime.UTC(),
		End:        endTime.UTC(),
		Summary:    item.Summary,
		ExternalID: item.Id,
	}, true
}

// CreateExternalEvent inserts the event on the organizer's calendar and
// lets Google email the attendees.
func (c *CalendarClient) CreateExternalEvent(ctx context.Context, user *models.User, req calendar.EventRequest) (*calendar.CreatedEvent, error) {
	svc, account, err := c.service(ctx, user)
	if err != nil {
		return nil, err
	}

	event := toGoogleEvent(req)
	created, err := svc.Events.Insert(c.calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	c.logger.Info("Created Google Calendar event", "account", account, "eventID", created.Id, "title", req.Title)
	return &calendar.CreatedEvent{
		ExternalEventID: created.Id,
		CalendarID:      c.calendarID,
		URL:             created.HtmlLink,
	}, nil
}

func toGoogleEvent(req calendar.EventRequest) *gcal.Event {
	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       &gcal.EventDateTime{DateTime: req.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: req.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, email := range req.AttendeeEmails {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}
	return event
}

// DiscoverCalendars lists the calendar IDs visible to an authenticated account.
func (c *CalendarClient) DiscoverCalendars(ctx context.Context, account string) ([]string, error) {
	svc, _, err := c.service(ctx, &models.User{CalendarRef: "google:" + account})
	if err != nil {
		return nil, err
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendarIDs []string
	for _, item := range list.Items {
		calendarIDs = append(calendarIDs, item.Id)
	}
	return calendarIDs, nil
}

// OAuthConfig returns the OAuth2 config used for both the auth flow and
// API calls. Explicit client credentials win over a local credentials.json.
func OAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

var _ calendar.Gateway = (*CalendarClient)(nil)
