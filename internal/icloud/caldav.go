package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"meetsync/internal/calendar"
	"meetsync/internal/logutil"
	"meetsync/internal/models"
)

const (
	DefaultEndpoint = "https://caldav.icloud.com/"
	productID       = "-//meetsync//EN"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "meetsync/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient is a calendar.Gateway for one CalDAV account (iCloud by
// default). Only users whose reference is "icloud:<username>" are served.
type CalDAVClient struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
	username     string
}

// NewClient connects to endpoint and resolves the calendar named calendarName.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string) (*CalDAVClient, error) {
	logger = logutil.NoopIfNil(logger)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &CalDAVClient{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
		username:     username,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return c, nil
}

func (c *CalDAVClient) authorize(user *models.User) error {
	_, account, err := calendar.ParseRef(user.CalendarRef)
	if err != nil {
		return err
	}
	if !strings.EqualFold(account, c.username) {
		return fmt.Errorf("%w: CalDAV account %s is not configured", calendar.ErrNoCredential, account)
	}
	return nil
}

// ListBusyIntervals runs a time-range calendar-query and returns the opaque
// timed events intersecting [start, end).
func (c *CalDAVClient) ListBusyIntervals(ctx context.Context, user *models.User, start, end time.Time) ([]calendar.BusyInterval, error) {
	if err := c.authorize(user); err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name: ical.CompEvent,
				Props: []string{
					ical.PropUID, ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd,
					ical.PropDuration, ical.PropTransparency, ical.PropStatus,
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var out []calendar.BusyInterval
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		out = append(out, busyIntervals(obj.Data)...)
	}
	out = calendar.Overlapping(out, start, end)

	c.logger.Debug("Fetched busy intervals from CalDAV", "account", c.username, "count", len(out))
	return out, nil
}

// busyIntervals extracts the time-blocking VEVENTs of a calendar object.
func busyIntervals(cal *ical.Calendar) []calendar.BusyInterval {
	var out []calendar.BusyInterval
	for _, ev := range cal.Events() {
		if transp, err := ev.Props.Text(ical.PropTransparency); err == nil && strings.EqualFold(transp, "TRANSPARENT") {
			continue
		}
		if status, err := ev.Props.Text(ical.PropStatus); err == nil && strings.EqualFold(status, "CANCELLED") {
			continue
		}
		// All-day
		if p := ev.Props.Get(ical.PropDateTimeStart); p == nil || p.ValueType() == ical.ValueDate {
			continue
		}

		start, err := ev.DateTimeStart(time.UTC)
		if err != nil {
			continue
		}
		end, err := ev.DateTimeEnd(time.UTC)
		if err != nil || !end.After(start) {
			continue
		}

		uid, _ := ev.Props.Text(ical.PropUID)
		summary, _ := ev.Props.Text(ical.PropSummary)
		out = append(out, calendar.BusyInterval{
			Start:      start.UTC(),
			End:        end.UTC(),
			Summary:    summary,
			ExternalID: uid,
		})
	}
	return out
}

// CreateExternalEvent PUTs a new VEVENT into the configured calendar.
func (c *CalDAVClient) CreateExternalEvent(ctx context.Context, user *models.User, req calendar.EventRequest) (*calendar.CreatedEvent, error) {
	if err := c.authorize(user); err != nil {
		return nil, err
	}
	if req.UID == "" {
		req.UID = GenerateUID()
	}
	c.logger.Debug("Creating CalDAV event", "title", req.Title, "uid", req.UID)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, toICal(req, time.Now().UTC()))

	eventPath := path.Join(c.calendarPath, fmt.Sprintf("%s.ics", req.UID))

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Created CalDAV event", "title", req.Title, "uid", req.UID)
	return &calendar.CreatedEvent{
		ExternalEventID: req.UID,
		CalendarID:      c.calendarPath,
		URL:             strings.TrimSuffix(c.endpoint, "/") + eventPath,
	}, nil
}

// toICal converts an event request to a VEVENT.
func toICal(req calendar.EventRequest, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, req.UID)
	ve.Props.SetText(ical.PropSummary, req.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, req.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, req.End.UTC())

	if req.Description != "" {
		ve.Props.SetText(ical.PropDescription, req.Description)
	}
	if req.Location != "" {
		ve.Props.SetText(ical.PropLocation, req.Location)
	}
	if req.OrganizerEmail != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText(fmt.Sprintf("mailto:%s", req.OrganizerEmail))
		ve.Props.Add(p)
	}
	for _, attendee := range req.AttendeeEmails {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", attendee))
		p.Params.Set("RSVP", "TRUE")
		ve.Props.Add(p)
	}
	return ve
}

// findCalendar discovers the user's calendars and returns the path of the
// one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}

var _ calendar.Gateway = (*CalDAVClient)(nil)
