package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const defaultCalendarBaseURL = "https://api.calendar-vendor.example.com"

// CalendarTokenURL is the calendar vendor's OAuth token endpoint.
const CalendarTokenURL = defaultCalendarBaseURL + "/oauth/token"

// CalendarClient speaks to the calendar vendor. Like CRM B it is an OAuth
// vendor with rotating refresh tokens. Config keys: "calendar_id" plus the
// token fields managed by the refresher.
type CalendarClient struct {
	http   *httpClient
	tokens *TokenRefresher
}

// NewCalendar builds a calendar client against the given base URL.
func NewCalendar(baseURL string, hc *http.Client, tokens *TokenRefresher) *CalendarClient {
	if baseURL == "" {
		baseURL = defaultCalendarBaseURL
	}
	return &CalendarClient{http: newHTTPClient(models.IntegrationCalendar, baseURL, hc), tokens: tokens}
}

func (c *CalendarClient) doAuthed(ctx context.Context, cfg *models.IntegrationConfig, op, method, path string, payload, out any) error {
	if c.tokens == nil {
		return &Error{Integration: models.IntegrationCalendar, Op: op, Message: "oauth refresher not configured"}
	}
	token, err := c.tokens.AccessToken(ctx, cfg)
	if err != nil {
		return err
	}
	err = c.http.do(ctx, op, method, path, bearerAuth(token), payload, out)
	var ie *Error
	if errors.As(err, &ie) && ie.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate(cfg.TenantID, cfg.Integration)
		ie.Transient = true
	}
	return err
}

// EventBooking describes a calendar event to create.
type EventBooking struct {
	Summary   string    `json:"summary"`
	StartAt   time.Time `json:"start"`
	EndAt     time.Time `json:"end"`
	Attendees []string  `json:"attendees,omitempty"`
	Notes     string    `json:"description,omitempty"`
}

// BookEvent creates an event on the tenant's configured calendar and
// returns the vendor's event id.
func (c *CalendarClient) BookEvent(ctx context.Context, cfg *models.IntegrationConfig, ev EventBooking) (string, error) {
	calendarID := cfg.ConfigString("calendar_id")
	if calendarID == "" {
		return "", &Error{Integration: models.IntegrationCalendar, Op: "book_event", Message: "integration has no calendar id"}
	}
	var out struct {
		ID string `json:"id"`
	}
	path := "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.doAuthed(ctx, cfg, "book_event", http.MethodPost, path, ev, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationCalendar, Op: "book_event", Message: "response missing event id"}
	}
	return out.ID, nil
}

// CancelEvent removes an event from the tenant's calendar.
func (c *CalendarClient) CancelEvent(ctx context.Context, cfg *models.IntegrationConfig, eventID string) error {
	calendarID := cfg.ConfigString("calendar_id")
	if calendarID == "" {
		return &Error{Integration: models.IntegrationCalendar, Op: "cancel_event", Message: "integration has no calendar id"}
	}
	path := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	return c.doAuthed(ctx, cfg, "cancel_event", http.MethodDelete, path, nil, nil)
}

// CheckAvailability reports whether the calendar is free for the whole
// span. Busy intervals from the vendor are checked for overlap.
func (c *CalendarClient) CheckAvailability(ctx context.Context, cfg *models.IntegrationConfig, from, to time.Time) (bool, error) {
	calendarID := cfg.ConfigString("calendar_id")
	if calendarID == "" {
		return false, &Error{Integration: models.IntegrationCalendar, Op: "check_availability", Message: "integration has no calendar id"}
	}
	payload := map[string]any{
		"timeMin":     from.UTC().Format(time.RFC3339),
		"timeMax":     to.UTC().Format(time.RFC3339),
		"calendarIds": []string{calendarID},
	}
	var out struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
	}
	if err := c.doAuthed(ctx, cfg, "check_availability", http.MethodPost, "/freebusy", payload, &out); err != nil {
		return false, err
	}
	for _, b := range out.Busy {
		if b.Start.Before(to) && b.End.After(from) {
			return false, nil
		}
	}
	return true, nil
}
