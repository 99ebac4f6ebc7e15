package integrations

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const defaultSchedBaseURL = "https://api.sched-vendor.example.com"

// SchedClient speaks to the scheduling vendor (booking links and slots).
// Auth is a static per-tenant API key. Config keys: "api_key",
// "event_type".
type SchedClient struct {
	http *httpClient
}

// NewSched builds a scheduling-vendor client against the given base URL.
func NewSched(baseURL string, hc *http.Client) *SchedClient {
	if baseURL == "" {
		baseURL = defaultSchedBaseURL
	}
	return &SchedClient{http: newHTTPClient(models.IntegrationSched, baseURL, hc)}
}

func (c *SchedClient) auth(cfg *models.IntegrationConfig) (func(*http.Request), error) {
	key := cfg.ConfigString("api_key")
	if key == "" {
		return nil, &Error{Integration: models.IntegrationSched, Op: "auth", Message: "integration has no api key"}
	}
	return bearerAuth(key), nil
}

// Slot is one bookable interval.
type Slot struct {
	StartAt time.Time `json:"start"`
	EndAt   time.Time `json:"end"`
}

// Availability lists open slots for the tenant's event type in a span.
func (c *SchedClient) Availability(ctx context.Context, cfg *models.IntegrationConfig, from, to time.Time) ([]Slot, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("event_type", cfg.ConfigString("event_type"))
	q.Set("start", from.UTC().Format(time.RFC3339))
	q.Set("end", to.UTC().Format(time.RFC3339))
	var out struct {
		Slots []Slot `json:"slots"`
	}
	if err := c.http.do(ctx, "availability", http.MethodGet, "/availability?"+q.Encode(), auth, nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// CreateBookingLink mints a single-use scheduling link the agent can text
// or email to the lead.
func (c *SchedClient) CreateBookingLink(ctx context.Context, cfg *models.IntegrationConfig, maxUses int) (string, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return "", err
	}
	if maxUses <= 0 {
		maxUses = 1
	}
	payload := map[string]any{
		"event_type": cfg.ConfigString("event_type"),
		"max_uses":   maxUses,
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.http.do(ctx, "create_booking_link", http.MethodPost, "/booking-links", auth, payload, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &Error{Integration: models.IntegrationSched, Op: "create_booking_link", Message: "response missing link url"}
	}
	return out.URL, nil
}

// Booking books a lead directly into a slot.
type Booking struct {
	InviteeName  string    `json:"invitee_name"`
	InviteePhone string    `json:"invitee_phone"`
	StartAt      time.Time `json:"start"`
}

// CreateBooking books a slot and returns the vendor's booking id.
func (c *SchedClient) CreateBooking(ctx context.Context, cfg *models.IntegrationConfig, b Booking) (string, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return "", err
	}
	payload := struct {
		EventType string `json:"event_type"`
		Booking
	}{cfg.ConfigString("event_type"), b}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.http.do(ctx, "create_booking", http.MethodPost, "/bookings", auth, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationSched, Op: "create_booking", Message: "response missing booking id"}
	}
	return out.ID, nil
}

// CancelBooking cancels an existing booking.
func (c *SchedClient) CancelBooking(ctx context.Context, cfg *models.IntegrationConfig, bookingID, reason string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"reason": reason}
	return c.http.do(ctx, "cancel_booking", http.MethodPost, "/bookings/"+url.PathEscape(bookingID)+"/cancel", auth, payload, nil)
}
