package api

import (
	echo "github.com/labstack/echo/v5"
)

// Every response carries exactly one of the two envelopes.

// DataResponse wraps a successful payload.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse wraps a failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the machine-readable error detail.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ok writes a success envelope.
func ok(c *echo.Context, status int, data any) error {
	return c.JSON(status, &DataResponse{Data: data})
}

// WebhookAck is returned for every accepted provider delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}

// EndCallResponse acknowledges a hangup request. The call row itself is
// updated by the provider's ended webhook, not by this response.
type EndCallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// HealthResponse reports overall service health plus per-dependency detail.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Checks  map[string]any `json:"checks,omitempty"`
}
