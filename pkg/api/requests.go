package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	echo "github.com/labstack/echo/v5"
)

var validate = newValidator()

// newValidator builds the request validator, reporting json field names so
// error messages match what the caller actually sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// TriggerPayload is the body shared by all trigger endpoints. CRM requests
// carry their account identifier on top of it.
type TriggerPayload struct {
	PhoneNumber string         `json:"phone_number" validate:"required"`
	AgentID     string         `json:"agent_id,omitempty"`
	SubTenantID string         `json:"sub_tenant_id,omitempty"`
	FromNumber  string         `json:"from_number,omitempty"`
	ContactID   string         `json:"contact_id,omitempty"`
	ContactName string         `json:"contact_name,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CRMATriggerRequest is the CRM A workflow webhook body.
type CRMATriggerRequest struct {
	LocationID string `json:"location_id" validate:"required"`
	TriggerPayload
}

// CRMBTriggerRequest is the CRM B workflow webhook body.
type CRMBTriggerRequest struct {
	PortalID string `json:"portal_id" validate:"required"`
	TriggerPayload
}

// APITriggerRequest is the partner API trigger body.
type APITriggerRequest struct {
	TriggerPayload
}

// BuilderRequest asks the AI builder for an agent draft.
type BuilderRequest struct {
	Description string `json:"description" validate:"required,min=10,max=4000"`
}

// bindAndValidate decodes a body that was already drained (trigger
// signatures are computed over the raw bytes) and applies the struct rules.
func bindAndValidate(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, fieldError(verrs[0]))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// fieldError renders one validator failure as a caller-facing message.
func fieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
