package models

import (
	"time"

	"github.com/paradyne-ai/callcore/pkg/timezone"
)

// Tenant is the top-level account. It owns every other entity and carries
// the provider API keys, the default calling window, and integration
// configuration.
type Tenant struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	PartnerAPIKey   *string   `db:"partner_api_key" json:"-"`
	ProviderAKey    *string   `db:"provider_a_key" json:"-"`
	ProviderBKey    *string   `db:"provider_b_key" json:"-"`
	ProviderCKey    *string   `db:"provider_c_key" json:"-"`
	WindowEnabled   bool      `db:"window_enabled" json:"window_enabled"`
	WindowStartHour int       `db:"window_start_hour" json:"window_start_hour"`
	WindowEndHour   int       `db:"window_end_hour" json:"window_end_hour"`
	WindowDays      IntList   `db:"window_days" json:"window_days"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CallingWindow returns the tenant's window policy for evaluation.
func (t *Tenant) CallingWindow() timezone.Window {
	return timezone.Window{
		Enabled:   t.WindowEnabled,
		StartHour: t.WindowStartHour,
		EndHour:   t.WindowEndHour,
		Days:      t.WindowDays,
	}
}

// ProviderKey returns the tenant-level API key for the provider, or nil
// when the slot is empty.
func (t *Tenant) ProviderKey(p Provider) *string {
	switch p {
	case ProviderA:
		return t.ProviderAKey
	case ProviderB:
		return t.ProviderBKey
	case ProviderC:
		return t.ProviderCKey
	}
	return nil
}

// SubTenant is a tenant's customer. Provider key slots override the
// tenant's keys when set.
type SubTenant struct {
	ID                 string      `db:"id" json:"id"`
	TenantID           string      `db:"tenant_id" json:"tenant_id"`
	Name               string      `db:"name" json:"name"`
	ProviderAKey       *string     `db:"provider_a_key" json:"-"`
	ProviderBKey       *string     `db:"provider_b_key" json:"-"`
	ProviderCKey       *string     `db:"provider_c_key" json:"-"`
	BillingType        BillingType `db:"billing_type" json:"billing_type"`
	PerMinuteRateCents int         `db:"per_minute_rate_cents" json:"per_minute_rate_cents"`
	AIAnalysisEnabled  bool        `db:"ai_analysis_enabled" json:"ai_analysis_enabled"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// ProviderKey returns the sub-tenant override key for the provider, or nil.
func (s *SubTenant) ProviderKey(p Provider) *string {
	switch p {
	case ProviderA:
		return s.ProviderAKey
	case ProviderB:
		return s.ProviderBKey
	case ProviderC:
		return s.ProviderCKey
	}
	return nil
}

// Agent is a voice-agent definition pinned to one provider. Config is
// opaque to the engine; the provider identifies the agent by ExternalID.
type Agent struct {
	ID            string    `db:"id" json:"id"`
	TenantID      string    `db:"tenant_id" json:"tenant_id"`
	SubTenantID   *string   `db:"sub_tenant_id" json:"sub_tenant_id,omitempty"`
	Name          string    `db:"name" json:"name"`
	Provider      Provider  `db:"provider" json:"provider"`
	ExternalID    string    `db:"external_id" json:"external_id"`
	Config        JSONMap   `db:"config" json:"config"`
	WidgetEnabled bool      `db:"widget_enabled" json:"widget_enabled"`
	WidgetConfig  JSONMap   `db:"widget_config" json:"widget_config"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PhoneNumber is a tenant-owned number bound to a provider. Inbound and
// outbound agents are tracked separately.
type PhoneNumber struct {
	ID              string    `db:"id" json:"id"`
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	SubTenantID     *string   `db:"sub_tenant_id" json:"sub_tenant_id,omitempty"`
	E164            string    `db:"e164" json:"e164"`
	Provider        Provider  `db:"provider" json:"provider"`
	ExternalID      *string   `db:"external_id" json:"external_id,omitempty"`
	InboundAgentID  *string   `db:"inbound_agent_id" json:"inbound_agent_id,omitempty"`
	OutboundAgentID *string   `db:"outbound_agent_id" json:"outbound_agent_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// IntegrationConfig is one tenant integration slot (CRM A, CRM B,
// calendar, scheduling vendor, chat webhook). Config holds vendor-specific
// settings: account ids, tokens, webhook secrets, default agent.
type IntegrationConfig struct {
	ID          string      `db:"id" json:"id"`
	TenantID    string      `db:"tenant_id" json:"tenant_id"`
	Integration Integration `db:"integration" json:"integration"`
	Enabled     bool        `db:"enabled" json:"enabled"`
	Config      JSONMap     `db:"config" json:"config"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// ConfigString returns a string value from the integration config blob.
func (c *IntegrationConfig) ConfigString(key string) string {
	if c == nil || c.Config == nil {
		return ""
	}
	s, _ := c.Config[key].(string)
	return s
}
