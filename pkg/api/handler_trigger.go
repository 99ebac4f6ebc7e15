package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const (
	headerCRMASignature = "x-crm-a-signature"
	headerCRMBSignature = "x-crm-b-signature"
	headerCRMBTimestamp = "x-crm-b-request-timestamp"
)

// Body caps. Webhooks carry full transcripts, so their cap is wider.
const (
	maxTriggerBody = 1 << 20
	maxWebhookBody = 4 << 20
)

// readBody drains the request body under a hard cap. The raw bytes feed
// signature verification and the trigger log, so handlers read before Bind.
func readBody(c *echo.Context, limit int64) ([]byte, error) {
	r := http.MaxBytesReader(c.Response(), c.Request().Body, limit)
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return body, nil
}

// triggerRequest maps a trigger body onto the service shape. The integration
// config's default agent applies when the payload names none.
func triggerRequest(source models.TriggerSource, tenantID string, icfg *models.IntegrationConfig, p *TriggerPayload, raw []byte) *models.TriggerRequest {
	req := &models.TriggerRequest{
		Source:      source,
		TenantID:    tenantID,
		SubTenantID: p.SubTenantID,
		AgentID:     p.AgentID,
		PhoneNumber: p.PhoneNumber,
		FromNumber:  p.FromNumber,
		ContactID:   p.ContactID,
		ContactName: p.ContactName,
		ScheduledAt: p.ScheduledAt,
		Metadata:    p.Metadata,
		RawPayload:  raw,
	}
	if icfg != nil {
		req.DefaultAgentID = icfg.ConfigString("default_agent_id")
	}
	return req
}

// crmATriggerHandler handles POST /trigger/crm-a. The CRM signs the raw body
// with the tenant's webhook secret; the tenant is resolved from the account
// id inside the payload, so resolution runs before verification.
func (s *Server) crmATriggerHandler(c *echo.Context) error {
	body, err := readBody(c, maxTriggerBody)
	if err != nil {
		return err
	}
	var req CRMATriggerRequest
	if err := bindAndValidate(body, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenant, icfg, err := s.triggers.ResolveCRMTenant(ctx, models.TriggerSourceCRMA, req.LocationID)
	if err != nil {
		return mapServiceError(err)
	}
	sig := c.Request().Header.Get(headerCRMASignature)
	if err := s.triggers.VerifyTriggerSignature(icfg, sig, "", body); err != nil {
		return mapServiceError(err)
	}

	result, err := s.triggers.Trigger(ctx, triggerRequest(models.TriggerSourceCRMA, tenant.ID, icfg, &req.TriggerPayload, body))
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, result)
}

// crmBTriggerHandler handles POST /trigger/crm-b. Same shape as CRM A but
// the signature covers a timestamped message, which bounds replay.
func (s *Server) crmBTriggerHandler(c *echo.Context) error {
	body, err := readBody(c, maxTriggerBody)
	if err != nil {
		return err
	}
	var req CRMBTriggerRequest
	if err := bindAndValidate(body, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenant, icfg, err := s.triggers.ResolveCRMTenant(ctx, models.TriggerSourceCRMB, req.PortalID)
	if err != nil {
		return mapServiceError(err)
	}
	sig := c.Request().Header.Get(headerCRMBSignature)
	ts := c.Request().Header.Get(headerCRMBTimestamp)
	if err := s.triggers.VerifyTriggerSignature(icfg, sig, ts, body); err != nil {
		return mapServiceError(err)
	}

	result, err := s.triggers.Trigger(ctx, triggerRequest(models.TriggerSourceCRMB, tenant.ID, icfg, &req.TriggerPayload, body))
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, result)
}

// apiTriggerHandler handles POST /trigger/api for partner-authenticated
// callers. partnerAuth has already resolved the tenant.
func (s *Server) apiTriggerHandler(c *echo.Context) error {
	body, err := readBody(c, maxTriggerBody)
	if err != nil {
		return err
	}
	var req APITriggerRequest
	if err := bindAndValidate(body, &req); err != nil {
		return err
	}

	tenant := tenantFrom(c)
	result, err := s.triggers.Trigger(c.Request().Context(), triggerRequest(models.TriggerSourceAPI, tenant.ID, nil, &req.TriggerPayload, body))
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, result)
}
