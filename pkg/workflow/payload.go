// Package workflow executes per-tenant post-call pipelines: condition
// gating, template interpolation, and an ordered action list dispatched to
// the integration clients with per-action retries and partial-failure
// accounting.
package workflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// BuildCallPayload assembles the enriched payload conditions and templates
// read from. Agent may be nil for calls that lost their agent.
func BuildCallPayload(call *models.Call, agent *models.Agent) map[string]any {
	callMap := map[string]any{
		"id":               call.ID,
		"provider":         string(call.Provider),
		"external_id":      call.ExternalID,
		"status":           string(call.Status),
		"direction":        string(call.Direction),
		"from_number":      strOrEmpty(call.FromNumber),
		"to_number":        strOrEmpty(call.ToNumber),
		"duration_seconds": call.DurationSeconds,
		"cost_cents":       call.CostCents,
		"ended_reason":     strOrEmpty(call.EndedReason),
		"voicemail":        call.Voicemail,
		"transcript":       strOrEmpty(call.Transcript),
		"summary":          strOrEmpty(call.Summary),
		"sentiment":        strOrEmpty(call.Sentiment),
		"topics":           []string(call.Topics),
	}
	if call.Score != nil {
		callMap["score"] = *call.Score
	}
	if call.StartedAt != nil {
		callMap["started_at"] = call.StartedAt.UTC().Format(time.RFC3339)
	}
	if call.EndedAt != nil {
		callMap["ended_at"] = call.EndedAt.UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"call":     callMap,
		"metadata": map[string]any(call.Metadata),
	}
	if agent != nil {
		payload["agent"] = map[string]any{
			"id":          agent.ID,
			"name":        agent.Name,
			"provider":    string(agent.Provider),
			"external_id": agent.ExternalID,
		}
	}
	return payload
}

// LookupPath resolves a dotted path in a nested payload. Numeric segments
// index into arrays. The second return is false when any segment is absent.
func LookupPath(payload map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = payload
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case models.JSONMap:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		case []string:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
