package workflow

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

// Interpolate substitutes {{dotted.path}} placeholders with values from the
// call payload. Unresolvable placeholders become empty strings so a typo in
// one field does not fail the whole action.
func Interpolate(s string, payload map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := LookupPath(payload, path)
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

// InterpolateConfig deep-copies an action config, interpolating every string
// value it finds. The original config is never mutated; action configs are
// shared across executions of the same workflow row.
func InterpolateConfig(cfg map[string]any, payload map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = interpolateValue(v, payload)
	}
	return out
}

func interpolateValue(v any, payload map[string]any) any {
	switch t := v.(type) {
	case string:
		return Interpolate(t, payload)
	case map[string]any:
		return InterpolateConfig(t, payload)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = interpolateValue(item, payload)
		}
		return out
	default:
		return v
	}
}
