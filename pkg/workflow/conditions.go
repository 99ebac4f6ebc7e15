package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// EvaluateConditions reports whether every condition matches the payload.
// Conditions are AND-ed; an empty list always matches. A missing field
// fails its condition regardless of operator, so "!=" cannot be used as an
// existence check.
func EvaluateConditions(conds []models.Condition, payload map[string]any) bool {
	for _, c := range conds {
		if !evaluateCondition(c, payload) {
			return false
		}
	}
	return true
}

func evaluateCondition(c models.Condition, payload map[string]any) bool {
	actual, ok := LookupPath(payload, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpEq:
		return looselyEqual(actual, c.Value)
	case models.OpNeq:
		return !looselyEqual(actual, c.Value)
	case models.OpGt, models.OpLt, models.OpGte, models.OpLte:
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		if !okA || !okB {
			return false
		}
		switch c.Operator {
		case models.OpGt:
			return a > b
		case models.OpLt:
			return a < b
		case models.OpGte:
			return a >= b
		default:
			return a <= b
		}
	case models.OpContains, models.OpNotContains:
		found := contains(actual, c.Value)
		if c.Operator == models.OpContains {
			return found
		}
		return !found
	default:
		return false
	}
}

// looselyEqual compares across JSON's type blur: 5 == 5.0, and everything
// else falls back to string form.
func looselyEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return stringify(a) == stringify(b)
}

// contains matches substrings for strings and membership for arrays.
func contains(actual, needle any) bool {
	switch v := actual.(type) {
	case string:
		return strings.Contains(v, stringify(needle))
	case []any:
		for _, item := range v {
			if looselyEqual(item, needle) {
				return true
			}
		}
	case []string:
		want := stringify(needle)
		for _, item := range v {
			if item == want {
				return true
			}
		}
	case models.StringList:
		want := stringify(needle)
		for _, item := range v {
			if item == want {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}
