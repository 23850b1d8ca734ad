// Package condition implements the pure per-condition predicate the rule
// matcher is built on: (event, condition) -> bool over heterogeneous
// event shapes, with string/number coercion and a silent-failure policy
// for unknown operators.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"alertcore/internal/model"
)

// Evaluate resolves the condition's field against the event and applies
// the operator. A single malformed condition must never abort evaluation
// of the rest of the rule set, so unknown operators and non-numeric
// comparisons evaluate to false instead of erroring.
func Evaluate(e *model.Event, c model.Condition) bool {
	value, found := ResolveField(e, c.Field)

	switch c.Operator {
	case model.OperatorEquals:
		// A missing field only equals an explicit null comparison value.
		if !found {
			return c.Value == nil
		}
		if c.Value == nil {
			return value == nil
		}
		return stringify(value) == stringify(c.Value)
	case model.OperatorContains:
		if !found {
			return false
		}
		return strings.Contains(stringify(value), stringify(c.Value))
	case model.OperatorGreaterThan:
		left, right, ok := numericPair(value, c.Value, found)
		return ok && left > right
	case model.OperatorLessThan:
		left, right, ok := numericPair(value, c.Value, found)
		return ok && left < right
	default:
		return false
	}
}

// ResolveField looks the field path up in the event's metadata first
// (supporting dot-paths into nested maps), then falls back to a direct
// event attribute of the same name. The second return is false when the
// field resolves to nothing.
func ResolveField(e *model.Event, field string) (any, bool) {
	if rest, ok := strings.CutPrefix(field, "metadata."); ok {
		return lookupPath(e.Metadata, rest)
	}
	if rest, ok := strings.CutPrefix(field, "payload."); ok {
		return lookupPath(e.Payload, rest)
	}
	if v, ok := lookupPath(e.Metadata, field); ok {
		return v, true
	}
	return attribute(e, field)
}

// lookupPath walks a dot-separated path through nested maps.
func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = m
	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// attribute resolves a known top-level event attribute by name.
func attribute(e *model.Event, name string) (any, bool) {
	switch name {
	case "id", "event_id":
		return e.ID, true
	case "timestamp":
		return e.Timestamp, true
	case "type":
		return string(e.Type), true
	case "source":
		return e.Source, true
	case "title":
		return e.Title, true
	case "summary":
		return e.Summary, true
	case "description":
		return e.Description, true
	case "severity":
		return string(e.Severity), true
	case "correlationId", "correlation_id":
		return e.CorrelationID, true
	case "tags":
		return e.Tags, true
	}
	return nil, false
}

// stringify coerces a value to its string form for equals/contains
// comparisons, so 85 and "85" compare equal.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// numericPair coerces both sides to numbers. ok is false when the field
// is missing or either side is not numeric.
func numericPair(value, comparison any, found bool) (float64, float64, bool) {
	if !found {
		return 0, 0, false
	}
	left, ok := toFloat(value)
	if !ok {
		return 0, 0, false
	}
	right, ok := toFloat(comparison)
	if !ok {
		return 0, 0, false
	}
	return left, right, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
