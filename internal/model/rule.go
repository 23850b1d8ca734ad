package model

import (
	"fmt"
	"time"
)

// Operator is a condition comparison operator.
type Operator string

// Supported condition operators.
const (
	OperatorEquals      Operator = "equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// KnownOperator reports whether the operator is one the evaluator implements.
func KnownOperator(op Operator) bool {
	switch op {
	case OperatorEquals, OperatorContains, OperatorGreaterThan, OperatorLessThan:
		return true
	}
	return false
}

// Condition is a single field/operator/value predicate within a rule.
// Field is dot-addressable (e.g. "metadata.cpuUsage"). LogicalOperator is
// carried for authoring compatibility but matching is strict AND across
// the whole condition list.
type Condition struct {
	Field           string `json:"field"`
	Operator        Operator `json:"operator"`
	Value           any    `json:"value"`
	LogicalOperator string `json:"logical_operator,omitempty"`
}

// ActionType identifies the effect a matched rule executes.
type ActionType string

// Supported action types.
const (
	ActionCreateAlert      ActionType = "create_alert"
	ActionSendNotification ActionType = "send_notification"
)

// Action is a typed effect executed when a rule matches.
type Action struct {
	Type ActionType `json:"type"`

	// create_alert fields
	Severity             Severity `json:"severity,omitempty"`
	Team                 string   `json:"team,omitempty"`
	EscalateAfterSeconds int      `json:"escalate_after_seconds,omitempty"`
	EscalationPolicy     string   `json:"escalation_policy,omitempty"`

	// send_notification fields
	Channels   []string `json:"channels,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// RuleStatistics holds rolling per-rule performance counters. Counters are
// monotonically non-decreasing; the averages and rates are recomputed on
// each update.
type RuleStatistics struct {
	EvaluationCount        int64   `json:"evaluation_count"`
	TimesTriggered         int64   `json:"times_triggered"`
	AlertsCreated          int64   `json:"alerts_created"`
	AverageExecutionTimeMs float64 `json:"average_execution_time_ms"`
	SuccessRate            float64 `json:"success_rate"`
	FalsePositiveRate      float64 `json:"false_positive_rate"`
	PerformanceImpactScore float64 `json:"performance_impact_score"`
}

// Rule is a named, versioned matching specification. Priority governs
// evaluation order (lower value evaluates first), not short-circuit:
// every active rule is checked against every event.
type Rule struct {
	ID          string         `json:"rule_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Active      bool           `json:"active"`
	Conditions  []Condition    `json:"conditions"`
	Actions     []Action       `json:"actions"`
	Priority    int            `json:"priority"`
	Tags        []string       `json:"tags,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	UpdatedBy   string         `json:"updated_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Statistics  RuleStatistics `json:"statistics"`
}

// Validate checks a rule definition at authoring-consumption time.
// Unknown operators are rejected here; at evaluation time they degrade
// to a non-match instead of erroring.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule id cannot be empty", ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: rule %s: name cannot be empty", ErrValidation, r.ID)
	}
	for i, c := range r.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: rule %s: condition %d: field cannot be empty", ErrValidation, r.ID, i)
		}
		if !KnownOperator(c.Operator) {
			return fmt.Errorf("%w: rule %s: condition %d: unknown operator %q", ErrValidation, r.ID, i, c.Operator)
		}
	}
	for i, a := range r.Actions {
		switch a.Type {
		case ActionCreateAlert:
			// Severity override and team are optional; escalate-after
			// must not be negative.
			if a.EscalateAfterSeconds < 0 {
				return fmt.Errorf("%w: rule %s: action %d: escalate_after_seconds cannot be negative", ErrValidation, r.ID, i)
			}
		case ActionSendNotification:
			if len(a.Channels) == 0 {
				return fmt.Errorf("%w: rule %s: action %d: send_notification requires at least one channel", ErrValidation, r.ID, i)
			}
		default:
			return fmt.Errorf("%w: rule %s: action %d: unknown action type %q", ErrValidation, r.ID, i, a.Type)
		}
	}
	return nil
}

// EngineOutcome records the result of evaluating one rule against one event.
type EngineOutcome struct {
	EventID         string   `json:"event_id"`
	RuleID          string   `json:"rule_id"`
	Matched         bool     `json:"matched"`
	ExecutedActions []string `json:"executed_actions,omitempty"`
	CreatedAlertID  string   `json:"created_alert_id,omitempty"`
	VariantRuleID   string   `json:"variant_rule_id,omitempty"`
	Warning         string   `json:"warning,omitempty"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
}
