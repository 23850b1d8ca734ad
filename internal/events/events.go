// Package events defines the wire structures for the events.ingest,
// alerts.created, engine.outcomes, and rule.changed topics.
package events

import (
	"time"

	"alertcore/internal/model"
)

// SchemaVersion is the current wire schema version stamped on outgoing
// messages and their headers.
const SchemaVersion = 1

// EventIngest is an incoming observation from the events.ingest topic.
type EventIngest struct {
	EventID       string         `json:"event_id"`
	SchemaVersion int            `json:"schema_version"`
	EventTS       int64          `json:"event_ts"`
	Type          string         `json:"type"`
	Source        string         `json:"source"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OriginRuleID  string         `json:"origin_rule_id,omitempty"`
	Severity      string         `json:"severity"`
}

// ToModel converts the wire event into the engine's domain form.
func (e *EventIngest) ToModel() *model.Event {
	return &model.Event{
		ID:            e.EventID,
		Timestamp:     time.Unix(e.EventTS, 0).UTC(),
		Type:          model.EventType(e.Type),
		Source:        e.Source,
		Title:         e.Title,
		Summary:       e.Summary,
		Description:   e.Description,
		Metadata:      e.Metadata,
		Payload:       e.Payload,
		Tags:          e.Tags,
		CorrelationID: e.CorrelationID,
		OriginRuleID:  e.OriginRuleID,
		Severity:      model.Severity(e.Severity),
	}
}

// AlertCreated is published to alerts.created whenever the engine or a
// promotion creates an alert. One message per alert, keyed by alert_id.
type AlertCreated struct {
	AlertID       string   `json:"alert_id"`
	SchemaVersion int      `json:"schema_version"`
	CreatedTS     int64    `json:"created_ts"`
	Title         string   `json:"title"`
	Severity      string   `json:"severity"`
	Status        string   `json:"status"`
	Source        string   `json:"source,omitempty"`
	AssignedTeam  string   `json:"assigned_team,omitempty"`
	RuleID        string   `json:"rule_id,omitempty"`
	EventIDs      []string `json:"event_ids,omitempty"`
}

// NewAlertCreated builds the wire record for a freshly created alert.
func NewAlertCreated(a *model.Alert) *AlertCreated {
	ts := a.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &AlertCreated{
		AlertID:       a.ID,
		SchemaVersion: SchemaVersion,
		CreatedTS:     ts.Unix(),
		Title:         a.Title,
		Severity:      string(a.Severity),
		Status:        string(a.Status),
		Source:        a.Source,
		AssignedTeam:  a.AssignedTeam,
		RuleID:        a.TriggeredByRule,
		EventIDs:      a.RelatedEvents,
	}
}

// OutcomeRecord is published to engine.outcomes, one message per
// (event, rule) evaluation, keyed by event_id.
type OutcomeRecord struct {
	EventID         string   `json:"event_id"`
	RuleID          string   `json:"rule_id"`
	SchemaVersion   int      `json:"schema_version"`
	Matched         bool     `json:"matched"`
	ExecutedActions []string `json:"executed_actions,omitempty"`
	CreatedAlertID  string   `json:"created_alert_id,omitempty"`
	VariantRuleID   string   `json:"variant_rule_id,omitempty"`
	Warning         string   `json:"warning,omitempty"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
}

// NewOutcomeRecord builds the wire record for one evaluation outcome.
func NewOutcomeRecord(o model.EngineOutcome) *OutcomeRecord {
	return &OutcomeRecord{
		EventID:         o.EventID,
		RuleID:          o.RuleID,
		SchemaVersion:   SchemaVersion,
		Matched:         o.Matched,
		ExecutedActions: o.ExecutedActions,
		CreatedAlertID:  o.CreatedAlertID,
		VariantRuleID:   o.VariantRuleID,
		Warning:         o.Warning,
		ExecutionTimeMs: o.ExecutionTimeMs,
	}
}

// RuleChanged is a rule change notification from the rule.changed topic.
type RuleChanged struct {
	RuleID        string `json:"rule_id"`
	Action        string `json:"action"` // CREATED, UPDATED, DELETED, DISABLED, AB_TEST_STARTED, AB_TEST_STOPPED
	Actor         string `json:"actor,omitempty"`
	Version       int    `json:"version"`
	UpdatedAt     int64  `json:"updated_at"` // Unix timestamp
	SchemaVersion int    `json:"schema_version"`
}

// AuditAction maps the wire action onto the audit log's vocabulary.
// Unknown actions map to modified.
func (r *RuleChanged) AuditAction() model.AuditAction {
	switch r.Action {
	case "CREATED":
		return model.AuditCreated
	case "DELETED":
		return model.AuditDeleted
	case "DISABLED":
		return model.AuditDisabled
	case "AB_TEST_STARTED":
		return model.AuditABTestStarted
	case "AB_TEST_STOPPED":
		return model.AuditABTestStopped
	default:
		return model.AuditModified
	}
}
