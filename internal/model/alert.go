package model

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

// Alert lifecycle states. Transitions: active -> acknowledged -> resolved,
// plus the direct active -> resolved path. Resolved is terminal.
const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is a stateful incident record. Alerts are created exclusively by
// the rule engine's create_alert action or by an explicit promotion, never
// directly by raw event ingestion.
type Alert struct {
	ID             string            `json:"alert_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Severity       Severity          `json:"severity"`
	Status         AlertStatus       `json:"status"`
	Source         string            `json:"source,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	AssignedTeam   string            `json:"assigned_team,omitempty"`
	AssignedUser   string            `json:"assigned_user,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy     string            `json:"resolved_by,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RelatedEvents  []string          `json:"related_events,omitempty"`
	TriggeredByRule string           `json:"triggered_by_rule,omitempty"`
}

// LinkageType classifies how an alert is connected to a rule.
type LinkageType string

// Linkage types.
const (
	LinkageTriggeredBy LinkageType = "triggered_by"
	LinkagePromoted    LinkageType = "promoted"
)

// AlertRuleLinkage is an append-only provenance edge connecting an alert
// to the rule and event that produced it. One linkage per (alert, rule,
// event) triggering instance; never mutated.
type AlertRuleLinkage struct {
	AlertID    string      `json:"alert_id"`
	RuleID     string      `json:"rule_id"`
	EventID    string      `json:"event_id"`
	Type       LinkageType `json:"linkage_type"`
	Confidence float64     `json:"confidence"`
	Context    string      `json:"context,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
