// Package engine orchestrates rule evaluation for incoming events:
// variant routing, condition matching, action execution, audit logging,
// statistics accounting, and fan-out of the results.
package engine

import (
	"context"
	"time"

	"alertcore/internal/model"
	"alertcore/internal/stats"
)

// AlertStore owns alert lifecycle and alert-rule linkage records.
type AlertStore interface {
	// CreateAlert inserts a new alert unconditionally (promotion path).
	CreateAlert(ctx context.Context, a *model.Alert) error

	// CreateAlertForEvent inserts an alert keyed by the (event, rule)
	// pair. The idempotency check is atomic with the insert: if the pair
	// already created an alert, the existing id is returned with
	// created=false and nothing is written.
	CreateAlertForEvent(ctx context.Context, eventID, ruleID string, a *model.Alert, linkage model.AlertRuleLinkage) (alertID string, created bool, err error)

	// GetAlert retrieves an alert by id.
	GetAlert(ctx context.Context, alertID string) (*model.Alert, error)

	// Acknowledge transitions an alert from active to acknowledged.
	Acknowledge(ctx context.Context, alertID, userID string) (*model.Alert, error)

	// Resolve transitions an alert to resolved. Legal from active or
	// acknowledged; resolved is terminal.
	Resolve(ctx context.Context, alertID, userID string) (*model.Alert, error)

	// AddLinkage appends a provenance edge outside the rule-match path.
	AddLinkage(ctx context.Context, linkage model.AlertRuleLinkage) error

	// ListAlerts returns alerts matching the filter, newest-first.
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error)
}

// EventStore owns ingested events and their promotion markers.
type EventStore interface {
	SaveEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)

	// MarkPromoted sets the promotion markers. Monotonic: once promoted,
	// an event keeps its original alert id.
	MarkPromoted(ctx context.Context, eventID, alertID string) error

	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
}

// AuditLog is the append-only record of rule lifecycle transitions.
type AuditLog interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, ruleID string) ([]model.AuditEntry, error)
}

// StatsRecorder folds evaluation samples into per-rule statistics.
type StatsRecorder interface {
	Record(ruleID string, s stats.Sample)
}

// Sink is the external notification delivery boundary. The engine treats
// failures as non-fatal: delivery retry policy belongs to the sink.
type Sink interface {
	Send(ctx context.Context, channels, recipients []string, alert *model.Alert) error
}

// EscalationScheduler receives the escalation handoff at alert-creation
// time. The engine itself runs no timers.
type EscalationScheduler interface {
	Schedule(ctx context.Context, alertID string, escalateAfter time.Duration, policy string) error
}

// Publisher fans newly created records out to subscribers.
type Publisher interface {
	Publish(topic string, payload any)
}
