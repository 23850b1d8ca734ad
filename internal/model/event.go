// Package model defines the core domain types shared across the engine,
// stores, and transport layers.
package model

import "time"

// EventType classifies the origin domain of an event.
type EventType string

// Known event types.
const (
	EventTypeSystem      EventType = "system"
	EventTypeApplication EventType = "application"
	EventTypeSecurity    EventType = "security"
	EventTypePerformance EventType = "performance"
	EventTypeAuth        EventType = "auth"
)

// Severity expresses how serious an event or alert is.
type Severity string

// Severity levels, ordered from least to most serious.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank maps severities to a comparable order. Unknown severities
// rank below info so they never win a max-severity comparison.
var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityLow:      2,
	SeverityMedium:   3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// Rank returns the comparable order of a severity. Unknown values return 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the most serious severity among the inputs.
// Returns SeverityInfo for an empty input.
func MaxSeverity(severities []Severity) Severity {
	max := SeverityInfo
	for _, s := range severities {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}

// Event is an immutable observation ingested from a source system.
// The only mutation the engine ever applies is the promotion marker
// (Promoted/PromotedAlertID), which is monotonic: once set it never reverts.
type Event struct {
	ID            string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          EventType      `json:"type"`
	Source        string         `json:"source"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OriginRuleID  string         `json:"origin_rule_id,omitempty"`
	Severity      Severity       `json:"severity"`

	// Promotion markers. Promoted is true iff PromotedAlertID references
	// an existing alert whose RelatedEvents contains this event's ID.
	Promoted        bool   `json:"promoted"`
	PromotedAlertID string `json:"promoted_alert_id,omitempty"`
}

// HasTag reports whether the event carries the given tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
