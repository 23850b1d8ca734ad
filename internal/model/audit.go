package model

import "time"

// AuditAction is a rule lifecycle transition recorded in the audit log.
type AuditAction string

// Audit actions.
const (
	AuditCreated       AuditAction = "created"
	AuditModified      AuditAction = "modified"
	AuditDeleted       AuditAction = "deleted"
	AuditDisabled      AuditAction = "disabled"
	AuditTriggered     AuditAction = "triggered"
	AuditABTestStarted AuditAction = "ab_test_started"
	AuditABTestStopped AuditAction = "ab_test_stopped"
)

// AuditEntry is an immutable, append-only record of a rule lifecycle
// transition. Total order is established by Timestamp; ties are broken
// by Seq, the insertion order assigned by the audit log.
type AuditEntry struct {
	ID        string            `json:"entry_id"`
	RuleID    string            `json:"rule_id"`
	Action    AuditAction       `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Seq       int64             `json:"seq"`
	Change    map[string]string `json:"change,omitempty"`
	AlertIDs  []string          `json:"alert_ids,omitempty"`
}
