package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"alertcore/internal/model"
)

// Append records an audit entry. The sequence number comes from the
// table's identity column, so insertion order is preserved for
// timestamp tie-breaks.
func (db *DB) Append(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	change, err := marshalJSON(entry.Change)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_entries (entry_id, rule_id, action, actor, ts, change, alert_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := db.conn.ExecContext(ctx, query,
		entry.ID, entry.RuleID, entry.Action, entry.Actor, entry.Timestamp,
		change, pq.Array(entry.AlertIDs),
	); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns audit entries sorted by timestamp ascending, ties broken
// by insertion order. An empty ruleID returns the full log.
func (db *DB) Query(ctx context.Context, ruleID string) ([]model.AuditEntry, error) {
	query := `
		SELECT entry_id, rule_id, action, actor, ts, seq, change, alert_ids
		FROM audit_entries
	`
	args := []any{}
	if ruleID != "" {
		query += " WHERE rule_id = $1"
		args = append(args, ruleID)
	}
	query += " ORDER BY ts, seq"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e        model.AuditEntry
			actor    sql.NullString
			change   sql.NullString
			alertIDs pq.StringArray
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &e.Action, &actor, &e.Timestamp, &e.Seq, &change, &alertIDs); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Actor = actor.String
		e.AlertIDs = alertIDs
		unmarshalJSON(change, &e.Change, "entry_id", e.ID, "column", "change")
		out = append(out, e)
	}
	return out, rows.Err()
}
