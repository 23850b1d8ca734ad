package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"alertcore/internal/model"
)

const alertColumns = `alert_id, title, description, severity, status, source, tags,
	assigned_team, assigned_user, created_at, updated_at,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by,
	metadata, related_events, triggered_by_rule`

// CreateAlert inserts a new alert unconditionally (promotion path).
func (db *DB) CreateAlert(ctx context.Context, a *model.Alert) error {
	return db.insertAlert(ctx, db.conn, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) insertAlert(ctx context.Context, ex execer, a *model.Alert) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = model.AlertStatusActive
	}

	metadata, err := marshalJSON(a.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (alert_id, title, description, severity, status, source, tags,
			assigned_team, assigned_user, created_at, updated_at, metadata,
			related_events, triggered_by_rule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = ex.ExecContext(ctx, query,
		a.ID, a.Title, a.Description, a.Severity, a.Status, a.Source, pq.Array(a.Tags),
		a.AssignedTeam, a.AssignedUser, a.CreatedAt, a.UpdatedAt, metadata,
		pq.Array(a.RelatedEvents), a.TriggeredByRule,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// CreateAlertForEvent inserts an alert keyed by the (event, rule) pair.
// The claim on the pair and the alert insert run in one transaction, so
// concurrent reprocessing of the same event creates exactly one alert.
func (db *DB) CreateAlertForEvent(ctx context.Context, eventID, ruleID string, a *model.Alert, linkage model.AlertRuleLinkage) (string, bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim := `
		INSERT INTO alert_event_rules (event_id, rule_id, alert_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, rule_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, claim, eventID, ruleID, a.ID)
	if err != nil {
		return "", false, fmt.Errorf("failed to claim event/rule pair: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read claim result: %w", err)
	}
	if rows == 0 {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT alert_id FROM alert_event_rules WHERE event_id = $1 AND rule_id = $2`,
			eventID, ruleID,
		).Scan(&existing)
		if err != nil {
			return "", false, fmt.Errorf("failed to load existing alert id: %w", err)
		}
		return existing, false, nil
	}

	if err := db.insertAlert(ctx, tx, a); err != nil {
		return "", false, err
	}
	if err := insertLinkage(ctx, tx, linkage); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit alert creation: %w", err)
	}
	return a.ID, true, nil
}

// GetAlert retrieves an alert by id.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_id = $1`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert %s", model.ErrNotFound, alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// Acknowledge transitions an alert from active to acknowledged.
func (db *DB) Acknowledge(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $3, acknowledged_at = NOW(), acknowledged_by = $2, updated_at = NOW()
		WHERE alert_id = $1 AND status = $4
	`
	return db.transition(ctx, query, alertID, userID, model.AlertStatusAcknowledged, model.AlertStatusActive)
}

// Resolve transitions an alert from active or acknowledged to resolved.
func (db *DB) Resolve(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $3, resolved_at = NOW(), resolved_by = $2, updated_at = NOW()
		WHERE alert_id = $1 AND status IN ($4, $5)
	`
	return db.transition(ctx, query, alertID, userID, model.AlertStatusResolved,
		model.AlertStatusActive, model.AlertStatusAcknowledged)
}

func (db *DB) transition(ctx context.Context, query, alertID, userID string, args ...any) (*model.Alert, error) {
	execArgs := append([]any{alertID, userID}, args...)
	res, err := db.conn.ExecContext(ctx, query, execArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read transition result: %w", err)
	}
	if rows == 0 {
		// Either missing or in a state the transition does not allow.
		if _, err := db.GetAlert(ctx, alertID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: alert %s", model.ErrInvalidTransition, alertID)
	}
	return db.GetAlert(ctx, alertID)
}

// ListAlerts retrieves alerts matching the filter, newest first.
func (db *DB) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []any{}

	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		query += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", n, n)
	}
	query += " ORDER BY created_at DESC, alert_id"
	limit, offset := pageWindow(filter.Page, filter.Limit)
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []*model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddLinkage appends a provenance edge outside the rule-match path.
func (db *DB) AddLinkage(ctx context.Context, linkage model.AlertRuleLinkage) error {
	return insertLinkage(ctx, db.conn, linkage)
}

func insertLinkage(ctx context.Context, ex execer, l model.AlertRuleLinkage) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO alert_rule_linkages (alert_id, rule_id, event_id, linkage_type, confidence, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := ex.ExecContext(ctx, query,
		l.AlertID, l.RuleID, l.EventID, l.Type, l.Confidence, l.Context, l.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert linkage: %w", err)
	}
	return nil
}

// Linkages retrieves the provenance edges for an alert, oldest first.
func (db *DB) Linkages(ctx context.Context, alertID string) ([]model.AlertRuleLinkage, error) {
	query := `
		SELECT alert_id, rule_id, event_id, linkage_type, confidence, context, created_at
		FROM alert_rule_linkages
		WHERE alert_id = $1
		ORDER BY created_at, rule_id
	`
	rows, err := db.conn.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linkages: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRuleLinkage
	for rows.Next() {
		var (
			l       model.AlertRuleLinkage
			ruleID  sql.NullString
			context sql.NullString
		)
		if err := rows.Scan(&l.AlertID, &ruleID, &l.EventID, &l.Type, &l.Confidence, &context, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan linkage: %w", err)
		}
		l.RuleID = ruleID.String
		l.Context = context.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var (
		a              model.Alert
		description    sql.NullString
		source         sql.NullString
		tags           pq.StringArray
		assignedTeam   sql.NullString
		assignedUser   sql.NullString
		acknowledgedAt sql.NullTime
		acknowledgedBy sql.NullString
		resolvedAt     sql.NullTime
		resolvedBy     sql.NullString
		metadata       sql.NullString
		relatedEvents  pq.StringArray
		triggeredBy    sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.Title, &description, &a.Severity, &a.Status, &source, &tags,
		&assignedTeam, &assignedUser, &a.CreatedAt, &a.UpdatedAt,
		&acknowledgedAt, &acknowledgedBy, &resolvedAt, &resolvedBy,
		&metadata, &relatedEvents, &triggeredBy,
	)
	if err != nil {
		return nil, err
	}
	a.Description = description.String
	a.Source = source.String
	a.Tags = tags
	a.AssignedTeam = assignedTeam.String
	a.AssignedUser = assignedUser.String
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	a.AcknowledgedBy = acknowledgedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	a.ResolvedBy = resolvedBy.String
	a.RelatedEvents = relatedEvents
	a.TriggeredByRule = triggeredBy.String
	unmarshalJSON(metadata, &a.Metadata, "alert_id", a.ID, "column", "metadata")
	return &a, nil
}
