package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"alertcore/internal/model"
)

const eventColumns = `event_id, ts, type, source, title, summary, description,
	metadata, payload, tags, correlation_id, origin_rule_id, severity,
	promoted, promoted_alert_id`

// SaveEvent inserts an event, ignoring redelivery of an already-stored
// id so promotion markers survive reprocessing.
func (db *DB) SaveEvent(ctx context.Context, e *model.Event) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	payload, err := marshalJSON(e.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (event_id, ts, type, source, title, summary, description,
			metadata, payload, tags, correlation_id, origin_rule_id, severity, promoted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err = db.conn.ExecContext(ctx, query,
		e.ID, e.Timestamp, e.Type, e.Source, e.Title, e.Summary, e.Description,
		metadata, payload, pq.Array(e.Tags), e.CorrelationID, e.OriginRuleID, e.Severity,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by id.
func (db *DB) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`
	e, err := scanEvent(db.conn.QueryRowContext(ctx, query, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// MarkPromoted sets the promotion markers. Monotonic: an event that is
// already promoted keeps its original alert id.
func (db *DB) MarkPromoted(ctx context.Context, eventID, alertID string) error {
	query := `
		UPDATE events
		SET promoted = TRUE, promoted_alert_id = $2
		WHERE event_id = $1 AND promoted = FALSE
	`
	res, err := db.conn.ExecContext(ctx, query, eventID, alertID)
	if err != nil {
		return fmt.Errorf("failed to mark event promoted: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read promotion result: %w", err)
	}
	if rows == 0 {
		// Either missing or already promoted; distinguish for the caller.
		if _, err := db.GetEvent(ctx, eventID); err != nil {
			return err
		}
	}
	return nil
}

// ListEvents retrieves events matching the filter, newest first.
func (db *DB) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []any{}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		query += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d OR summary ILIKE $%d)", n, n, n)
	}
	query += " ORDER BY ts DESC, event_id"
	limit, offset := pageWindow(filter.Page, filter.Limit)
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e               model.Event
		summary         sql.NullString
		description     sql.NullString
		metadata        sql.NullString
		payload         sql.NullString
		tags            pq.StringArray
		correlationID   sql.NullString
		originRuleID    sql.NullString
		promotedAlertID sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.Timestamp, &e.Type, &e.Source, &e.Title, &summary, &description,
		&metadata, &payload, &tags, &correlationID, &originRuleID, &e.Severity,
		&e.Promoted, &promotedAlertID,
	)
	if err != nil {
		return nil, err
	}
	e.Summary = summary.String
	e.Description = description.String
	e.Tags = tags
	e.CorrelationID = correlationID.String
	e.OriginRuleID = originRuleID.String
	e.PromotedAlertID = promotedAlertID.String
	unmarshalJSON(metadata, &e.Metadata, "event_id", e.ID, "column", "metadata")
	unmarshalJSON(payload, &e.Payload, "event_id", e.ID, "column", "payload")
	return &e, nil
}
