package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alertcore/internal/bus"
	"alertcore/internal/model"
)

// Promote converts an event directly into an alert, outside normal rule
// matching. Idempotent: an already-promoted event returns its existing
// alert id without creating anything.
func (e *Engine) Promote(ctx context.Context, eventID, userID string) (*model.Alert, error) {
	ev, err := e.deps.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Promoted {
		return e.deps.Alerts.GetAlert(ctx, ev.PromotedAlertID)
	}

	alert := e.promotedAlert([]*model.Event{ev}, userID)
	if err := e.deps.Alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: create promoted alert for event %s: %v", model.ErrStorageFault, eventID, err)
	}
	if err := e.finishPromotion(ctx, []*model.Event{ev}, alert, userID); err != nil {
		return nil, err
	}
	return alert, nil
}

// PromoteMultiple batches events into one composite alert carrying the
// maximum severity among the inputs. All-or-nothing: if any event is
// missing, or alert creation fails, no event is marked promoted. Events
// already promoted keep their original alert id and are folded into the
// new alert's related set without re-marking.
func (e *Engine) PromoteMultiple(ctx context.Context, eventIDs []string, userID string) (*model.Alert, error) {
	if len(eventIDs) == 0 {
		return nil, fmt.Errorf("%w: no event ids given", model.ErrValidation)
	}

	events := make([]*model.Event, 0, len(eventIDs))
	for _, id := range eventIDs {
		ev, err := e.deps.Events.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	alert := e.promotedAlert(events, userID)
	if err := e.deps.Alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: create composite alert for %d events: %v", model.ErrStorageFault, len(events), err)
	}
	if err := e.finishPromotion(ctx, events, alert, userID); err != nil {
		return nil, err
	}
	return alert, nil
}

// promotedAlert builds the alert record for a promotion, using the
// events' own fields as defaults.
func (e *Engine) promotedAlert(events []*model.Event, userID string) *model.Alert {
	first := events[0]
	severities := make([]model.Severity, 0, len(events))
	related := make([]string, 0, len(events))
	for _, ev := range events {
		severities = append(severities, ev.Severity)
		related = append(related, ev.ID)
	}

	title := first.Title
	if len(events) > 1 {
		title = fmt.Sprintf("%s (+%d related events)", first.Title, len(events)-1)
	}

	return &model.Alert{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   first.Description,
		Severity:      model.MaxSeverity(severities),
		Status:        model.AlertStatusActive,
		Source:        first.Source,
		Tags:          first.Tags,
		AssignedTeam:  e.cfg.FallbackTeam,
		AssignedUser:  userID,
		RelatedEvents: related,
	}
}

// finishPromotion marks each event promoted, records the provenance
// linkage, and fans the new records out. Events already promoted keep
// their original marker.
func (e *Engine) finishPromotion(ctx context.Context, events []*model.Event, alert *model.Alert, userID string) error {
	now := time.Now().UTC()
	for _, ev := range events {
		if ev.Promoted {
			continue
		}
		if err := e.deps.Events.MarkPromoted(ctx, ev.ID, alert.ID); err != nil {
			return fmt.Errorf("%w: mark event %s promoted: %v", model.ErrStorageFault, ev.ID, err)
		}
		linkage := model.AlertRuleLinkage{
			AlertID:    alert.ID,
			EventID:    ev.ID,
			Type:       model.LinkagePromoted,
			Confidence: 1.0,
			Context:    "manual promotion",
			CreatedAt:  now,
		}
		if err := e.deps.Alerts.AddLinkage(ctx, linkage); err != nil {
			return fmt.Errorf("%w: record promotion linkage for event %s: %v", model.ErrStorageFault, ev.ID, err)
		}
		ev.Promoted = true
		ev.PromotedAlertID = alert.ID
		e.publish(bus.TopicEvents, ev)
	}
	e.publish(bus.TopicAlerts, alert)

	slog.Info("Promoted events to alert",
		"alert_id", alert.ID,
		"event_count", len(events),
		"severity", alert.Severity,
		"user_id", userID,
	)
	return nil
}

// Acknowledge transitions an alert from active to acknowledged and
// publishes the updated record.
func (e *Engine) Acknowledge(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	alert, err := e.deps.Alerts.Acknowledge(ctx, alertID, userID)
	if err != nil {
		return nil, err
	}
	e.publish(bus.TopicAlerts, alert)
	return alert, nil
}

// Resolve transitions an alert to resolved and publishes the updated
// record. Resolved is terminal.
func (e *Engine) Resolve(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	alert, err := e.deps.Alerts.Resolve(ctx, alertID, userID)
	if err != nil {
		return nil, err
	}
	e.publish(bus.TopicAlerts, alert)
	return alert, nil
}

// Alerts returns alerts matching the filter.
func (e *Engine) Alerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	return e.deps.Alerts.ListAlerts(ctx, filter)
}

// Events returns events matching the filter.
func (e *Engine) Events(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return e.deps.Events.ListEvents(ctx, filter)
}

// AuditTrail returns the audit entries for one rule, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, ruleID string) ([]model.AuditEntry, error) {
	return e.deps.Audit.Query(ctx, ruleID)
}
