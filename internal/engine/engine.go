package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"alertcore/internal/bus"
	"alertcore/internal/matcher"
	"alertcore/internal/model"
	"alertcore/internal/router"
	"alertcore/internal/stats"
)

// defaultNotifyTimeout bounds a single notification sink call.
const defaultNotifyTimeout = 5 * time.Second

// Config holds the engine's tunables.
type Config struct {
	// FallbackTeam is assigned to promoted alerts and to create_alert
	// actions that carry no target team.
	FallbackTeam string
	// NotifyTimeout bounds each notification sink call. Zero selects the
	// default.
	NotifyTimeout time.Duration
}

// Deps are the engine's collaborators. Sink, Escalator, and Bus are
// optional; the corresponding steps degrade to a logged warning when
// absent.
type Deps struct {
	Alerts    AlertStore
	Events    EventStore
	Audit     AuditLog
	Stats     StatsRecorder
	Sink      Sink
	Escalator EscalationScheduler
	Bus       Publisher
}

// Engine evaluates incoming events against the active rule set and
// executes matched rules' actions.
type Engine struct {
	matcher *matcher.Matcher
	deps    Deps
	cfg     Config

	// notifyWG tracks in-flight asynchronous sink calls so Close can
	// drain them.
	notifyWG sync.WaitGroup
}

// New creates an engine evaluating against the given matcher's rule set.
func New(m *matcher.Matcher, deps Deps, cfg Config) *Engine {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Engine{matcher: m, deps: deps, cfg: cfg}
}

// Close waits for in-flight notification dispatches to finish.
func (e *Engine) Close() {
	e.notifyWG.Wait()
}

// Process evaluates one event against every active rule in ascending
// priority order. Each step commits independently: a storage fault stops
// processing and is returned alongside the outcomes produced so far, and
// already-committed side effects are not rolled back. Reprocessing the
// same event is safe; alert creation is idempotent per (event, rule).
func (e *Engine) Process(ctx context.Context, ev *model.Event) ([]model.EngineOutcome, error) {
	if err := e.deps.Events.SaveEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: save event %s: %v", model.ErrStorageFault, ev.ID, err)
	}
	e.publish(bus.TopicEvents, ev)

	set := e.matcher.RuleSet()
	rules := set.Rules()
	outcomes := make([]model.EngineOutcome, 0, len(rules))

	for i := range rules {
		rule := &rules[i]
		outcome, err := e.evaluateRule(ctx, ev, set, rule)
		outcomes = append(outcomes, outcome)
		e.publish(bus.TopicOutcomes, outcome)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// evaluateRule runs steps 1-5 of the per-rule pipeline for one event.
func (e *Engine) evaluateRule(ctx context.Context, ev *model.Event, set *matcher.RuleSet, rule *model.Rule) (model.EngineOutcome, error) {
	chosen := rule
	confidence := 1.0
	variantID := ""

	if test, ok := set.TestFor(rule.ID); ok {
		if d := router.Route(ev, &test); d.Routed {
			variant := d.Rule
			chosen = &variant
			confidence = d.Confidence
			if variant.ID != rule.ID {
				variantID = variant.ID
			}
		}
	}

	start := time.Now()
	matched := matcher.Matches(ev, chosen)
	elapsed := time.Since(start)

	outcome := model.EngineOutcome{
		EventID:         ev.ID,
		RuleID:          rule.ID,
		Matched:         matched,
		VariantRuleID:   variantID,
		ExecutionTimeMs: float64(elapsed) / float64(time.Millisecond),
	}

	var actionErr error
	alertCreated := false
	if matched {
		alertCreated, actionErr = e.executeActions(ctx, ev, rule.ID, chosen, confidence, &outcome)
	}

	e.recordSample(rule.ID, variantID, stats.Sample{
		Matched:       matched,
		ExecutionTime: elapsed,
		AlertCreated:  alertCreated,
	})

	if matched {
		entry := model.AuditEntry{
			RuleID: rule.ID,
			Action: model.AuditTriggered,
			Actor:  "engine",
			Change: map[string]string{
				"event_id":          ev.ID,
				"execution_time_ms": strconv.FormatFloat(outcome.ExecutionTimeMs, 'f', 3, 64),
			},
		}
		if outcome.CreatedAlertID != "" {
			entry.AlertIDs = []string{outcome.CreatedAlertID}
		}
		if err := e.deps.Audit.Append(ctx, entry); err != nil && actionErr == nil {
			actionErr = fmt.Errorf("%w: audit append for rule %s: %v", model.ErrStorageFault, rule.ID, err)
		}
	}

	return outcome, actionErr
}

// executeActions runs the matched rule's actions in stored order. Actions
// are independent, not transactional: a notification failure never rolls
// back an alert already created.
func (e *Engine) executeActions(ctx context.Context, ev *model.Event, baseRuleID string, chosen *model.Rule, confidence float64, outcome *model.EngineOutcome) (bool, error) {
	alertCreated := false
	var createdAlert *model.Alert

	for _, action := range chosen.Actions {
		switch action.Type {
		case model.ActionCreateAlert:
			alert, created, err := e.createAlert(ctx, ev, baseRuleID, action, confidence, outcome.VariantRuleID)
			if err != nil {
				return alertCreated, err
			}
			outcome.CreatedAlertID = alert.ID
			if !created {
				slog.Debug("Alert already exists for event/rule pair, skipping create",
					"event_id", ev.ID,
					"rule_id", baseRuleID,
					"alert_id", alert.ID,
				)
				continue
			}
			alertCreated = true
			createdAlert = alert
			outcome.ExecutedActions = append(outcome.ExecutedActions, string(model.ActionCreateAlert))
			e.publish(bus.TopicAlerts, alert)
			e.scheduleEscalation(ctx, alert.ID, action)

		case model.ActionSendNotification:
			notifyAlert := createdAlert
			if notifyAlert == nil {
				// The rule notifies without creating an alert; send an
				// ephemeral view of the event instead.
				notifyAlert = alertFromEvent(ev, baseRuleID, e.cfg.FallbackTeam)
			}
			if e.deps.Sink == nil {
				outcome.Warning = "notification sink not configured"
				slog.Warn("send_notification skipped: no sink configured",
					"event_id", ev.ID,
					"rule_id", baseRuleID,
				)
				continue
			}
			e.dispatchNotification(action.Channels, action.Recipients, notifyAlert, baseRuleID)
			outcome.ExecutedActions = append(outcome.ExecutedActions, string(model.ActionSendNotification))
		}
	}
	return alertCreated, nil
}

// createAlert builds and idempotently stores the alert for a matched
// create_alert action, together with its provenance linkage.
func (e *Engine) createAlert(ctx context.Context, ev *model.Event, ruleID string, action model.Action, confidence float64, variantID string) (*model.Alert, bool, error) {
	severity := ev.Severity
	if action.Severity != "" {
		severity = action.Severity
	}
	team := action.Team
	if team == "" {
		team = e.cfg.FallbackTeam
	}

	alert := &model.Alert{
		ID:              uuid.NewString(),
		Title:           ev.Title,
		Description:     ev.Description,
		Severity:        severity,
		Status:          model.AlertStatusActive,
		Source:          ev.Source,
		Tags:            ev.Tags,
		AssignedTeam:    team,
		RelatedEvents:   []string{ev.ID},
		TriggeredByRule: ruleID,
	}

	linkageContext := "rule match"
	if variantID != "" {
		linkageContext = "rule match via variant " + variantID
	}
	linkage := model.AlertRuleLinkage{
		AlertID:    alert.ID,
		RuleID:     ruleID,
		EventID:    ev.ID,
		Type:       model.LinkageTriggeredBy,
		Confidence: confidence,
		Context:    linkageContext,
		CreatedAt:  time.Now().UTC(),
	}

	alertID, created, err := e.deps.Alerts.CreateAlertForEvent(ctx, ev.ID, ruleID, alert, linkage)
	if err != nil {
		return nil, false, fmt.Errorf("%w: create alert for event %s rule %s: %v", model.ErrStorageFault, ev.ID, ruleID, err)
	}
	if !created {
		existing, err := e.deps.Alerts.GetAlert(ctx, alertID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: load existing alert %s: %v", model.ErrStorageFault, alertID, err)
		}
		return existing, false, nil
	}

	slog.Info("Created alert",
		"alert_id", alert.ID,
		"event_id", ev.ID,
		"rule_id", ruleID,
		"severity", alert.Severity,
	)
	return alert, true, nil
}

// scheduleEscalation hands the alert off to the external escalation
// scheduler when the action carries an escalate-after duration.
func (e *Engine) scheduleEscalation(ctx context.Context, alertID string, action model.Action) {
	if action.EscalateAfterSeconds <= 0 || e.deps.Escalator == nil {
		return
	}
	after := time.Duration(action.EscalateAfterSeconds) * time.Second
	if err := e.deps.Escalator.Schedule(ctx, alertID, after, action.EscalationPolicy); err != nil {
		slog.Warn("Escalation handoff failed",
			"alert_id", alertID,
			"escalate_after", after,
			"error", err,
		)
	}
}

// dispatchNotification fires the sink call on its own goroutine with a
// bounded timeout so a slow sink never blocks action execution for other
// rules on the same event. Failure is reported, not retried here; retry
// policy belongs to the sink.
func (e *Engine) dispatchNotification(channels, recipients []string, alert *model.Alert, ruleID string) {
	e.notifyWG.Add(1)
	go func() {
		defer e.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
		defer cancel()

		if err := e.deps.Sink.Send(ctx, channels, recipients, alert); err != nil {
			slog.Warn("Notification delivery failed",
				"alert_id", alert.ID,
				"rule_id", ruleID,
				"channels", channels,
				"error", fmt.Errorf("%w: %v", model.ErrSinkUnavailable, err),
			)
		}
	}()
}

// recordSample updates the base rule's statistics and, when an A/B
// variant was routed, the variant arm's own accumulation.
func (e *Engine) recordSample(ruleID, variantID string, s stats.Sample) {
	if e.deps.Stats == nil {
		return
	}
	e.deps.Stats.Record(ruleID, s)
	if variantID != "" {
		e.deps.Stats.Record(variantID, s)
	}
}

func (e *Engine) publish(topic string, payload any) {
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(topic, payload)
	}
}

// alertFromEvent builds an ephemeral, unstored alert view of an event
// for notification-only rules.
func alertFromEvent(ev *model.Event, ruleID, team string) *model.Alert {
	return &model.Alert{
		ID:              uuid.NewString(),
		Title:           ev.Title,
		Description:     ev.Description,
		Severity:        ev.Severity,
		Status:          model.AlertStatusActive,
		Source:          ev.Source,
		Tags:            ev.Tags,
		AssignedTeam:    team,
		RelatedEvents:   []string{ev.ID},
		TriggeredByRule: ruleID,
	}
}
