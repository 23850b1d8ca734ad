package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"alertcore/internal/auditlog"
	"alertcore/internal/matcher"
	"alertcore/internal/memstore"
	"alertcore/internal/model"
	"alertcore/internal/stats"
)

type testHarness struct {
	engine    *Engine
	store     *memstore.Store
	audit     *auditlog.Log
	stats     *stats.Aggregator
	sink      *fakeSink
	escalator *fakeEscalator
}

func newHarness(t *testing.T, rules []model.Rule, tests []model.ABTest) *testHarness {
	t.Helper()
	store := memstore.New()
	audit := auditlog.New()
	agg := stats.NewAggregator()
	sink := &fakeSink{}
	escalator := &fakeEscalator{}

	m := matcher.NewMatcher(matcher.NewRuleSet(rules, tests))
	eng := New(m, Deps{
		Alerts:    store,
		Events:    store,
		Audit:     audit,
		Stats:     agg,
		Sink:      sink,
		Escalator: escalator,
	}, Config{FallbackTeam: "platform-oncall"})

	return &testHarness{engine: eng, store: store, audit: audit, stats: agg, sink: sink, escalator: escalator}
}

func timeoutRule() model.Rule {
	return model.Rule{
		ID:       "rule-1",
		Name:     "database connection timeouts",
		Active:   true,
		Priority: 1,
		Conditions: []model.Condition{
			{Field: "source", Operator: model.OperatorEquals, Value: "database-monitor"},
			{Field: "title", Operator: model.OperatorContains, Value: "Connection"},
			{Field: "metadata.errorCode", Operator: model.OperatorEquals, Value: "ETIMEDOUT"},
		},
		Actions: []model.Action{
			{Type: model.ActionCreateAlert, Severity: model.SeverityCritical, Team: "database-team"},
		},
	}
}

func performanceRule() model.Rule {
	return model.Rule{
		ID:       "rule-2",
		Name:     "performance events",
		Active:   true,
		Priority: 2,
		Conditions: []model.Condition{
			{Field: "type", Operator: model.OperatorEquals, Value: "performance"},
		},
		Actions: []model.Action{
			{Type: model.ActionCreateAlert, Severity: model.SeverityMedium},
		},
	}
}

func timeoutEvent() *model.Event {
	return &model.Event{
		ID:        "event-1",
		Timestamp: time.Now().UTC(),
		Type:      model.EventTypeSystem,
		Source:    "database-monitor",
		Title:     "Connection Timeout",
		Severity:  model.SeverityHigh,
		Metadata:  map[string]any{"errorCode": "ETIMEDOUT"},
	}
}

func TestProcessMatchCreatesAlert(t *testing.T) {
	h := newHarness(t, []model.Rule{timeoutRule(), performanceRule()}, nil)
	ctx := context.Background()

	outcomes, err := h.engine.Process(ctx, timeoutEvent())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("len(outcomes) = %d, want 2", len(outcomes))
	}

	first := outcomes[0]
	if first.RuleID != "rule-1" || !first.Matched {
		t.Errorf("first outcome = {rule %s, matched %v}, want rule-1 matched", first.RuleID, first.Matched)
	}
	if first.CreatedAlertID == "" {
		t.Fatal("first outcome has no created alert id")
	}

	alert, err := h.store.GetAlert(ctx, first.CreatedAlertID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if alert.Severity != model.SeverityCritical {
		t.Errorf("alert severity = %s, want critical (action override)", alert.Severity)
	}
	if alert.AssignedTeam != "database-team" {
		t.Errorf("alert team = %s, want database-team", alert.AssignedTeam)
	}
	if alert.TriggeredByRule != "rule-1" {
		t.Errorf("alert triggeredByRule = %s, want rule-1", alert.TriggeredByRule)
	}

	second := outcomes[1]
	if second.RuleID != "rule-2" || second.Matched {
		t.Errorf("second outcome = {rule %s, matched %v}, want rule-2 unmatched", second.RuleID, second.Matched)
	}

	st, ok := h.stats.Snapshot("rule-1")
	if !ok {
		t.Fatal("no statistics recorded for rule-1")
	}
	if st.EvaluationCount != 1 || st.TimesTriggered != 1 || st.AlertsCreated != 1 {
		t.Errorf("rule-1 stats = %+v, want one evaluation, trigger, and alert", st)
	}

	st2, _ := h.stats.Snapshot("rule-2")
	if st2.EvaluationCount != 1 || st2.TimesTriggered != 0 {
		t.Errorf("rule-2 stats = %+v, want one evaluation and no triggers", st2)
	}

	entries, err := h.audit.Query(ctx, "rule-1")
	if err != nil {
		t.Fatalf("audit Query() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Action != model.AuditTriggered {
		t.Errorf("rule-1 audit = %v, want one triggered entry", entries)
	}

	links, err := h.store.Linkages(ctx, first.CreatedAlertID)
	if err != nil {
		t.Fatalf("Linkages() error = %v", err)
	}
	if len(links) != 1 || links[0].Type != model.LinkageTriggeredBy || links[0].EventID != "event-1" {
		t.Errorf("linkages = %v, want one triggered_by edge to event-1", links)
	}
}

func TestProcessReprocessingIsIdempotent(t *testing.T) {
	h := newHarness(t, []model.Rule{timeoutRule()}, nil)
	ctx := context.Background()

	first, err := h.engine.Process(ctx, timeoutEvent())
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	second, err := h.engine.Process(ctx, timeoutEvent())
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}

	if got, want := second[0].CreatedAlertID, first[0].CreatedAlertID; got != want {
		t.Errorf("redelivered event alert id = %s, want original %s", got, want)
	}

	alerts, err := h.store.ListAlerts(ctx, model.AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("alert count after reprocessing = %d, want 1", len(alerts))
	}

	st, _ := h.stats.Snapshot("rule-1")
	if st.EvaluationCount != 2 || st.TimesTriggered != 2 || st.AlertsCreated != 1 {
		t.Errorf("stats after reprocessing = %+v, want 2 evaluations, 2 triggers, 1 alert", st)
	}
}

func TestProcessInactiveRuleSkipped(t *testing.T) {
	rule := timeoutRule()
	rule.Active = false
	h := newHarness(t, []model.Rule{rule}, nil)

	outcomes, err := h.engine.Process(context.Background(), timeoutEvent())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("outcomes for inactive rule = %d, want 0", len(outcomes))
	}
}

func TestProcessNotificationFailureIsNonFatal(t *testing.T) {
	rule := timeoutRule()
	rule.Actions = append(rule.Actions, model.Action{
		Type:       model.ActionSendNotification,
		Channels:   []string{"email"},
		Recipients: []string{"oncall@example.com"},
	})
	h := newHarness(t, []model.Rule{rule}, nil)
	h.sink.err = errors.New("smtp refused")

	outcomes, err := h.engine.Process(context.Background(), timeoutEvent())
	if err != nil {
		t.Fatalf("Process() error = %v, want nil despite sink failure", err)
	}
	h.engine.Close()

	if outcomes[0].CreatedAlertID == "" {
		t.Error("sink failure aborted alert creation")
	}
	if got := h.sink.callCount(); got != 1 {
		t.Errorf("sink calls = %d, want 1", got)
	}
	if got, want := len(outcomes[0].ExecutedActions), 2; got != want {
		t.Errorf("executed actions = %v, want both actions recorded", outcomes[0].ExecutedActions)
	}
}

func TestProcessEscalationHandoff(t *testing.T) {
	rule := timeoutRule()
	rule.Actions[0].EscalateAfterSeconds = 300
	rule.Actions[0].EscalationPolicy = "page-secondary"
	h := newHarness(t, []model.Rule{rule}, nil)

	outcomes, err := h.engine.Process(context.Background(), timeoutEvent())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	h.escalator.mu.Lock()
	defer h.escalator.mu.Unlock()
	if len(h.escalator.calls) != 1 {
		t.Fatalf("escalation calls = %d, want 1", len(h.escalator.calls))
	}
	call := h.escalator.calls[0]
	if call.alertID != outcomes[0].CreatedAlertID || call.after != 5*time.Minute || call.policy != "page-secondary" {
		t.Errorf("escalation call = %+v, want alert %s after 5m via page-secondary", call, outcomes[0].CreatedAlertID)
	}
}

func TestProcessStorageFaultReturnsPartialOutcomes(t *testing.T) {
	h := newHarness(t, []model.Rule{performanceRule(), timeoutRule()}, nil)
	faulty := &faultyAlertStore{AlertStore: h.store, failCreate: true}
	h.engine.deps.Alerts = faulty

	// rule-1 (priority 1) fails on alert creation; rule-2 (priority 2) is
	// never reached but rule-1's outcome is still returned.
	outcomes, err := h.engine.Process(context.Background(), timeoutEvent())
	if !errors.Is(err, model.ErrStorageFault) {
		t.Fatalf("Process() error = %v, want ErrStorageFault", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("partial outcomes = %d, want 1", len(outcomes))
	}
	if outcomes[0].RuleID != "rule-1" || !outcomes[0].Matched {
		t.Errorf("partial outcome = %+v, want matched rule-1", outcomes[0])
	}
}

func TestProcessRoutesRunningVariant(t *testing.T) {
	variantRule := timeoutRule()
	variantRule.ID = "rule-1-variant-b"
	variantRule.Conditions = variantRule.Conditions[:2]

	test := model.ABTest{
		ID:         "test-7",
		BaseRuleID: "rule-1",
		Status:     model.ABTestRunning,
		Variants: []model.Variant{
			{Rule: variantRule, TrafficPercentage: 100},
			{Rule: timeoutRule(), TrafficPercentage: 0, IsControl: true},
		},
	}

	h := newHarness(t, []model.Rule{timeoutRule()}, []model.ABTest{test})

	ev := timeoutEvent()
	ev.Metadata = nil // base rule would not match without errorCode

	outcomes, err := h.engine.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	out := outcomes[0]
	if !out.Matched {
		t.Fatal("variant with relaxed conditions did not match")
	}
	if out.RuleID != "rule-1" {
		t.Errorf("outcome rule id = %s, want base rule-1", out.RuleID)
	}
	if out.VariantRuleID != "rule-1-variant-b" {
		t.Errorf("outcome variant id = %s, want rule-1-variant-b", out.VariantRuleID)
	}

	// Samples accumulate under both the base rule and the variant arm.
	base, _ := h.stats.Snapshot("rule-1")
	arm, _ := h.stats.Snapshot("rule-1-variant-b")
	if base.EvaluationCount != 1 || arm.EvaluationCount != 1 {
		t.Errorf("evaluation counts base=%d arm=%d, want 1 and 1", base.EvaluationCount, arm.EvaluationCount)
	}

	links, _ := h.store.Linkages(context.Background(), out.CreatedAlertID)
	if len(links) != 1 || links[0].RuleID != "rule-1" {
		t.Errorf("linkage rule id = %v, want base rule-1", links)
	}
}

func TestPromoteIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	ev := timeoutEvent()
	ev.ID = "event-5"
	if err := h.store.SaveEvent(ctx, ev); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}

	first, err := h.engine.Promote(ctx, "event-5", "operator-1")
	if err != nil {
		t.Fatalf("first Promote() error = %v", err)
	}
	if first.Severity != ev.Severity {
		t.Errorf("promoted severity = %s, want event severity %s", first.Severity, ev.Severity)
	}
	if first.AssignedTeam != "platform-oncall" {
		t.Errorf("promoted team = %s, want fallback platform-oncall", first.AssignedTeam)
	}

	second, err := h.engine.Promote(ctx, "event-5", "operator-2")
	if err != nil {
		t.Fatalf("second Promote() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second promotion alert id = %s, want original %s", second.ID, first.ID)
	}
	if got, want := len(second.RelatedEvents), 1; got != want {
		t.Errorf("relatedEvents length = %d, want %d (unchanged)", got, want)
	}

	alerts, _ := h.store.ListAlerts(ctx, model.AlertFilter{})
	if len(alerts) != 1 {
		t.Errorf("alert count after double promotion = %d, want 1", len(alerts))
	}

	got, _ := h.store.GetEvent(ctx, "event-5")
	if !got.Promoted || got.PromotedAlertID != first.ID {
		t.Errorf("event markers = {%v, %s}, want promoted with alert %s", got.Promoted, got.PromotedAlertID, first.ID)
	}
}

func TestPromoteUnknownEvent(t *testing.T) {
	h := newHarness(t, nil, nil)
	if _, err := h.engine.Promote(context.Background(), "no-such-event", "operator-1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Promote() error = %v, want ErrNotFound", err)
	}
}

func TestPromoteMultipleMaxSeverity(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	severities := []model.Severity{model.SeverityLow, model.SeverityCritical, model.SeverityMedium}
	ids := make([]string, 0, len(severities))
	for i, sev := range severities {
		ev := timeoutEvent()
		ev.ID = "event-" + string(rune('a'+i))
		ev.Severity = sev
		if err := h.store.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
		ids = append(ids, ev.ID)
	}

	alert, err := h.engine.PromoteMultiple(ctx, ids, "operator-1")
	if err != nil {
		t.Fatalf("PromoteMultiple() error = %v", err)
	}
	if alert.Severity != model.SeverityCritical {
		t.Errorf("composite severity = %s, want critical (maximum of inputs)", alert.Severity)
	}
	if len(alert.RelatedEvents) != 3 {
		t.Errorf("relatedEvents = %v, want all 3 input events", alert.RelatedEvents)
	}
	for _, id := range ids {
		ev, _ := h.store.GetEvent(ctx, id)
		if !ev.Promoted || ev.PromotedAlertID != alert.ID {
			t.Errorf("event %s markers = {%v, %s}, want promoted to %s", id, ev.Promoted, ev.PromotedAlertID, alert.ID)
		}
	}
}

func TestPromoteMultipleAllOrNothing(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	ev := timeoutEvent()
	if err := h.store.SaveEvent(ctx, ev); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}

	if _, err := h.engine.PromoteMultiple(ctx, []string{ev.ID, "missing"}, "operator-1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("PromoteMultiple() error = %v, want ErrNotFound", err)
	}

	got, _ := h.store.GetEvent(ctx, ev.ID)
	if got.Promoted {
		t.Error("event marked promoted despite batch failure")
	}
	alerts, _ := h.store.ListAlerts(ctx, model.AlertFilter{})
	if len(alerts) != 0 {
		t.Errorf("alert count after failed batch = %d, want 0", len(alerts))
	}
}

func TestAcknowledgeResolveLifecycle(t *testing.T) {
	h := newHarness(t, []model.Rule{timeoutRule()}, nil)
	ctx := context.Background()

	outcomes, err := h.engine.Process(ctx, timeoutEvent())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	alertID := outcomes[0].CreatedAlertID

	acked, err := h.engine.Acknowledge(ctx, alertID, "operator-1")
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if acked.Status != model.AlertStatusAcknowledged || acked.AcknowledgedBy != "operator-1" {
		t.Errorf("acknowledged alert = {%s, %s}, want acknowledged by operator-1", acked.Status, acked.AcknowledgedBy)
	}

	resolved, err := h.engine.Resolve(ctx, alertID, "operator-2")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != model.AlertStatusResolved {
		t.Errorf("resolved alert status = %s, want resolved", resolved.Status)
	}

	if _, err := h.engine.Acknowledge(ctx, alertID, "operator-3"); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Acknowledge() after resolve error = %v, want ErrInvalidTransition", err)
	}
}
