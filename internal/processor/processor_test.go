package processor

import (
	"context"
	"errors"
	"testing"

	"alertcore/internal/events"
	"alertcore/internal/model"
)

type fakeEngine struct {
	outcomes []model.EngineOutcome
	err      error
	events   []*model.Event
}

func (f *fakeEngine) Process(_ context.Context, e *model.Event) ([]model.EngineOutcome, error) {
	f.events = append(f.events, e)
	return f.outcomes, f.err
}

type fakeAlertSource struct {
	alerts map[string]*model.Alert
}

func (f *fakeAlertSource) GetAlert(_ context.Context, id string) (*model.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return a, nil
}

type fakeOutcomeSink struct {
	records []*events.OutcomeRecord
	err     error
}

func (f *fakeOutcomeSink) PublishOutcome(_ context.Context, rec *events.OutcomeRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeAlertSink struct {
	records []*events.AlertCreated
}

func (f *fakeAlertSink) PublishAlert(_ context.Context, rec *events.AlertCreated) error {
	f.records = append(f.records, rec)
	return nil
}

func wireEvent() *events.EventIngest {
	return &events.EventIngest{
		EventID:  "event-1",
		EventTS:  1234567890,
		Type:     "system",
		Source:   "database-monitor",
		Title:    "Connection Timeout",
		Severity: "high",
	}
}

func TestHandlePublishesOutcomesAndAlerts(t *testing.T) {
	engine := &fakeEngine{
		outcomes: []model.EngineOutcome{
			{EventID: "event-1", RuleID: "rule-1", Matched: true, CreatedAlertID: "alert-1"},
			{EventID: "event-1", RuleID: "rule-2", Matched: false},
		},
	}
	alerts := &fakeAlertSource{alerts: map[string]*model.Alert{
		"alert-1": {ID: "alert-1", Severity: model.SeverityCritical, Status: model.AlertStatusActive},
	}}
	outcomes := &fakeOutcomeSink{}
	created := &fakeAlertSink{}

	p := New(nil, engine, alerts, outcomes, created)
	p.handle(context.Background(), wireEvent())

	if len(engine.events) != 1 || engine.events[0].ID != "event-1" {
		t.Fatalf("engine received %v, want one event-1", engine.events)
	}
	if len(outcomes.records) != 2 {
		t.Fatalf("outcome records = %d, want 2", len(outcomes.records))
	}
	if outcomes.records[0].RuleID != "rule-1" || !outcomes.records[0].Matched {
		t.Errorf("first outcome record = %+v, want matched rule-1", outcomes.records[0])
	}
	if len(created.records) != 1 || created.records[0].AlertID != "alert-1" {
		t.Errorf("alert records = %v, want one for alert-1", created.records)
	}
}

func TestHandleStorageFaultStillPublishesPartial(t *testing.T) {
	engine := &fakeEngine{
		outcomes: []model.EngineOutcome{
			{EventID: "event-1", RuleID: "rule-1", Matched: true},
		},
		err: model.ErrStorageFault,
	}
	outcomes := &fakeOutcomeSink{}
	created := &fakeAlertSink{}

	p := New(nil, engine, &fakeAlertSource{}, outcomes, created)
	p.handle(context.Background(), wireEvent())

	if len(outcomes.records) != 1 {
		t.Errorf("outcome records = %d, want partial outcome published", len(outcomes.records))
	}
}

func TestHandleMissingAlertDoesNotPanic(t *testing.T) {
	engine := &fakeEngine{
		outcomes: []model.EngineOutcome{
			{EventID: "event-1", RuleID: "rule-1", Matched: true, CreatedAlertID: "gone"},
		},
	}
	outcomes := &fakeOutcomeSink{}
	created := &fakeAlertSink{}

	p := New(nil, engine, &fakeAlertSource{}, outcomes, created)
	p.handle(context.Background(), wireEvent())

	if len(created.records) != 0 {
		t.Errorf("alert records = %d, want 0 when lookup fails", len(created.records))
	}
}

func TestHandlePublishFailureLogsAndContinues(t *testing.T) {
	engine := &fakeEngine{
		outcomes: []model.EngineOutcome{
			{EventID: "event-1", RuleID: "rule-1", Matched: true, CreatedAlertID: "alert-1"},
		},
	}
	alerts := &fakeAlertSource{alerts: map[string]*model.Alert{"alert-1": {ID: "alert-1"}}}
	outcomes := &fakeOutcomeSink{err: errors.New("broker down")}
	created := &fakeAlertSink{}

	p := New(nil, engine, alerts, outcomes, created)
	p.handle(context.Background(), wireEvent())

	// Outcome publication failed but alert publication still runs.
	if len(created.records) != 1 {
		t.Errorf("alert records = %d, want 1", len(created.records))
	}
}
