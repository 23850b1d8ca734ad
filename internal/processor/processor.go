// Package processor orchestrates event evaluation: it consumes ingested
// events, runs them through the rule engine, and publishes the resulting
// alerts and outcomes.
package processor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"alertcore/internal/events"
	"alertcore/internal/model"
)

// EventSource supplies ingested events, typically a Kafka consumer.
type EventSource interface {
	ReadMessage(ctx context.Context) (*events.EventIngest, *kafka.Message, error)
}

// Engine evaluates one event against the active rule set.
type Engine interface {
	Process(ctx context.Context, e *model.Event) ([]model.EngineOutcome, error)
}

// AlertSource looks up alerts created during processing.
type AlertSource interface {
	GetAlert(ctx context.Context, alertID string) (*model.Alert, error)
}

// OutcomeSink publishes evaluation outcome records.
type OutcomeSink interface {
	PublishOutcome(ctx context.Context, rec *events.OutcomeRecord) error
}

// AlertSink publishes alert-created records.
type AlertSink interface {
	PublishAlert(ctx context.Context, rec *events.AlertCreated) error
}

// Processor runs the evaluation pipeline.
type Processor struct {
	source   EventSource
	engine   Engine
	alerts   AlertSource
	outcomes OutcomeSink
	created  AlertSink
}

// New creates an event evaluation processor.
func New(source EventSource, engine Engine, alerts AlertSource, outcomes OutcomeSink, created AlertSink) *Processor {
	return &Processor{
		source:   source,
		engine:   engine,
		alerts:   alerts,
		outcomes: outcomes,
		created:  created,
	}
}

// Run continuously reads events, evaluates them, and publishes the
// results until ctx is cancelled. Individual failures are logged and the
// loop moves on; alert creation is idempotent per (event, rule), so a
// redelivered event never duplicates alerts.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("Starting event processing loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Event processing loop stopped")
			return nil
		default:
			wire, _, err := p.source.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read event", "error", err)
				continue
			}
			p.handle(ctx, wire)
		}
	}
}

func (p *Processor) handle(ctx context.Context, wire *events.EventIngest) {
	ev := wire.ToModel()

	slog.Debug("Received event",
		"event_id", ev.ID,
		"type", ev.Type,
		"source", ev.Source,
		"severity", ev.Severity,
	)

	outcomes, err := p.engine.Process(ctx, ev)
	if err != nil {
		// Partial outcomes are still published below; the storage fault is
		// retried when the event is redelivered.
		if errors.Is(err, model.ErrStorageFault) {
			slog.Error("Event processing hit a storage fault",
				"event_id", ev.ID,
				"outcomes_completed", len(outcomes),
				"error", err,
			)
		} else {
			slog.Error("Event processing failed", "event_id", ev.ID, "error", err)
		}
	}

	for _, outcome := range outcomes {
		if err := p.outcomes.PublishOutcome(ctx, events.NewOutcomeRecord(outcome)); err != nil {
			slog.Error("Failed to publish outcome",
				"event_id", outcome.EventID,
				"rule_id", outcome.RuleID,
				"error", err,
			)
		}
		if outcome.CreatedAlertID != "" {
			p.publishAlert(ctx, outcome.CreatedAlertID)
		}
	}
}

func (p *Processor) publishAlert(ctx context.Context, alertID string) {
	alert, err := p.alerts.GetAlert(ctx, alertID)
	if err != nil {
		slog.Error("Failed to load created alert for publication",
			"alert_id", alertID,
			"error", err,
		)
		return
	}
	if err := p.created.PublishAlert(ctx, events.NewAlertCreated(alert)); err != nil {
		slog.Error("Failed to publish created alert",
			"alert_id", alertID,
			"error", err,
		)
		return
	}
	slog.Info("Published created alert",
		"alert_id", alertID,
		"severity", alert.Severity,
	)
}
