// Package rulechange consumes rule.changed notifications, records them
// in the audit log, and triggers immediate rule reloads.
package rulechange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"alertcore/internal/events"
	kafkautil "alertcore/internal/kafka"
	"alertcore/internal/model"
)

// Consumer wraps a Kafka reader for consuming rule.changed events.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new rule.changed consumer.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kafkautil.ParseBrokers(brokers),
		Topic:          topic,
		GroupID:        groupID,
		MaxWait:        kafkautil.ReadTimeout,
		CommitInterval: kafkautil.CommitInterval,
		StartOffset:    kafka.LastOffset, // changes before startup are covered by the snapshot load
	})

	return &Consumer{reader: reader, topic: topic}, nil
}

// ReadMessage reads the next rule.changed event.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.RuleChanged, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	var rc events.RuleChanged
	if err := json.Unmarshal(msg.Value, &rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule.changed event: %w", err)
	}
	return &rc, nil
}

// Close gracefully closes the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing rule.changed consumer", "topic", c.topic)
	return c.reader.Close()
}

// AuditLog records rule lifecycle transitions.
type AuditLog interface {
	Append(ctx context.Context, entry model.AuditEntry) error
}

// Reloader triggers an immediate rule set reload.
type Reloader interface {
	ReloadNow(ctx context.Context) error
}

// Handler consumes rule.changed events, appends audit entries, and
// reloads the rule set.
type Handler struct {
	consumer *Consumer
	audit    AuditLog
	reload   Reloader
}

// NewHandler creates a new rule change handler.
func NewHandler(consumer *Consumer, audit AuditLog, reload Reloader) *Handler {
	return &Handler{consumer: consumer, audit: audit, reload: reload}
}

// Run consumes rule.changed events until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	slog.Info("Starting rule.changed event handler")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule.changed event handler stopped")
			return
		default:
			rc, err := h.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to read rule.changed event", "error", err)
				continue
			}
			h.handle(ctx, rc)
		}
	}
}

func (h *Handler) handle(ctx context.Context, rc *events.RuleChanged) {
	slog.Info("Received rule.changed event",
		"rule_id", rc.RuleID,
		"action", rc.Action,
		"version", rc.Version,
	)

	entry := model.AuditEntry{
		RuleID:    rc.RuleID,
		Action:    rc.AuditAction(),
		Actor:     rc.Actor,
		Timestamp: time.Unix(rc.UpdatedAt, 0).UTC(),
		Change: map[string]string{
			"version": strconv.Itoa(rc.Version),
		},
	}
	if err := h.audit.Append(ctx, entry); err != nil {
		slog.Error("Failed to append audit entry for rule change",
			"rule_id", rc.RuleID,
			"action", rc.Action,
			"error", err,
		)
	}

	// The authoring side has already updated the snapshot; polling will
	// catch up eventually if this reload fails.
	if err := h.reload.ReloadNow(ctx); err != nil {
		slog.Error("Failed to reload rules after rule.changed event",
			"rule_id", rc.RuleID,
			"error", err,
		)
		return
	}
	slog.Info("Rules reloaded after rule.changed event",
		"rule_id", rc.RuleID,
		"action", rc.Action,
	)
}
