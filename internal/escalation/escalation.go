// Package escalation hands unacknowledged-alert escalation off to the
// scheduling service over Kafka. The engine runs no timers itself; it
// publishes a request at alert-creation time and the downstream service
// owns the countdown.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	kafkautil "alertcore/internal/kafka"
)

// Request is the wire record published to the escalation topic.
type Request struct {
	AlertID       string `json:"alert_id"`
	SchemaVersion int    `json:"schema_version"`
	EscalateAtTS  int64  `json:"escalate_at_ts"`
	Policy        string `json:"policy,omitempty"`
}

// Producer publishes escalation requests.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates an escalation request producer.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkautil.ParseBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: writer, topic: topic}, nil
}

// Schedule publishes an escalation request for the alert, due after the
// given delay.
func (p *Producer) Schedule(ctx context.Context, alertID string, escalateAfter time.Duration, policy string) error {
	req := Request{
		AlertID:       alertID,
		SchemaVersion: 1,
		EscalateAtTS:  time.Now().Add(escalateAfter).Unix(),
		Policy:        policy,
	}
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation request: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(alertID),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish escalation request: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
