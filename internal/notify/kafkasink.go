package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	kafkautil "alertcore/internal/kafka"
	"alertcore/internal/model"
)

// KafkaSender hands alerts to a downstream delivery service over Kafka.
// The recipient is the topic name; one message per alert, keyed by
// alert id.
type KafkaSender struct {
	writer *kafka.Writer
}

// NewKafkaSender creates a Kafka-backed channel sender. The writer has
// no fixed topic; each Send names its own.
func NewKafkaSender(brokers string) (*KafkaSender, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkautil.ParseBrokers(brokers)...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaSender{writer: writer}, nil
}

// Type returns the channel this sender handles.
func (s *KafkaSender) Type() string {
	return "kafka"
}

// Send publishes the alert payload to the recipient topic.
func (s *KafkaSender) Send(ctx context.Context, recipient string, alert *model.Alert) error {
	if recipient == "" {
		return fmt.Errorf("kafka topic is required")
	}

	body, err := json.Marshal(buildWebhookPayload(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	msg := kafka.Message{
		Topic: recipient,
		Key:   []byte(alert.ID),
		Value: body,
		Time:  time.Now(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification to Kafka: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
