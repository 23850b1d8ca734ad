// Package producer provides Kafka producer functionality for the
// alerts.created and engine.outcomes topics.
package producer

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
)

// Producer wraps a Kafka writer and publishes engine output records.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer with the specified brokers
// and topic. The producer is configured for at-least-once delivery
// semantics with synchronous writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	createTopicIfNotExists(brokerList[0], topic)

	// Hash balancer keys partitions by the message key so records for one
	// alert or event stay ordered within a partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne, // at-least-once, waits for leader ack
		Async:        false,            // synchronous writes for error handling
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// createTopicIfNotExists attempts to create the topic if it doesn't
// exist. Best effort; failures are logged but don't prevent producer
// creation.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}
	if err := conn.CreateTopics(topicConfig); err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}

	slog.Info("Created topic",
		"topic", topic,
		"partitions", 3,
	)
}

// PublishAlert serializes an alert-created record and publishes it,
// keyed by alert id.
func (p *Producer) PublishAlert(ctx context.Context, rec *events.AlertCreated) error {
	return p.publish(ctx, rec.AlertID, rec, time.Unix(rec.CreatedTS, 0), []kafka.Header{
		{Key: "schema_version", Value: []byte(strconv.Itoa(rec.SchemaVersion))},
		{Key: "alert_id", Value: []byte(rec.AlertID)},
	})
}

// PublishOutcome serializes an evaluation outcome record and publishes
// it, keyed by event id so all outcomes for one event share a partition.
func (p *Producer) PublishOutcome(ctx context.Context, rec *events.OutcomeRecord) error {
	return p.publish(ctx, rec.EventID, rec, time.Now(), []kafka.Header{
		{Key: "schema_version", Value: []byte(strconv.Itoa(rec.SchemaVersion))},
		{Key: "event_id", Value: []byte(rec.EventID)},
		{Key: "rule_id", Value: []byte(rec.RuleID)},
	})
}

func (p *Producer) publish(ctx context.Context, key string, payload any, ts time.Time, headers []kafka.Header) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    ts,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"key", key,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
