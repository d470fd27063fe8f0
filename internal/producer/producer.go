// Package producer publishes matched CloudTrail events to a Kafka topic
// for downstream pipelines. The tee is strictly best effort; the caller
// logs publish failures and keeps notifying.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/events"
)

// writeTimeout is the maximum time to wait for a Kafka write operation.
const writeTimeout = 10 * time.Second

// Producer wraps a Kafka writer publishing matched events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Kafka producer for the matched-event topic. Writes
// are synchronous with leader acks, so a returned nil error from Publish
// means the broker accepted the message.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Best effort; a missing topic may still need manual creation.
	createTopicIfNotExists(brokerList[0], topic)

	// Hash balancer partitions by message key, account ID here, so one
	// account's events stay ordered within a partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// createTopicIfNotExists attempts to create the topic if it doesn't exist.
// Failures are logged and never prevent producer creation.
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
		slog.Debug("Topic already exists",
			"topic", topic,
			"partitions", len(partitions),
		)
		return
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}

	if err := conn.CreateTopics(topicConfig); err != nil {
		slog.Warn("Could not create topic",
			"topic", topic,
			"error", err,
			"tip", "create it manually: kafka-topics --create --topic "+topic,
		)
		return
	}

	slog.Info("Created topic",
		"topic", topic,
		"partitions", 3,
	)
}

// Publish serializes one matched event to JSON and writes it to Kafka,
// keyed by account ID so the Hash balancer keeps an account on one
// partition. Events without an account are keyed by notification ID.
func (p *Producer) Publish(ctx context.Context, matched *events.MatchedEvent) error {
	payload, err := json.Marshal(matched)
	if err != nil {
		return fmt.Errorf("marshaling matched event: %w", err)
	}

	key := matched.AccountID
	if key == "" {
		key = matched.NotificationID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "notification_id", Value: []byte(matched.NotificationID)},
			{Key: "event_name", Value: []byte(matched.EventName)},
		},
	}
	// CloudTrail timestamps the event; carry it onto the message when it
	// parses, otherwise kafka-go stamps the write time.
	if ts, err := time.Parse(time.RFC3339, matched.EventTime); err == nil {
		msg.Time = ts
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing matched event to kafka: %w", err)
	}

	slog.Debug("Published matched event",
		"notification_id", matched.NotificationID,
		"topic", p.topic,
		"key", key,
	)
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
