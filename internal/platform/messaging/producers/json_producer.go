package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// JSONProducer publishes values as JSON to one topic. Wallet events and
// balance notifications each get their own instance.
type JSONProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewJSONProducer ensures the topic exists and returns a synchronous producer:
// Publish returns only once the brokers acknowledged the message, which the
// outbox relies on before marking a row processed.
func NewJSONProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*JSONProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	logger = logger.With("topic", topic)
	if err := dialAndEnsureTopic(cfg.Brokers, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s exists: %w", topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return newJSONProducer(logger, writer, topic), nil
}

func newJSONProducer(logger *slog.Logger, writer KafkaWriter, topic string) *JSONProducer {
	return &JSONProducer{logger: logger, writer: writer, topic: topic}
}

// Publish writes value under key. Messages with the same key land on the same
// partition, so events of one wallet stay ordered.
func (p *JSONProducer) Publish(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message for topic %s: %w", p.topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message", "key", key, "error", err)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published message", "key", key)
	return nil
}

func (p *JSONProducer) Close() error {
	p.logger.Info("Closing Kafka producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
