package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. Returning nil commits the offset.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// kafkaReader is the part of kafka.Reader the consumer needs.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads one topic as part of the configured consumer group.
type KafkaConsumer struct {
	reader       kafkaReader
	topic        string
	groupID      string
	retryBackoff time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string, m *metrics.Metrics) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	})
	return newKafkaConsumer(logger, reader, topic, cfg.ConsumerGroup, m)
}

func newKafkaConsumer(logger *slog.Logger, reader kafkaReader, topic, groupID string, m *metrics.Metrics) *KafkaConsumer {
	return &KafkaConsumer{
		reader:       reader,
		topic:        topic,
		groupID:      groupID,
		retryBackoff: time.Second,
		metrics:      m,
		logger:       logger.With("topic", topic, "group_id", groupID),
	}
}

// Subscribe starts consuming in the background until ctx is canceled.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic")
	go c.consume(ctx, handler)
	return nil
}

// consume fetches, handles and commits messages one at a time. A failed
// message is not committed, so the group redelivers it after a rebalance or
// restart; handlers park poison messages in the DLQ and return nil instead.
func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("Context canceled, stopping consumer")
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer")
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryBackoff):
			}
			continue
		}

		logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		logger.Debug("Received message from Kafka")

		processingErr := handler(ctx, msg.Key, msg.Value)
		c.metrics.ObserveMessage(c.topic, processingErr)
		if processingErr != nil {
			logger.Error("Failed to process message, will not commit offset", "error", processingErr)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("Failed to commit message after successful processing", "error", err)
			continue
		}
		logger.Debug("Message committed successfully")
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
