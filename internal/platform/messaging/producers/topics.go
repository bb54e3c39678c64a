package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// TopicAdmin is the part of kafka.Conn used to provision topics.
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic creates the topic when no partition of it can be read.
func ensureTopic(admin TopicAdmin, topic string, numPartitions, replicationFactor int, backoff time.Duration, logger *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Debug("Kafka topic exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		logger.Warn("Could not read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		if attempt < topicReadAttempts {
			time.Sleep(backoff)
		}
	}

	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	logger.Info("Created Kafka topic", "topic", topic, "partitions", cfg.NumPartitions)
	return nil
}

// dialAndEnsureTopic opens a short lived admin connection to provision topic.
func dialAndEnsureTopic(brokers, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(conn, topic, numPartitions, replicationFactor, topicReadBackoff, logger)
}
