package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wallet-ledger/internal/config"
	"github.com/wallet-ledger/internal/domain/shared"
)

// SettlementProducer publishes settlement messages to a single topic. Deposits
// and transfers each get their own instance so the queue binding is fixed at
// construction time, not decided per publish.
type SettlementProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewSettlementProducer creates a producer bound to topic and ensures the
// topic exists
func NewSettlementProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*SettlementProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka settlement topic is not configured")
	}

	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for settlement producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s exists for settlement producer: %w", topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false, // Synchronous so the caller learns about publish failures
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write settlement messages", "topic", topic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote settlement messages", "topic", topic, "count", len(messages))
			}
		},
	}

	return &SettlementProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes value and writes it to the producer's topic. The key
// should be the correlation id so that all redeliveries of one saga land on
// the same partition.
func (p *SettlementProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish settlement message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("%w: topic %s: %v", shared.ErrQueuePublish, p.topic, err)
	}

	p.logger.Debug("Published settlement message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *SettlementProducer) Close() error {
	p.logger.Info("Closing settlement Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close settlement kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
