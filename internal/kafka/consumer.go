package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"wave-ticketing/internal/logger"
)

type Consumer struct {
	reader *kafka.Reader
	topic  string
	log    *logger.Logger
}

// NewConsumer creates a consumer for topic. An empty groupID reads the
// topic independently from the latest offset, so every instance sees every
// message.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	}
	if groupID == "" {
		cfg.StartOffset = kafka.LastOffset
	}
	return &Consumer{reader: kafka.NewReader(cfg), topic: topic, log: log}
}

// Start consumes until ctx is cancelled. Handler errors are logged and the
// message is skipped.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, value []byte) error) {
	c.log.LogKafka("CONSUME", c.topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.LogKafka("CONSUME", c.topic, "consumer stopped")
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", c.topic, err))
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Skipping message at %s/%d@%d: %v", c.topic, msg.Partition, msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
