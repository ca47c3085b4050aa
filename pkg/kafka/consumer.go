// Package kafka carries run-completion events over Kafka with
// segmentio/kafka-go. Event values travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	"github.com/segmentio/kafka-go"
)

// fetchBackoff spaces out retries while the broker is unavailable.
const fetchBackoff = time.Second

// MessageHandler processes one event. A returned error leaves the event
// uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer follows the run-event topic as part of a consumer group.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer joins cfg.ConsumerGroup on cfg.Topic. A group without committed
// offsets replays every retained run from the oldest.
func NewConsumer(cfg config.KafkaConfig, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "run-event-consumer", "topic", cfg.Topic, "group", cfg.ConsumerGroup),
		handler: handler,
	}
}

// Start follows the topic until ctx ends, which is a clean stop and returns
// nil. Events are committed once the handler accepts them. The caller closes
// the Consumer.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("following run events")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("stopped following run events", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetching run event", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "run_id", string(msg.Key))
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			log.Error("run event rejected", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("committing run event", "error", err)
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals an event value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding event value: %w", err)
	}
	return v, nil
}
