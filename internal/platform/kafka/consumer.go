package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic record handed to consumer handlers.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes one consumed message. Returning an error leaves the
// offset uncommitted so the message is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer reads audit topics within a consumer group and dispatches each
// record to a handler.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewConsumer joins the group and subscribes to the given topics.
func NewConsumer(brokers []string, group string, topics []string, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until the context is cancelled. Offsets commit only after the
// handler succeeds, so a crash replays unprocessed records.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err.Error(),
			)
		})

		var failed bool
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			msg := &Message{Topic: record.Topic, Key: record.Key, Value: record.Value}
			if err := handler.Handle(ctx, msg); err != nil {
				failed = true
				c.logger.ErrorContext(ctx, "handler failed, leaving offset uncommitted",
					"topic", record.Topic,
					"error", err.Error(),
				)
			}
		})
		if !failed {
			if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
				c.logger.ErrorContext(ctx, "offset commit failed", "error", err.Error())
			}
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
