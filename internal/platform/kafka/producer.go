// Package kafka wraps the franz-go client for the audit event pipeline.
// Producers publish outbox rows; consumers materialize them into query tables.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records synchronously. The outbox worker is the only
// caller, so throughput needs are modest and delivery confirmation matters
// more than batching.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the brokers and ensures the given topics exist.
func NewProducer(ctx context.Context, brokers []string, topics ...string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}

	if err := ensureTopics(ctx, client, topics); err != nil {
		client.Close()
		return nil, err
	}
	return &Producer{client: client}, nil
}

// Produce publishes one record and blocks until the broker acknowledges it.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}

// ensureTopics creates missing topics with a single partition. Replication is
// left to broker defaults; partitioning by aggregate is unnecessary because
// the materializer is idempotent.
func ensureTopics(ctx context.Context, client *kgo.Client, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	adm := kadm.NewClient(client)
	existing, err := adm.ListTopics(ctx, topics...)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	var missing []string
	for _, topic := range topics {
		if !existing.Has(topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if _, err := adm.CreateTopics(ctx, 1, -1, nil, missing...); err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	return nil
}
