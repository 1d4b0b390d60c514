// Package outbox relays committed audit events from the transactional outbox
// table to Kafka. Publishing is at-least-once: a crash between produce and
// mark re-sends the event, and downstream consumers dedupe on event id.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer is the slice of the Kafka client the relay needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes pending entries.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger

	approvalTopic string
	auditTopic    string
	pollInterval  time.Duration
	batchSize     int
}

func NewRelay(db *sql.DB, producer Producer, approvalTopic, auditTopic string, logger *slog.Logger) *Relay {
	return &Relay{
		db:            db,
		producer:      producer,
		logger:        logger,
		approvalTopic: approvalTopic,
		auditTopic:    auditTopic,
		pollInterval:  2 * time.Second,
		batchSize:     100,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err.Error())
			}
		}
	}
}

type entry struct {
	id      uuid.UUID
	kind    string
	aggID   string
	payload []byte
}

// drain publishes up to batchSize pending entries oldest-first. FOR UPDATE
// SKIP LOCKED lets multiple relay instances share the table without double
// publishing inside a single polling cycle.
func (r *Relay) drain(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, kind, aggregate_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("select outbox: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.kind, &e.aggID, &e.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range entries {
		topic := r.auditTopic
		if e.kind == "approval" {
			topic = r.approvalTopic
		}
		if err := r.producer.Produce(ctx, topic, []byte(e.aggID), e.payload); err != nil {
			// Leave the row pending; the next cycle retries from here.
			return fmt.Errorf("publish outbox entry %s: %w", e.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = now() WHERE id = $1`, e.id,
		); err != nil {
			return fmt.Errorf("mark outbox entry %s: %w", e.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}
	return nil
}
