package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "preclear/pkg/domain"
	audit "preclear/pkg/platform/audit"
	txcontext "preclear/pkg/platform/tx"
)

// Store persists approval and audit events in PostgreSQL. Every append also
// writes a transactional outbox row so the relay can publish the event to
// Kafka without dual-write races: the log row and the outbox row commit or
// roll back together with the caller's transaction.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) AppendApproval(ctx context.Context, event audit.ApprovalEvent) error {
	eventID := uuid.New()
	var approverID any
	if !event.ApproverID.IsNil() {
		approverID = uuid.UUID(event.ApproverID)
	}

	query := `
		INSERT INTO approval_logs (
			id, entity, entity_id, approver_id, approver_role, action,
			previous_state, new_state, comments, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(event.Entity),
		event.EntityID,
		approverID,
		event.ApproverRole,
		string(event.Action),
		event.PreviousState,
		event.NewState,
		event.Comments,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert approval log: %w", err)
	}
	return s.appendOutbox(ctx, eventID, "approval", event.Entity, event.EntityID, event)
}

func (s *Store) AppendAudit(ctx context.Context, event audit.AuditEvent) error {
	eventID := uuid.New()
	var actorID any
	if !event.ActorID.IsNil() {
		actorID = uuid.UUID(event.ActorID)
	}
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, entity, entity_id, actor_id, action, details,
			client_ip, user_agent, request_id, performed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(event.Entity),
		event.EntityID,
		actorID,
		event.Action,
		details,
		event.ClientIP,
		event.UserAgent,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return s.appendOutbox(ctx, eventID, "audit", event.Entity, event.EntityID, event)
}

func (s *Store) appendOutbox(ctx context.Context, eventID uuid.UUID, kind string, entity audit.Entity, entityID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	query := `
		INSERT INTO audit_outbox (id, kind, aggregate_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		eventID, kind, string(entity), entityID, body,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) ListApprovals(ctx context.Context, entity audit.Entity, entityID string) ([]audit.ApprovalEvent, error) {
	query := `
		SELECT entity, entity_id, approver_id, approver_role, action,
			   previous_state, new_state, comments, request_id, created_at
		FROM approval_logs
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("list approval logs: %w", err)
	}
	defer rows.Close()

	var out []audit.ApprovalEvent
	for rows.Next() {
		var event audit.ApprovalEvent
		var entityStr, action string
		var approverID sql.Null[uuid.UUID]
		if err := rows.Scan(
			&entityStr, &event.EntityID, &approverID, &event.ApproverRole, &action,
			&event.PreviousState, &event.NewState, &event.Comments, &event.RequestID, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan approval log: %w", err)
		}
		event.Entity = audit.Entity(entityStr)
		event.Action = audit.ApprovalAction(action)
		if approverID.Valid {
			event.ApproverID = id.UserID(approverID.V)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *Store) ListAudits(ctx context.Context, entity audit.Entity, entityID string) ([]audit.AuditEvent, error) {
	query := `
		SELECT entity, entity_id, actor_id, action, details,
			   client_ip, user_agent, request_id, performed_at
		FROM audit_logs
		WHERE entity = $1 AND entity_id = $2
		ORDER BY performed_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []audit.AuditEvent
	for rows.Next() {
		var event audit.AuditEvent
		var entityStr string
		var actorID sql.Null[uuid.UUID]
		var details []byte
		if err := rows.Scan(
			&entityStr, &event.EntityID, &actorID, &event.Action, &details,
			&event.ClientIP, &event.UserAgent, &event.RequestID, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		event.Entity = audit.Entity(entityStr)
		if actorID.Valid {
			event.ActorID = id.UserID(actorID.V)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
