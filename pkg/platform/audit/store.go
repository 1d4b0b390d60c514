package audit

import "context"

// Store persists approval and audit events. Implementations are append-only;
// there are no update or delete operations by design.
type Store interface {
	AppendApproval(ctx context.Context, event ApprovalEvent) error
	AppendAudit(ctx context.Context, event AuditEvent) error
	ListApprovals(ctx context.Context, entity Entity, entityID string) ([]ApprovalEvent, error)
	ListAudits(ctx context.Context, entity Entity, entityID string) ([]AuditEvent, error)
}
