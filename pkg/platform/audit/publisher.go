package audit

import (
	"context"
	"log/slog"

	"preclear/pkg/requestcontext"
)

// Publisher is the single entry point services use to emit events. It stamps
// request-scoped metadata, validates the entity enum, and applies the
// fail-closed/fail-open split between approvals and routine audits.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// EmitApproval persists an approval event synchronously. Failure propagates:
// an approval that cannot be recorded must fail the operation that caused it.
func (p *Publisher) EmitApproval(ctx context.Context, event ApprovalEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return p.store.AppendApproval(ctx, event)
}

// EmitAudit persists an audit event, logging but swallowing failures so a
// broken audit sink never blocks user traffic.
func (p *Publisher) EmitAudit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if err := event.Validate(); err != nil {
		p.logger.ErrorContext(ctx, "dropping invalid audit event",
			"entity", string(event.Entity),
			"action", event.Action,
			"error", err.Error(),
		)
		return
	}
	if err := p.store.AppendAudit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"entity", string(event.Entity),
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err.Error(),
		)
	}
}
