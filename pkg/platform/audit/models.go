// Package audit captures approval and audit events for every tracked entity.
// Both logs are append-only: rows are never updated or deleted by normal
// operation. Events reference their subject through a polymorphic entity-type
// + entity-id pair rather than a foreign key, so any table can be logged
// against; the entity type is validated against the closed enum below at the
// application layer.
package audit

import (
	"time"

	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// Entity names a loggable entity type.
type Entity string

const (
	EntityShipment      Entity = "shipment"
	EntityUser          Entity = "user"
	EntityDocument      Entity = "shipment_document"
	EntityPayment       Entity = "payment"
	EntityRule          Entity = "import_export_rule"
	EntityChangeRequest Entity = "rule_change_request"
	EntityBrokerReview  Entity = "broker_review"
)

// validEntities is the single source of truth for loggable entity types.
var validEntities = map[Entity]bool{
	EntityShipment:      true,
	EntityUser:          true,
	EntityDocument:      true,
	EntityPayment:       true,
	EntityRule:          true,
	EntityChangeRequest: true,
	EntityBrokerReview:  true,
}

// IsValid checks if the entity is one of the supported enum values.
func (e Entity) IsValid() bool { return validEntities[e] }

// ApprovalAction classifies what an approver did.
type ApprovalAction string

const (
	ActionApprove        ApprovalAction = "approve"
	ActionReject         ApprovalAction = "reject"
	ActionRequestChanges ApprovalAction = "request_changes"
	ActionEscalate       ApprovalAction = "escalate"
)

// ApprovalEvent records one approval-chain action. Approval events are
// compliance-significant: emission is synchronous and fail-closed, so the
// operation that triggered the approval fails if the event cannot be
// persisted.
type ApprovalEvent struct {
	Entity        Entity
	EntityID      string
	ApproverID    id.UserID // zero for machine approvers
	ApproverRole  string    // "AI", "broker", "admin"
	Action        ApprovalAction
	PreviousState string
	NewState      string
	Comments      string
	Timestamp     time.Time
	RequestID     string
}

// AuditEvent records one mutating operation on a tracked entity. Audit events
// are operational: emission is fail-open, logged on error but never fatal to
// the triggering request.
type AuditEvent struct {
	Entity    Entity
	EntityID  string
	ActorID   id.UserID
	Action    string // "created", "updated", "deleted", "status_changed", ...
	Details   map[string]any
	ClientIP  string
	UserAgent string
	Timestamp time.Time
	RequestID string
}

// Validate enforces the closed entity enum before an event reaches a store.
func (e ApprovalEvent) Validate() error {
	if !e.Entity.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown approval entity type")
	}
	if e.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "approval action is required")
	}
	return nil
}

// Validate enforces the closed entity enum before an event reaches a store.
func (e AuditEvent) Validate() error {
	if !e.Entity.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown audit entity type")
	}
	if e.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "audit action is required")
	}
	return nil
}
