// Package domain holds shared identifier and enum types used across bounded
// contexts. Typed IDs prevent accidentally passing a shipment id where a user
// id is expected; all are uuid-backed and server-generated.
package domain

import (
	"github.com/google/uuid"

	dErrors "preclear/pkg/domain-errors"
)

// UserID identifies a user account.
type UserID uuid.UUID

// ShipmentID identifies a shipment aggregate.
type ShipmentID uuid.UUID

// DocumentID identifies an uploaded shipment document.
type DocumentID uuid.UUID

// RuleID identifies an import/export compliance rule.
type RuleID uuid.UUID

// ChangeRequestID identifies a rule change proposal.
type ChangeRequestID uuid.UUID

// PaymentID identifies a payment attempt.
type PaymentID uuid.UUID

// NotificationID identifies a per-user notification.
type NotificationID uuid.UUID

// parseID enforces the shared invariant: IDs must be well-formed, non-empty,
// non-nil UUIDs. Construct IDs via the Parse functions at trust boundaries;
// direct casting bypasses validation.
func parseID(s, what string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.NewField(dErrors.CodeInvalidInput, "id", "invalid "+what)
	}
	return u, nil
}

func NewUserID() UserID                   { return UserID(uuid.New()) }
func NewShipmentID() ShipmentID           { return ShipmentID(uuid.New()) }
func NewDocumentID() DocumentID           { return DocumentID(uuid.New()) }
func NewRuleID() RuleID                   { return RuleID(uuid.New()) }
func NewChangeRequestID() ChangeRequestID { return ChangeRequestID(uuid.New()) }
func NewPaymentID() PaymentID             { return PaymentID(uuid.New()) }
func NewNotificationID() NotificationID   { return NotificationID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseID(s, "user id")
	return UserID(u), err
}

// ParseShipmentID constructs a ShipmentID from external input.
func ParseShipmentID(s string) (ShipmentID, error) {
	u, err := parseID(s, "shipment id")
	return ShipmentID(u), err
}

// ParseDocumentID constructs a DocumentID from external input.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseID(s, "document id")
	return DocumentID(u), err
}

// ParseRuleID constructs a RuleID from external input.
func ParseRuleID(s string) (RuleID, error) {
	u, err := parseID(s, "rule id")
	return RuleID(u), err
}

// ParseChangeRequestID constructs a ChangeRequestID from external input.
func ParseChangeRequestID(s string) (ChangeRequestID, error) {
	u, err := parseID(s, "change request id")
	return ChangeRequestID(u), err
}

// ParsePaymentID constructs a PaymentID from external input.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseID(s, "payment id")
	return PaymentID(u), err
}

// ParseNotificationID constructs a NotificationID from external input.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseID(s, "notification id")
	return NotificationID(u), err
}

func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id ShipmentID) String() string      { return uuid.UUID(id).String() }
func (id DocumentID) String() string      { return uuid.UUID(id).String() }
func (id RuleID) String() string          { return uuid.UUID(id).String() }
func (id ChangeRequestID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string       { return uuid.UUID(id).String() }
func (id NotificationID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ShipmentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ChangeRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's text marshaling, so each ID type
// implements it explicitly; without these, JSON encoding would emit byte arrays.

func (id UserID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id *UserID) UnmarshalText(b []byte) error { return unmarshalInto((*uuid.UUID)(id), b) }

func (id ShipmentID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id *ShipmentID) UnmarshalText(b []byte) error { return unmarshalInto((*uuid.UUID)(id), b) }

func (id DocumentID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id *DocumentID) UnmarshalText(b []byte) error { return unmarshalInto((*uuid.UUID)(id), b) }

func (id RuleID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id *RuleID) UnmarshalText(b []byte) error { return unmarshalInto((*uuid.UUID)(id), b) }

func (id ChangeRequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ChangeRequestID) UnmarshalText(b []byte) error {
	return unmarshalInto((*uuid.UUID)(id), b)
}

func (id PaymentID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id *PaymentID) UnmarshalText(b []byte) error { return unmarshalInto((*uuid.UUID)(id), b) }

func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *NotificationID) UnmarshalText(b []byte) error {
	return unmarshalInto((*uuid.UUID)(id), b)
}

func unmarshalInto(dst *uuid.UUID, b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}
