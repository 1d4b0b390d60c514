// Package models defines the shipment aggregate, its child entities, and the
// lifecycle state machine. Status transitions are validated here, not in
// handlers, so every caller goes through the same transition table.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// Status is the shipment lifecycle state.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusPendingValidation  Status = "pending_validation"
	StatusRequiresResolution Status = "requires_resolution"
	StatusPreCleared         Status = "pre_cleared"
	StatusTokenGenerated     Status = "token_generated"
	StatusBooked             Status = "booked"
	StatusInTransit          Status = "in_transit"
	StatusDelivered          Status = "delivered"
	StatusCancelled          Status = "cancelled"
)

// transitions is the canonical state machine. A status maps to the set of
// states it may move to; terminal states map to nothing.
var transitions = map[Status][]Status{
	StatusDraft:              {StatusPendingValidation, StatusCancelled},
	StatusPendingValidation:  {StatusPreCleared, StatusRequiresResolution, StatusCancelled},
	StatusRequiresResolution: {StatusPendingValidation, StatusCancelled},
	StatusPreCleared:         {StatusTokenGenerated, StatusRequiresResolution, StatusCancelled},
	StatusTokenGenerated:     {StatusBooked, StatusCancelled},
	StatusBooked:             {StatusInTransit, StatusCancelled},
	StatusInTransit:          {StatusDelivered, StatusCancelled},
	StatusDelivered:          nil,
	StatusCancelled:          nil,
}

// ParseStatus validates a status string at a trust boundary.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := transitions[status]; !ok {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "status", "unknown status")
	}
	return status, nil
}

// IsValid reports whether the status is one of the lifecycle states.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether the move from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Mode is the transport mode.
type Mode string

const (
	ModeAir    Mode = "Air"
	ModeSea    Mode = "Sea"
	ModeGround Mode = "Ground"
)

var validModes = map[Mode]bool{ModeAir: true, ModeSea: true, ModeGround: true}

// ParseMode validates a transport mode string.
func ParseMode(s string) (Mode, error) {
	if !validModes[Mode(s)] {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "mode", "mode must be Air, Sea or Ground")
	}
	return Mode(s), nil
}

// ShipmentType distinguishes domestic from cross-border shipments.
type ShipmentType string

const (
	TypeDomestic      ShipmentType = "Domestic"
	TypeInternational ShipmentType = "International"
)

var validShipmentTypes = map[ShipmentType]bool{TypeDomestic: true, TypeInternational: true}

// ParseShipmentType validates a shipment type string.
func ParseShipmentType(s string) (ShipmentType, error) {
	if !validShipmentTypes[ShipmentType(s)] {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "shipmentType", "shipmentType must be Domestic or International")
	}
	return ShipmentType(s), nil
}

// Shipment is the aggregate root. RowVersion backs the compare-and-swap used
// by every mutating operation; it starts at 1 and increments on each update.
type Shipment struct {
	ID            id.ShipmentID
	ReferenceID   string
	Name          string
	Mode          Mode
	ShipmentType  ShipmentType
	Carrier       string
	Status        Status
	PreclearToken string
	CreatedBy     *id.UserID
	RowVersion    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApplyTransition moves the shipment to next after checking the transition
// table. Invariant: a preclear token is set if and only if the lifecycle has
// reached token_generated.
func (s *Shipment) ApplyTransition(next Status, now time.Time) error {
	if !next.IsValid() {
		return dErrors.NewField(dErrors.CodeInvalidInput, "status", "unknown status")
	}
	if !s.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot move shipment from "+s.Status.String()+" to "+next.String())
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// Touch refreshes UpdatedAt. Idempotent for equal timestamps.
func (s *Shipment) Touch(now time.Time) {
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// NewReferenceID generates a shipment reference: "REF-" followed by 12
// uppercase hex characters.
func NewReferenceID() string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return "REF-" + strings.ToUpper(hex.EncodeToString(buf))
}
