// Package models defines versioned import/export rules and the proposal
// workflow that changes them. A rule code identifies a rule across versions;
// exactly one version of a code is active at a time.
package models

import (
	"time"

	"preclear/internal/compliance"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// Body is the structured rule payload. It is persisted as a jsonb column and
// validated only here, at the application boundary.
type Body struct {
	RequiresDocument string `json:"requiresDocument,omitempty"`
	Restricted       bool   `json:"restricted,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Rule is one version of an import/export compliance rule, keyed by
// destination country and HS code prefix. Empty Country or HSPrefix means
// "applies to all".
type Rule struct {
	ID            id.RuleID
	Code          string
	Country       string
	HSPrefix      string
	Version       int
	Active        bool
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Body          Body
	CreatedBy     *id.UserID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the structural invariants of a rule version.
func (r *Rule) Validate() error {
	if r.Code == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "code", "rule code is required")
	}
	if r.Body.Message == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "message", "rule message is required")
	}
	if !r.Body.Restricted && r.Body.RequiresDocument == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "requiresDocument",
			"a rule must either restrict or require a document")
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		return dErrors.NewField(dErrors.CodeInvalidInput, "effectiveTo", "effectiveTo must be after effectiveFrom")
	}
	return nil
}

// InEffect reports whether the version applies at the given instant.
func (r *Rule) InEffect(at time.Time) bool {
	if !r.Active || at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || at.Before(*r.EffectiveTo)
}

// ToEvaluatorRule compiles the stored row into the evaluator's shape.
func (r *Rule) ToEvaluatorRule() compliance.Rule {
	return compliance.Rule{
		Code:             r.Code,
		Country:          r.Country,
		HSPrefix:         r.HSPrefix,
		RequiresDocument: r.Body.RequiresDocument,
		Restricted:       r.Body.Restricted,
		Message:          r.Body.Message,
	}
}

// ChangeRequestStatus is the proposal workflow state.
type ChangeRequestStatus string

const (
	ChangePending      ChangeRequestStatus = "pending"
	ChangeApproved     ChangeRequestStatus = "approved"
	ChangeRejected     ChangeRequestStatus = "rejected"
	ChangeNeedsChanges ChangeRequestStatus = "needs_changes"
)

var validChangeStatuses = map[ChangeRequestStatus]bool{
	ChangePending: true, ChangeApproved: true, ChangeRejected: true, ChangeNeedsChanges: true,
}

// ParseChangeRequestStatus validates a workflow state string.
func ParseChangeRequestStatus(s string) (ChangeRequestStatus, error) {
	if !validChangeStatuses[ChangeRequestStatus(s)] {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "status", "unknown change request status")
	}
	return ChangeRequestStatus(s), nil
}

// ChangeRequest proposes a new version of a rule code. Approval publishes the
// proposed body as the next active version; needs_changes sends it back to
// the proposer, who resubmits into pending.
type ChangeRequest struct {
	ID               id.ChangeRequestID
	RuleCode         string
	Country          string
	HSPrefix         string
	Proposed         Body
	Justification    string
	Status           ChangeRequestStatus
	RequestedBy      *id.UserID
	DecidedBy        *id.UserID
	DecisionComments string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DecidedAt        *time.Time
}

// Validate checks the structural invariants of a proposal.
func (c *ChangeRequest) Validate() error {
	if c.RuleCode == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "ruleCode", "rule code is required")
	}
	if c.Justification == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "justification", "justification is required")
	}
	probe := Rule{Code: c.RuleCode, Body: c.Proposed}
	return probe.Validate()
}

// CanDecide reports whether the proposal is still open for a verdict.
func (c *ChangeRequest) CanDecide() bool {
	return c.Status == ChangePending
}
