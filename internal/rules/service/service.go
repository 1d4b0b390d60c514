// Package service manages versioned import/export rules and the change
// request workflow over them. It also feeds the compliance evaluator: the
// ActiveRules method satisfies the shipment service's RuleProvider port.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"preclear/internal/compliance"
	"preclear/internal/rules/models"
	rulestore "preclear/internal/rules/store/rule"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

// TxRunner runs a function transactionally.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store  rulestore.Store
	audit  *audit.Publisher
	runner TxRunner
	logger *slog.Logger
}

func New(store rulestore.Store, auditPub *audit.Publisher, runner TxRunner, logger *slog.Logger) *Service {
	return &Service{store: store, audit: auditPub, runner: runner, logger: logger}
}

// RuleInput carries a new rule or rule version.
type RuleInput struct {
	Code          string
	Country       string
	HSPrefix      string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Body          models.Body
}

// CreateRule publishes a new version of a rule code directly, retiring any
// previously active versions. Direct creation is an admin shortcut; the
// change request workflow is the audited path.
func (s *Service) CreateRule(ctx context.Context, input RuleInput) (*models.Rule, error) {
	now := requestcontext.Now(ctx)

	r := &models.Rule{
		ID:            id.NewRuleID(),
		Code:          input.Code,
		Country:       input.Country,
		HSPrefix:      input.HSPrefix,
		Active:        true,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
		Body:          input.Body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if r.EffectiveFrom.IsZero() {
		r.EffectiveFrom = now
	}
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		r.CreatedBy = &actor
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		latest, err := s.store.LatestVersion(ctx, r.Code)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve rule version")
		}
		r.Version = latest + 1
		if err := s.store.DeactivateCode(ctx, r.Code, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not retire previous versions")
		}
		if err := s.store.CreateRule(ctx, r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "rule version already exists, retry")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not create rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityRule,
		EntityID: r.ID.String(),
		Action:   "created",
		Details:  map[string]any{"code": r.Code, "version": r.Version},
	})
	return r, nil
}

// GetRule loads one rule version.
func (s *Service) GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	r, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rule not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load rule")
	}
	return r, nil
}

// ListRules returns every stored version, newest first.
func (s *Service) ListRules(ctx context.Context) ([]models.Rule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list rules")
	}
	return rules, nil
}

// DeactivateRule retires one rule version.
func (s *Service) DeactivateRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	now := requestcontext.Now(ctx)

	r, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return r, nil
	}
	r.Active = false
	r.UpdatedAt = now
	if err := s.store.UpdateRule(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not deactivate rule")
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityRule,
		EntityID: r.ID.String(),
		Action:   "deactivated",
		Details:  map[string]any{"code": r.Code, "version": r.Version},
	})
	return r, nil
}

// ActiveRules compiles the rule set in effect right now for a destination.
// This is the shipment service's RuleProvider port.
func (s *Service) ActiveRules(ctx context.Context, destinationCountry string) ([]compliance.Rule, error) {
	rows, err := s.store.ActiveRules(ctx, destinationCountry, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load active rules")
	}
	out := make([]compliance.Rule, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToEvaluatorRule())
	}
	return out, nil
}

// ProposeInput carries a change request.
type ProposeInput struct {
	RuleCode      string
	Country       string
	HSPrefix      string
	Proposed      models.Body
	Justification string
}

// Propose opens a pending change request for a rule code.
func (s *Service) Propose(ctx context.Context, input ProposeInput) (*models.ChangeRequest, error) {
	now := requestcontext.Now(ctx)

	c := &models.ChangeRequest{
		ID:            id.NewChangeRequestID(),
		RuleCode:      input.RuleCode,
		Country:       input.Country,
		HSPrefix:      input.HSPrefix,
		Proposed:      input.Proposed,
		Justification: input.Justification,
		Status:        models.ChangePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		c.RequestedBy = &actor
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateChangeRequest(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create change request")
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityChangeRequest,
		EntityID: c.ID.String(),
		Action:   "created",
		Details:  map[string]any{"rule_code": c.RuleCode},
	})
	return c, nil
}

// GetChangeRequest loads one proposal.
func (s *Service) GetChangeRequest(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	c, err := s.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "change request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load change request")
	}
	return c, nil
}

// ListChangeRequests returns proposals, optionally filtered by status.
func (s *Service) ListChangeRequests(ctx context.Context, status models.ChangeRequestStatus) ([]models.ChangeRequest, error) {
	requests, err := s.store.ListChangeRequests(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list change requests")
	}
	return requests, nil
}

// Decide closes a pending proposal. Approval publishes the proposed body as
// the next active version of the rule code inside the same transaction; the
// approval log row makes the decision traceable.
func (s *Service) Decide(ctx context.Context, requestID id.ChangeRequestID, verdict models.ChangeRequestStatus, comments string) (*models.ChangeRequest, error) {
	now := requestcontext.Now(ctx)
	decider := requestcontext.UserID(ctx)

	switch verdict {
	case models.ChangeApproved, models.ChangeRejected, models.ChangeNeedsChanges:
	default:
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "status",
			"decision must be approved, rejected or needs_changes")
	}

	var c *models.ChangeRequest
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.GetChangeRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !c.CanDecide() {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"change request is already "+string(c.Status))
		}

		previous := c.Status
		c.Status = verdict
		c.DecisionComments = comments
		c.UpdatedAt = now
		c.DecidedAt = &now
		if !decider.IsNil() {
			c.DecidedBy = &decider
		}
		if err := s.store.UpdateChangeRequest(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not update change request")
		}

		action := audit.ActionReject
		switch verdict {
		case models.ChangeApproved:
			action = audit.ActionApprove
			if err := s.publishApproved(ctx, c, now); err != nil {
				return err
			}
		case models.ChangeNeedsChanges:
			action = audit.ActionRequestChanges
		}

		return s.audit.EmitApproval(ctx, audit.ApprovalEvent{
			Entity:        audit.EntityChangeRequest,
			EntityID:      c.ID.String(),
			ApproverID:    decider,
			ApproverRole:  requestcontext.Role(ctx).String(),
			Action:        action,
			PreviousState: string(previous),
			NewState:      string(verdict),
			Comments:      comments,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// publishApproved turns the proposal into the next active rule version.
func (s *Service) publishApproved(ctx context.Context, c *models.ChangeRequest, now time.Time) error {
	latest, err := s.store.LatestVersion(ctx, c.RuleCode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve rule version")
	}
	if err := s.store.DeactivateCode(ctx, c.RuleCode, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not retire previous versions")
	}
	r := &models.Rule{
		ID:            id.NewRuleID(),
		Code:          c.RuleCode,
		Country:       c.Country,
		HSPrefix:      c.HSPrefix,
		Version:       latest + 1,
		Active:        true,
		EffectiveFrom: now,
		Body:          c.Proposed,
		CreatedBy:     c.RequestedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateRule(ctx, r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not publish approved rule")
	}
	s.logger.InfoContext(ctx, "rule version published from change request",
		"rule_code", r.Code,
		"version", r.Version,
		"change_request_id", c.ID.String(),
	)
	return nil
}
