package handler

import (
	"time"

	"preclear/internal/rules/models"
	"preclear/internal/rules/service"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

type ruleBody struct {
	RequiresDocument string `json:"requiresDocument,omitempty"`
	Restricted       bool   `json:"restricted,omitempty"`
	Message          string `json:"message"`
}

func (b ruleBody) toModel() models.Body {
	return models.Body{
		RequiresDocument: b.RequiresDocument,
		Restricted:       b.Restricted,
		Message:          b.Message,
	}
}

type ruleRequest struct {
	Code          string     `json:"code"`
	Country       string     `json:"country,omitempty"`
	HSPrefix      string     `json:"hsPrefix,omitempty"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	Body          *ruleBody  `json:"body"`
}

func (r ruleRequest) toInput() (service.RuleInput, error) {
	if r.Body == nil {
		return service.RuleInput{}, dErrors.NewField(dErrors.CodeInvalidInput, "body", "rule body is required")
	}
	input := service.RuleInput{
		Code:        r.Code,
		Country:     r.Country,
		HSPrefix:    r.HSPrefix,
		EffectiveTo: r.EffectiveTo,
		Body:        r.Body.toModel(),
	}
	if r.EffectiveFrom != nil {
		input.EffectiveFrom = *r.EffectiveFrom
	}
	return input, nil
}

type proposeRequest struct {
	RuleCode      string   `json:"ruleCode"`
	Country       string   `json:"country,omitempty"`
	HSPrefix      string   `json:"hsPrefix,omitempty"`
	Proposed      ruleBody `json:"proposed"`
	Justification string   `json:"justification"`
}

func (r proposeRequest) toInput() service.ProposeInput {
	return service.ProposeInput{
		RuleCode:      r.RuleCode,
		Country:       r.Country,
		HSPrefix:      r.HSPrefix,
		Proposed:      r.Proposed.toModel(),
		Justification: r.Justification,
	}
}

type decideRequest struct {
	Status   string `json:"status"`
	Comments string `json:"comments,omitempty"`
}

type ruleResponse struct {
	ID            id.RuleID  `json:"id"`
	Code          string     `json:"code"`
	Country       string     `json:"country,omitempty"`
	HSPrefix      string     `json:"hsPrefix,omitempty"`
	Version       int        `json:"version"`
	Active        bool       `json:"active"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	Body          ruleBody   `json:"body"`
	CreatedBy     *id.UserID `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func fromRule(r models.Rule) ruleResponse {
	return ruleResponse{
		ID:            r.ID,
		Code:          r.Code,
		Country:       r.Country,
		HSPrefix:      r.HSPrefix,
		Version:       r.Version,
		Active:        r.Active,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		Body: ruleBody{
			RequiresDocument: r.Body.RequiresDocument,
			Restricted:       r.Body.Restricted,
			Message:          r.Body.Message,
		},
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type changeRequestResponse struct {
	ID               id.ChangeRequestID `json:"id"`
	RuleCode         string             `json:"ruleCode"`
	Country          string             `json:"country,omitempty"`
	HSPrefix         string             `json:"hsPrefix,omitempty"`
	Proposed         ruleBody           `json:"proposed"`
	Justification    string             `json:"justification,omitempty"`
	Status           string             `json:"status"`
	RequestedBy      *id.UserID         `json:"requestedBy,omitempty"`
	DecidedBy        *id.UserID         `json:"decidedBy,omitempty"`
	DecisionComments string             `json:"decisionComments,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	DecidedAt        *time.Time         `json:"decidedAt,omitempty"`
}

func fromChangeRequest(c models.ChangeRequest) changeRequestResponse {
	return changeRequestResponse{
		ID:       c.ID,
		RuleCode: c.RuleCode,
		Country:  c.Country,
		HSPrefix: c.HSPrefix,
		Proposed: ruleBody{
			RequiresDocument: c.Proposed.RequiresDocument,
			Restricted:       c.Proposed.Restricted,
			Message:          c.Proposed.Message,
		},
		Justification:    c.Justification,
		Status:           string(c.Status),
		RequestedBy:      c.RequestedBy,
		DecidedBy:        c.DecidedBy,
		DecisionComments: c.DecisionComments,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		DecidedAt:        c.DecidedAt,
	}
}
