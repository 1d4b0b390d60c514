package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/requestcontext"
)

// RequestAiEvaluation runs the compliance evaluator synchronously, persists
// the verdict and findings, and advances the shipment to pre_cleared or
// requires_resolution. Allowed from draft, pending_validation and
// requires_resolution; a re-run replaces the compliance record and appends
// fresh findings.
func (s *Service) RequestAiEvaluation(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error) {
	ctx, span := s.tracer.Start(ctx, "shipment.RequestAiEvaluation")
	defer span.End()
	span.SetAttributes(attribute.String("shipment.id", shipmentID.String()))

	now := requestcontext.Now(ctx)
	started := time.Now()

	var result compliance.Result
	var detail *models.ShipmentDetail
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		switch detail.Status {
		case models.StatusDraft, models.StatusPendingValidation, models.StatusRequiresResolution:
		default:
			return dErrors.New(dErrors.CodeInvalidTransition,
				"shipment in status "+detail.Status.String()+" cannot be evaluated")
		}

		input, err := s.buildInput(ctx, detail)
		if err != nil {
			return err
		}
		result = s.evaluator.Evaluate(input, s.cfg.AiScoreCutoff)

		record := &models.ComplianceRecord{
			ShipmentID:            detail.ID,
			DangerousGoods:        result.DangerousGoods,
			LithiumBattery:        result.LithiumBattery,
			FoodPharma:            result.FoodPharma,
			ExportLicenseRequired: result.ExportLicenseRequired,
			Restricted:            result.Restricted,
			SanctionedCountry:     result.SanctionedCountry,
			ECCN:                  result.ECCN,
			RiskLevel:             result.RiskLevel,
			AiScore:               result.Score,
			AiStatus:              result.Status,
			AiNotes:               map[string]any{"finding_count": len(result.Findings)},
			EvaluatedAt:           now,
		}
		if err := s.store.UpsertCompliance(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not save compliance record")
		}

		findings := make([]models.Finding, 0, len(result.Findings))
		for _, f := range result.Findings {
			findings = append(findings, models.Finding{
				ID:              uuid.New(),
				ShipmentID:      detail.ID,
				RuleCode:        f.RuleCode,
				Severity:        f.Severity,
				Message:         f.Message,
				SuggestedAction: f.SuggestedAction,
				MissingDocument: f.MissingDocument,
				Details:         f.Details,
				CreatedAt:       now,
			})
		}
		if err := s.store.AppendFindings(ctx, findings); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not save findings")
		}

		sh := detail.Shipment
		expected := sh.RowVersion
		previous := sh.Status

		// the verdict states are reachable from pending_validation only
		if sh.Status != models.StatusPendingValidation {
			if err := sh.ApplyTransition(models.StatusPendingValidation, now); err != nil {
				return err
			}
		}
		verdict := models.StatusPreCleared
		action := audit.ActionApprove
		if result.Status != compliance.StatusCleared {
			verdict = models.StatusRequiresResolution
			action = audit.ActionReject
		}
		if err := sh.ApplyTransition(verdict, now); err != nil {
			return err
		}
		if err := s.writeShipment(ctx, &sh, expected); err != nil {
			return err
		}
		s.metrics.Transitions.WithLabelValues(previous.String(), sh.Status.String()).Inc()

		detail.Shipment = sh
		detail.Compliance = record
		detail.Findings = append(detail.Findings, findings...)

		return s.audit.EmitApproval(ctx, audit.ApprovalEvent{
			Entity:        audit.EntityShipment,
			EntityID:      detail.ID.String(),
			ApproverRole:  "AI",
			Action:        action,
			PreviousState: previous.String(),
			NewState:      sh.Status.String(),
			Comments:      "score " + strconv.Itoa(result.Score) + ", verdict " + string(result.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Evaluations.WithLabelValues(string(result.Status)).Inc()
	s.metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.Int("evaluation.score", result.Score),
		attribute.String("evaluation.status", string(result.Status)),
	)
	s.logger.InfoContext(ctx, "shipment evaluated",
		"shipment_id", shipmentID.String(),
		"score", result.Score,
		"status", string(result.Status),
		"findings", len(result.Findings),
	)
	return detail, nil
}

// buildInput assembles the evaluator input from the aggregate: line items,
// origin/destination from the party list, uploaded document types, and the
// active dynamic rules for the destination.
func (s *Service) buildInput(ctx context.Context, detail *models.ShipmentDetail) (compliance.Input, error) {
	input := compliance.Input{}
	for _, item := range detail.Items {
		input.Items = append(input.Items, compliance.Item{
			HSCode:          item.HSCode,
			Description:     item.Description,
			CountryOfOrigin: item.CountryOfOrigin,
			Quantity:        item.Quantity,
			TotalValue:      item.TotalValue,
		})
	}
	if shipper := detail.PartyByType(models.PartyShipper); shipper != nil {
		input.OriginCountry = shipper.CountryCode
	}
	if consignee := detail.PartyByType(models.PartyConsignee); consignee != nil {
		input.DestinationCountry = consignee.CountryCode
	}
	seen := map[string]bool{}
	for _, doc := range detail.Documents {
		docType := string(doc.DocumentType)
		if !seen[docType] {
			seen[docType] = true
			input.PresentDocuments = append(input.PresentDocuments, docType)
		}
	}
	if s.rules != nil {
		rules, err := s.rules.ActiveRules(ctx, input.DestinationCountry)
		if err != nil {
			return compliance.Input{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load active rules")
		}
		input.Rules = rules
	}
	return input, nil
}
