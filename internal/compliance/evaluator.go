package compliance

import (
	"fmt"
	"strings"
)

// Evaluate screens the shipment against the HS classification table, the
// embargo list, and the active rule set. Deterministic: the same input always
// yields the same result.
//
// Verdict rules, in priority order:
//  1. any hard restriction (embargoed pair, restricted commodity) → Blocked
//  2. score below cutoff → NeedsDocuments
//  3. otherwise → Cleared
func Evaluate(input Input, cutoff int) Result {
	result := Result{Score: 100}
	present := make(map[string]bool, len(input.PresentDocuments))
	for _, doc := range input.PresentDocuments {
		present[doc] = true
	}

	if isEmbargoed(input.OriginCountry, input.DestinationCountry) {
		result.SanctionedCountry = true
		result.Restricted = true
		result.Findings = append(result.Findings, Finding{
			RuleCode: "SANCTION-PAIR",
			Severity: SeverityError,
			Message:  fmt.Sprintf("shipments from %s to %s are embargoed", input.OriginCountry, input.DestinationCountry),
			Details:  map[string]any{"origin": input.OriginCountry, "destination": input.DestinationCountry},
		})
		result.Score -= deductError
	}

	for _, item := range input.Items {
		cat, ok := lookupHS(item.HSCode)
		if !ok {
			if item.HSCode == "" {
				result.Findings = append(result.Findings, Finding{
					RuleCode:        "HS-MISSING",
					Severity:        SeverityWarning,
					Message:         fmt.Sprintf("item %q has no HS code", item.Description),
					SuggestedAction: "classify the item before clearance",
				})
				result.Score -= deductWarning
			}
			continue
		}

		result.DangerousGoods = result.DangerousGoods || cat.dangerousGoods
		result.LithiumBattery = result.LithiumBattery || cat.lithiumBattery
		result.FoodPharma = result.FoodPharma || cat.foodPharma
		result.ExportLicenseRequired = result.ExportLicenseRequired || cat.exportLicense
		if cat.eccn != "" && result.ECCN == "" {
			result.ECCN = cat.eccn
		}

		if cat.restricted {
			result.Restricted = true
			result.Findings = append(result.Findings, Finding{
				RuleCode:        "HS-RESTRICTED",
				Severity:        SeverityError,
				Message:         fmt.Sprintf("%s (HS %s) cannot be pre-cleared", cat.name, item.HSCode),
				SuggestedAction: "remove the restricted item or apply through a manual customs channel",
				Details:         map[string]any{"hs_code": item.HSCode},
			})
			result.Score -= deductError
			continue
		}

		if cat.requiredDocument != "" {
			if present[cat.requiredDocument] {
				result.Findings = append(result.Findings, Finding{
					RuleCode: "DOC-PRESENT",
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("%s on file for %s (HS %s)", cat.requiredDocument, cat.name, item.HSCode),
				})
				result.Score -= deductInfo
			} else {
				result.Findings = append(result.Findings, Finding{
					RuleCode:        "DOC-REQUIRED",
					Severity:        SeverityWarning,
					Message:         fmt.Sprintf("%s requires a %s document", cat.name, cat.requiredDocument),
					SuggestedAction: fmt.Sprintf("upload a %s document", cat.requiredDocument),
					MissingDocument: cat.requiredDocument,
					Details:         map[string]any{"hs_code": item.HSCode},
				})
				result.Score -= deductWarning
			}
		}
	}

	result = applyRules(result, input, present)

	if result.Score < 0 {
		result.Score = 0
	}

	switch {
	case result.Restricted || result.SanctionedCountry:
		result.Status = StatusBlocked
	case result.Score < cutoff:
		result.Status = StatusNeedsDocuments
	default:
		result.Status = StatusCleared
	}

	switch {
	case result.Status == StatusBlocked || result.Score < 60:
		result.RiskLevel = RiskHigh
	case result.Score < cutoff:
		result.RiskLevel = RiskMedium
	default:
		result.RiskLevel = RiskLow
	}
	return result
}

// applyRules evaluates the dynamic rule set on top of the static tables.
func applyRules(result Result, input Input, present map[string]bool) Result {
	dest := strings.ToUpper(input.DestinationCountry)
	for _, rule := range input.Rules {
		if rule.Country != "" && !strings.EqualFold(rule.Country, dest) {
			continue
		}
		matched := rule.HSPrefix == ""
		if !matched {
			prefix := strings.ReplaceAll(rule.HSPrefix, ".", "")
			for _, item := range input.Items {
				if strings.HasPrefix(strings.ReplaceAll(item.HSCode, ".", ""), prefix) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}

		switch {
		case rule.Restricted:
			result.Restricted = true
			result.Findings = append(result.Findings, Finding{
				RuleCode: rule.Code,
				Severity: SeverityError,
				Message:  ruleMessage(rule, "shipment matches a restricted rule"),
			})
			result.Score -= deductError
		case rule.RequiresDocument != "" && !present[rule.RequiresDocument]:
			result.Findings = append(result.Findings, Finding{
				RuleCode:        rule.Code,
				Severity:        SeverityWarning,
				Message:         ruleMessage(rule, fmt.Sprintf("a %s document is required", rule.RequiresDocument)),
				SuggestedAction: fmt.Sprintf("upload a %s document", rule.RequiresDocument),
				MissingDocument: rule.RequiresDocument,
			})
			result.Score -= deductWarning
		case rule.RequiresDocument == "":
			// advisory rule with no document requirement
			result.Findings = append(result.Findings, Finding{
				RuleCode: rule.Code,
				Severity: SeverityWarning,
				Message:  ruleMessage(rule, "shipment matches an active customs rule"),
			})
			result.Score -= deductWarning
		}
	}
	return result
}

func ruleMessage(rule Rule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fallback
}
