// Package compliance is the deterministic evaluator behind the "AI" screening
// step. It is pure domain logic: table lookups over HS codes, country pairs,
// and the active rule set. No I/O, no side effects, no learned models.
package compliance

// AiStatus is the verdict label attached to a shipment's compliance record.
type AiStatus string

const (
	StatusCleared        AiStatus = "Cleared"
	StatusNeedsDocuments AiStatus = "NeedsDocuments"
	StatusBlocked        AiStatus = "Blocked"
)

// RiskLevel buckets the evaluated risk for broker triage.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Severity grades an individual finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Item is the evaluator's view of one shipment line item.
type Item struct {
	HSCode          string
	Description     string
	CountryOfOrigin string
	Quantity        float64
	TotalValue      float64
}

// Rule is a compiled import/export rule. The rules context converts stored
// rule rows into this shape before evaluation.
type Rule struct {
	Code             string
	Country          string // destination country the rule applies to, empty = all
	HSPrefix         string // HS code prefix the rule applies to, empty = all
	RequiresDocument string // document type that must be present
	Restricted       bool   // hard block when matched
	Message          string
}

// Input carries everything one evaluation needs.
type Input struct {
	Items              []Item
	OriginCountry      string
	DestinationCountry string
	// PresentDocuments lists the document types already uploaded for the
	// shipment, so "needs documents" findings can be suppressed once the
	// paperwork arrives.
	PresentDocuments []string
	Rules            []Rule
}

// Finding is one concrete compliance observation. MissingDocument names the
// document type whose absence caused the finding, when that is the cause.
type Finding struct {
	RuleCode        string
	Severity        Severity
	Message         string
	SuggestedAction string
	MissingDocument string
	Details         map[string]any
}

// Result is the full evaluation verdict.
type Result struct {
	Status                AiStatus
	RiskLevel             RiskLevel
	Score                 int
	DangerousGoods        bool
	LithiumBattery        bool
	FoodPharma            bool
	ExportLicenseRequired bool
	Restricted            bool
	SanctionedCountry     bool
	ECCN                  string
	Findings              []Finding
}
