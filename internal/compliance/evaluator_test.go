package compliance

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type EvaluatorSuite struct {
	suite.Suite
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

const cutoff = 90

// TestCleanShipment verifies that unremarkable electronics clear without
// deductions.
func (s *EvaluatorSuite) TestCleanShipment() {
	result := Evaluate(Input{
		Items:              []Item{{Description: "Solar diodes", HSCode: "8541.10", Quantity: 100}},
		OriginCountry:      "US",
		DestinationCountry: "DE",
	}, cutoff)

	s.Equal(StatusCleared, result.Status)
	s.Equal(100, result.Score)
	s.Equal(RiskLow, result.RiskLevel)
	s.Equal("3A001", result.ECCN)
	s.False(result.Restricted)
	s.False(result.SanctionedCountry)
}

// TestMissingDocument verifies the score drop and finding shape when a
// required document is absent.
func (s *EvaluatorSuite) TestMissingDocument() {
	s.Run("lithium battery without SDS needs documents", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Li-ion cells", HSCode: "8507.60", Quantity: 20}},
			OriginCountry:      "CN",
			DestinationCountry: "US",
		}, cutoff)

		s.Equal(StatusNeedsDocuments, result.Status)
		s.Equal(85, result.Score)
		s.Equal(RiskMedium, result.RiskLevel)
		s.True(result.LithiumBattery)

		s.Require().NotEmpty(result.Findings)
		var found bool
		for _, f := range result.Findings {
			if f.MissingDocument == "SDS" {
				found = true
				s.Equal(SeverityWarning, f.Severity)
			}
		}
		s.True(found, "expected a finding naming the missing SDS")
	})

	s.Run("same shipment clears once SDS is on file", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Li-ion cells", HSCode: "8507.60", Quantity: 20}},
			OriginCountry:      "CN",
			DestinationCountry: "US",
			PresentDocuments:   []string{"SDS"},
		}, cutoff)

		s.Equal(StatusCleared, result.Status)
		s.Equal(95, result.Score)
	})
}

// TestRestrictedAndSanctioned verifies the hard-block verdicts.
func (s *EvaluatorSuite) TestRestrictedAndSanctioned() {
	s.Run("arms chapter blocks regardless of score", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Rifle parts", HSCode: "9301.10", Quantity: 2}},
			OriginCountry:      "US",
			DestinationCountry: "GB",
		}, cutoff)

		s.Equal(StatusBlocked, result.Status)
		s.True(result.Restricted)
		s.Equal(RiskHigh, result.RiskLevel)
	})

	s.Run("embargoed destination blocks", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Solar diodes", HSCode: "8541.10", Quantity: 10}},
			OriginCountry:      "US",
			DestinationCountry: "KP",
		}, cutoff)

		s.Equal(StatusBlocked, result.Status)
		s.True(result.SanctionedCountry)
		s.Equal(RiskHigh, result.RiskLevel)
	})
}

// TestMissingHSCode verifies the warning deduction for unclassified items.
func (s *EvaluatorSuite) TestMissingHSCode() {
	result := Evaluate(Input{
		Items:              []Item{{Description: "Mystery goods", Quantity: 1}},
		OriginCountry:      "US",
		DestinationCountry: "FR",
	}, cutoff)

	s.Equal(85, result.Score)
	s.Equal(StatusNeedsDocuments, result.Status)
	s.Require().Len(result.Findings, 1)
	s.Equal("HS-MISSING", result.Findings[0].RuleCode)
}

// TestScoreFloor verifies the score never goes negative no matter how many
// findings stack up.
func (s *EvaluatorSuite) TestScoreFloor() {
	items := make([]Item, 0, 10)
	for range 10 {
		items = append(items, Item{Description: "Unknown", Quantity: 1})
	}
	result := Evaluate(Input{
		Items:              items,
		OriginCountry:      "US",
		DestinationCountry: "FR",
	}, cutoff)

	s.Equal(0, result.Score)
	s.Equal(RiskHigh, result.RiskLevel)
}

// TestDynamicRules verifies operator-authored rules layer on top of the
// built-in tables.
func (s *EvaluatorSuite) TestDynamicRules() {
	s.Run("matching rule deducts by severity", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Solar diodes", HSCode: "8541.10", Quantity: 5}},
			OriginCountry:      "US",
			DestinationCountry: "IN",
			Rules: []Rule{{
				Code:     "IN-CUSTOM-01",
				Country:  "IN",
				HSPrefix: "8541",
				Message:  "Import declaration review required",
			}},
		}, cutoff)

		s.Equal(85, result.Score)
		s.Equal(StatusNeedsDocuments, result.Status)
	})

	s.Run("restricted rule blocks", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Solar diodes", HSCode: "8541.10", Quantity: 5}},
			OriginCountry:      "US",
			DestinationCountry: "IN",
			Rules: []Rule{{
				Code:       "IN-BAN-02",
				Country:    "IN",
				HSPrefix:   "8541",
				Restricted: true,
				Message:    "Banned for import",
			}},
		}, cutoff)

		s.Equal(StatusBlocked, result.Status)
		s.True(result.Restricted)
	})

	s.Run("rule for another country is ignored", func() {
		result := Evaluate(Input{
			Items:              []Item{{Description: "Solar diodes", HSCode: "8541.10", Quantity: 5}},
			OriginCountry:      "US",
			DestinationCountry: "DE",
			Rules: []Rule{{
				Code:     "IN-CUSTOM-01",
				Country:  "IN",
				HSPrefix: "8541",
				Message:  "Import declaration review required",
			}},
		}, cutoff)

		s.Equal(100, result.Score)
		s.Equal(StatusCleared, result.Status)
	})
}

// TestDeterminism verifies identical inputs always produce identical results.
func (s *EvaluatorSuite) TestDeterminism() {
	input := Input{
		Items: []Item{
			{Description: "Li-ion cells", HSCode: "8507.60", Quantity: 20},
			{Description: "Pesticide", HSCode: "3808.91", Quantity: 5},
		},
		OriginCountry:      "CN",
		DestinationCountry: "GB",
	}

	first := Evaluate(input, cutoff)
	for range 5 {
		s.Equal(first, Evaluate(input, cutoff))
	}
}
