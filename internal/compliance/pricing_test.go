package compliance

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PricingSuite struct {
	suite.Suite
}

func TestPricingSuite(t *testing.T) {
	suite.Run(t, new(PricingSuite))
}

// TestStandardQuote verifies the baseline breakdown for a simple shipment.
func (s *PricingSuite) TestStandardQuote() {
	quote := Price(PricingInput{
		CustomsValue:       1000,
		Currency:           "USD",
		ServiceLevel:       ServiceStandard,
		OriginCountry:      "US",
		DestinationCountry: "DE",
		LineItemCount:      2,
	})

	s.Equal(50.0, quote.BasePrice)
	s.Equal(50.0, quote.ServiceCharge)
	// DE base 20 plus the formal entry fee above the 150 threshold.
	s.Equal(60.0, quote.CustomsClearance)
	s.Equal(0.0, quote.PickupCharge)
	s.Equal(160.0, quote.Subtotal)
	s.Equal(28.80, quote.Tax)
	s.Equal(188.80, quote.Total)
	s.Equal("USD", quote.Currency)
}

// TestClearanceSurcharges verifies the line item and special commodity
// surcharges stack on the destination table.
func (s *PricingSuite) TestClearanceSurcharges() {
	quote := Price(PricingInput{
		CustomsValue:       20000,
		Currency:           "USD",
		ServiceLevel:       ServiceExpress,
		OriginCountry:      "US",
		DestinationCountry: "IN",
		LineItemCount:      7,
		SpecialCommodity:   true,
		ScheduledPickup:    true,
	})

	s.Equal(1000.0, quote.BasePrice)
	s.Equal(1500.0, quote.ServiceCharge)
	// IN: 50 base + 2000 formal + 2 extra line items at 100 + 1500 special.
	s.Equal(3750.0, quote.CustomsClearance)
	s.Equal(35.0, quote.PickupCharge)
	s.Equal(6285.0, quote.Subtotal)
	s.Equal(1131.30, quote.Tax)
	s.Equal(7416.30, quote.Total)
}

// TestServiceLevelMultipliers verifies each level scales the service charge.
func (s *PricingSuite) TestServiceLevelMultipliers() {
	tests := []struct {
		level ServiceLevel
		want  float64
	}{
		{ServiceStandard, 50.0},
		{ServiceExpress, 75.0},
		{ServiceEconomy, 40.0},
		{ServiceFreight, 35.0},
	}
	for _, tt := range tests {
		s.Run(string(tt.level), func() {
			quote := Price(PricingInput{
				CustomsValue:       1000,
				Currency:           "USD",
				ServiceLevel:       tt.level,
				OriginCountry:      "US",
				DestinationCountry: "US",
				LineItemCount:      1,
			})
			s.Equal(tt.want, quote.ServiceCharge)
		})
	}
}

// TestZeroDecimalCurrency verifies JPY amounts round to whole yen.
func (s *PricingSuite) TestZeroDecimalCurrency() {
	quote := Price(PricingInput{
		CustomsValue:       12345,
		Currency:           "JPY",
		ServiceLevel:       ServiceEconomy,
		OriginCountry:      "JP",
		DestinationCountry: "US",
		LineItemCount:      3,
	})

	s.Equal(617.0, quote.BasePrice)
	s.Equal(494.0, quote.ServiceCharge)
	s.Equal(35.0, quote.CustomsClearance)
	s.Equal(1146.0, quote.Subtotal)
	s.Equal(206.0, quote.Tax)
	s.Equal(1352.0, quote.Total)
}

// TestDefaultTables verifies unknown countries fall back to the default rows.
func (s *PricingSuite) TestDefaultTables() {
	quote := Price(PricingInput{
		CustomsValue:       500,
		Currency:           "USD",
		ServiceLevel:       ServiceStandard,
		OriginCountry:      "ZA",
		DestinationCountry: "AR",
		LineItemCount:      1,
		ScheduledPickup:    true,
	})

	// default clearance: 30 base + 50 formal above the 100 threshold.
	s.Equal(80.0, quote.CustomsClearance)
	s.Equal(50.0, quote.PickupCharge)
}

// TestUnknownServiceLevel verifies an unrecognized level prices as Standard.
func (s *PricingSuite) TestUnknownServiceLevel() {
	quote := Price(PricingInput{
		CustomsValue:       1000,
		Currency:           "USD",
		ServiceLevel:       ServiceLevel("Overnight"),
		OriginCountry:      "US",
		DestinationCountry: "US",
		LineItemCount:      1,
	})
	s.Equal(quote.BasePrice, quote.ServiceCharge)
}
