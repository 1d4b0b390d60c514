package compliance

import (
	"math"
	"strings"
)

// ServiceLevel selects the delivery speed and its price multiplier.
type ServiceLevel string

const (
	ServiceStandard ServiceLevel = "Standard"
	ServiceExpress  ServiceLevel = "Express"
	ServiceEconomy  ServiceLevel = "Economy"
	ServiceFreight  ServiceLevel = "Freight"
)

var serviceLevelMultiplier = map[ServiceLevel]float64{
	ServiceStandard: 1.0,
	ServiceExpress:  1.5,
	ServiceEconomy:  0.8,
	ServiceFreight:  0.7,
}

// baseRate converts customs value into the carrier base price.
const baseRate = 0.05

// taxRate applies to the subtotal.
const taxRate = 0.18

// clearanceConfig parameterizes the customs clearance fee per destination.
type clearanceConfig struct {
	base                float64
	threshold           float64 // customs value above which the formal fee applies
	formalFee           float64
	extraLineItemFee    float64 // per line item beyond five
	specialCommodityFee float64
}

var clearanceConfigs = map[string]clearanceConfig{
	"IN": {base: 50, threshold: 10000, formalFee: 2000, extraLineItemFee: 100, specialCommodityFee: 1500},
	"US": {base: 0, threshold: 800, formalFee: 35, extraLineItemFee: 5, specialCommodityFee: 25},
	"GB": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"FR": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"DE": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"IT": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"ES": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"NL": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
	"BE": {base: 20, threshold: 150, formalFee: 40, extraLineItemFee: 5, specialCommodityFee: 30},
}

var defaultClearance = clearanceConfig{base: 30, threshold: 100, formalFee: 50, extraLineItemFee: 5, specialCommodityFee: 30}

// pickupCharges is a flat fee per origin country, charged only for scheduled
// pickups.
var pickupCharges = map[string]float64{
	"IN": 250, "US": 35, "GB": 25, "FR": 28, "DE": 30, "IT": 27, "ES": 26,
	"NL": 32, "BE": 29, "CN": 40, "JP": 50, "SG": 45, "AU": 55, "CA": 40,
	"MX": 38, "BR": 42,
}

const defaultPickupCharge = 50

// zeroDecimalCurrencies have no minor unit; everything else rounds to cents.
var zeroDecimalCurrencies = map[string]bool{"JPY": true, "KRW": true, "VND": true}

// PricingInput carries everything one quote needs.
type PricingInput struct {
	CustomsValue       float64
	Currency           string
	ServiceLevel       ServiceLevel
	OriginCountry      string
	DestinationCountry string
	LineItemCount      int
	SpecialCommodity   bool
	ScheduledPickup    bool
}

// Quote is the full price breakdown. All amounts are rounded to the
// currency's minor unit.
type Quote struct {
	BasePrice        float64 `json:"basePrice"`
	ServiceCharge    float64 `json:"serviceCharge"`
	CustomsClearance float64 `json:"customsClearance"`
	PickupCharge     float64 `json:"pickupCharge"`
	Subtotal         float64 `json:"subtotal"`
	Tax              float64 `json:"tax"`
	Total            float64 `json:"total"`
	Currency         string  `json:"currency"`
}

// Price computes the deterministic quote for a shipment.
func Price(input PricingInput) Quote {
	round := rounder(input.Currency)

	basePrice := round(input.CustomsValue * baseRate)

	multiplier, ok := serviceLevelMultiplier[input.ServiceLevel]
	if !ok {
		multiplier = 1.0
	}
	serviceCharge := round(basePrice * multiplier)

	clearance := clearanceFee(input.DestinationCountry, input.CustomsValue, input.LineItemCount, input.SpecialCommodity)
	clearance = round(clearance)

	var pickup float64
	if input.ScheduledPickup {
		pickup = pickupCharge(input.OriginCountry)
	}
	pickup = round(pickup)

	subtotal := round(basePrice + serviceCharge + clearance + pickup)
	tax := round(subtotal * taxRate)
	total := round(subtotal + tax)

	return Quote{
		BasePrice:        basePrice,
		ServiceCharge:    serviceCharge,
		CustomsClearance: clearance,
		PickupCharge:     pickup,
		Subtotal:         subtotal,
		Tax:              tax,
		Total:            total,
		Currency:         input.Currency,
	}
}

func clearanceFee(destCountry string, customsValue float64, lineItems int, special bool) float64 {
	cfg, ok := clearanceConfigs[strings.ToUpper(destCountry)]
	if !ok {
		cfg = defaultClearance
	}
	fee := cfg.base
	if customsValue > cfg.threshold {
		fee += cfg.formalFee
	}
	if lineItems > 5 {
		fee += float64(lineItems-5) * cfg.extraLineItemFee
	}
	if special {
		fee += cfg.specialCommodityFee
	}
	return fee
}

func pickupCharge(originCountry string) float64 {
	if fee, ok := pickupCharges[strings.ToUpper(originCountry)]; ok {
		return fee
	}
	return defaultPickupCharge
}

// rounder returns a rounding function for the currency's minor unit.
func rounder(currency string) func(float64) float64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return math.Round
	}
	return func(v float64) float64 {
		return math.Round(v*100) / 100
	}
}
