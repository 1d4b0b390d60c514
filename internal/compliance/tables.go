package compliance

import "strings"

// hsCategory describes the restrictions attached to an HS code prefix. The
// longest matching prefix wins, so "3808" can be more specific than "38".
type hsCategory struct {
	name             string
	dangerousGoods   bool
	lithiumBattery   bool
	foodPharma       bool
	exportLicense    bool
	restricted       bool
	eccn             string
	requiredDocument string
}

// hsCategories is the static commodity classification table. Prefixes follow
// the Harmonized System chapter/heading structure.
var hsCategories = map[string]hsCategory{
	// Batteries: chapter 85 headings for primary cells and accumulators.
	"8506": {name: "primary cells and batteries", lithiumBattery: true, requiredDocument: "SDS"},
	"8507": {name: "electric accumulators", lithiumBattery: true, requiredDocument: "SDS"},

	// Chemicals: chapters 28/29 plus pesticides under 3808.
	"28":   {name: "inorganic chemicals", dangerousGoods: true, exportLicense: true, requiredDocument: "ExportLicense"},
	"29":   {name: "organic chemicals", dangerousGoods: true, exportLicense: true, requiredDocument: "ExportLicense"},
	"3808": {name: "pesticides and disinfectants", dangerousGoods: true, requiredDocument: "SDS"},

	// Food chapters 02-04 and 16-21; pharmaceuticals chapter 30.
	"02": {name: "meat products", foodPharma: true, requiredDocument: "CertificateOfOrigin"},
	"03": {name: "fish and seafood", foodPharma: true, requiredDocument: "CertificateOfOrigin"},
	"04": {name: "dairy products", foodPharma: true, requiredDocument: "CertificateOfOrigin"},
	"16": {name: "prepared meat and fish", foodPharma: true, requiredDocument: "CertificateOfOrigin"},
	"17": {name: "sugars", foodPharma: true},
	"18": {name: "cocoa preparations", foodPharma: true},
	"19": {name: "cereal preparations", foodPharma: true},
	"20": {name: "vegetable preparations", foodPharma: true},
	"21": {name: "miscellaneous edible preparations", foodPharma: true},
	"30": {name: "pharmaceutical products", foodPharma: true, exportLicense: true, requiredDocument: "ImportLicense"},

	// Semiconductors: clean, but carry an ECCN for the license screen.
	"8541": {name: "semiconductor devices", eccn: "3A001"},
	"8542": {name: "electronic integrated circuits", eccn: "3A001"},

	// Hard stops.
	"93":   {name: "arms and ammunition", restricted: true, dangerousGoods: true},
	"9706": {name: "antiques over 100 years old", restricted: true},
}

// lookupHS returns the category for the longest prefix matching the HS code,
// ignoring separator dots ("8541.10" matches "8541").
func lookupHS(hsCode string) (hsCategory, bool) {
	normalized := strings.ReplaceAll(hsCode, ".", "")
	for l := len(normalized); l > 0; l-- {
		if cat, ok := hsCategories[normalized[:l]]; ok {
			return cat, true
		}
	}
	return hsCategory{}, false
}

// embargoedPairs lists origin→destination country pairs that block shipment
// outright. A "*" origin embargoes the destination from anywhere.
var embargoedPairs = map[string]map[string]bool{
	"*": {"KP": true, "IR": true, "SY": true, "CU": true},
}

// isEmbargoed reports whether the country pair is under sanction.
func isEmbargoed(origin, destination string) bool {
	origin = strings.ToUpper(origin)
	destination = strings.ToUpper(destination)
	if embargoedPairs["*"][destination] || embargoedPairs["*"][origin] {
		return true
	}
	if pairs, ok := embargoedPairs[origin]; ok {
		return pairs[destination]
	}
	return false
}

// Score deductions per finding severity. The cutoff (config, default 90) sits
// between "one informational note" and "one actionable warning".
const (
	deductInfo    = 5
	deductWarning = 15
	deductError   = 40
)
