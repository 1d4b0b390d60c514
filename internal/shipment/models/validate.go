package models

import (
	"strings"

	dErrors "preclear/pkg/domain-errors"
)

// ValidateNew checks the aggregate invariants required at creation time: at
// least one line item and a shipper party, plus field-level checks on every
// child row. Returns the first violation found.
func ValidateNew(d *ShipmentDetail) error {
	if d.Name == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "name", "name is required")
	}
	if !validModes[d.Mode] {
		return dErrors.NewField(dErrors.CodeInvalidInput, "mode", "mode must be Air, Sea or Ground")
	}
	if !validShipmentTypes[d.ShipmentType] {
		return dErrors.NewField(dErrors.CodeInvalidInput, "shipmentType", "shipmentType must be Domestic or International")
	}
	if len(d.Items) == 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "items", "at least one line item is required")
	}
	if d.PartyByType(PartyShipper) == nil {
		return dErrors.NewField(dErrors.CodeInvalidInput, "parties", "a shipper party is required")
	}
	for _, p := range d.Parties {
		if err := validateParty(p); err != nil {
			return err
		}
	}
	for _, item := range d.Items {
		if err := validateItem(item); err != nil {
			return err
		}
	}
	for _, pkg := range d.Packages {
		if err := validatePackage(pkg); err != nil {
			return err
		}
	}
	if d.Service != nil {
		if err := validateService(*d.Service); err != nil {
			return err
		}
	}
	return nil
}

func validateParty(p Party) error {
	if !validPartyTypes[p.PartyType] {
		return dErrors.NewField(dErrors.CodeInvalidInput, "partyType", "partyType must be shipper, consignee or third_party")
	}
	if p.ContactName == "" && p.CompanyName == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "contactName", "a contact or company name is required")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return dErrors.NewField(dErrors.CodeInvalidInput, "email", "invalid email address")
	}
	if p.CountryCode == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "countryCode", "countryCode is required")
	}
	return nil
}

func validateItem(item Item) error {
	if item.Description == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "description", "item description is required")
	}
	if item.Quantity <= 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "quantity", "quantity must be positive")
	}
	if item.UnitPrice < 0 || item.TotalValue < 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "unitPrice", "prices cannot be negative")
	}
	if item.ExportReason != "" && !validExportReasons[item.ExportReason] {
		return dErrors.NewField(dErrors.CodeInvalidInput, "exportReason", "unknown export reason")
	}
	return nil
}

func validatePackage(pkg Package) error {
	if pkg.Weight <= 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "weight", "package weight must be positive")
	}
	if pkg.Quantity <= 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "quantity", "package quantity must be positive")
	}
	switch pkg.DimensionUnit {
	case "", "cm", "inch":
	default:
		return dErrors.NewField(dErrors.CodeInvalidInput, "dimensionUnit", "dimensionUnit must be cm or inch")
	}
	switch pkg.WeightUnit {
	case "", "kg", "lb":
	default:
		return dErrors.NewField(dErrors.CodeInvalidInput, "weightUnit", "weightUnit must be kg or lb")
	}
	return nil
}

func validateService(svc ServiceDetail) error {
	switch svc.PickupType {
	case "", PickupScheduled, PickupDropOff:
	default:
		return dErrors.NewField(dErrors.CodeInvalidInput, "pickupType", "pickupType must be Scheduled or DropOff")
	}
	if svc.Currency != "" && len(svc.Currency) != 3 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "currency", "currency must be a 3-letter code")
	}
	if svc.DeclaredValue < 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "declaredValue", "declaredValue cannot be negative")
	}
	return nil
}
