package handler

import (
	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	"preclear/internal/shipment/service"
	dErrors "preclear/pkg/domain-errors"
)

type partyRequest struct {
	PartyType   string `json:"partyType"`
	CompanyName string `json:"companyName,omitempty"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	AddressLine string `json:"addressLine,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	CountryCode string `json:"countryCode"`
}

type itemRequest struct {
	Description     string  `json:"description"`
	HSCode          string  `json:"hsCode,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unitPrice,omitempty"`
	TotalValue      float64 `json:"totalValue,omitempty"`
	CountryOfOrigin string  `json:"countryOfOrigin,omitempty"`
	ExportReason    string  `json:"exportReason,omitempty"`
}

type packageRequest struct {
	PackageType   string  `json:"packageType,omitempty"`
	Length        float64 `json:"length,omitempty"`
	Width         float64 `json:"width,omitempty"`
	Height        float64 `json:"height,omitempty"`
	DimensionUnit string  `json:"dimensionUnit,omitempty"`
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weightUnit,omitempty"`
	Quantity      int     `json:"quantity"`
}

type serviceRequest struct {
	ServiceLevel      string  `json:"serviceLevel,omitempty"`
	Incoterm          string  `json:"incoterm,omitempty"`
	BillTo            string  `json:"billTo,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	DeclaredValue     float64 `json:"declaredValue,omitempty"`
	InsuranceRequired bool    `json:"insuranceRequired,omitempty"`
	PickupType        string  `json:"pickupType,omitempty"`
}

// createShipmentRequest is the POST body. Field-level validation happens in
// models.ValidateNew once the aggregate is assembled.
type createShipmentRequest struct {
	ReferenceID  string           `json:"referenceId,omitempty"`
	Name         string           `json:"name"`
	Mode         string           `json:"mode"`
	ShipmentType string           `json:"shipmentType"`
	Carrier      string           `json:"carrier,omitempty"`
	Parties      []partyRequest   `json:"parties"`
	Items        []itemRequest    `json:"items"`
	Packages     []packageRequest `json:"packages,omitempty"`
	Service      *serviceRequest  `json:"service,omitempty"`
}

func (r createShipmentRequest) toDetail() *models.ShipmentDetail {
	detail := &models.ShipmentDetail{
		Shipment: models.Shipment{
			ReferenceID:  r.ReferenceID,
			Name:         r.Name,
			Mode:         models.Mode(r.Mode),
			ShipmentType: models.ShipmentType(r.ShipmentType),
			Carrier:      r.Carrier,
		},
	}
	for _, p := range r.Parties {
		detail.Parties = append(detail.Parties, models.Party{
			PartyType:   models.PartyType(p.PartyType),
			CompanyName: p.CompanyName,
			ContactName: p.ContactName,
			Email:       p.Email,
			Phone:       p.Phone,
			AddressLine: p.AddressLine,
			City:        p.City,
			State:       p.State,
			PostalCode:  p.PostalCode,
			CountryCode: p.CountryCode,
		})
	}
	for _, item := range r.Items {
		detail.Items = append(detail.Items, models.Item{
			Description:     item.Description,
			HSCode:          item.HSCode,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalValue:      item.TotalValue,
			CountryOfOrigin: item.CountryOfOrigin,
			ExportReason:    models.ExportReason(item.ExportReason),
		})
	}
	for _, pkg := range r.Packages {
		detail.Packages = append(detail.Packages, models.Package{
			PackageType:   models.PackageType(pkg.PackageType),
			Length:        pkg.Length,
			Width:         pkg.Width,
			Height:        pkg.Height,
			DimensionUnit: pkg.DimensionUnit,
			Weight:        pkg.Weight,
			WeightUnit:    pkg.WeightUnit,
			Quantity:      pkg.Quantity,
		})
	}
	if r.Service != nil {
		detail.Service = &models.ServiceDetail{
			ServiceLevel:      compliance.ServiceLevel(r.Service.ServiceLevel),
			Incoterm:          r.Service.Incoterm,
			BillTo:            r.Service.BillTo,
			Currency:          r.Service.Currency,
			DeclaredValue:     r.Service.DeclaredValue,
			InsuranceRequired: r.Service.InsuranceRequired,
			PickupType:        models.PickupType(r.Service.PickupType),
		}
	}
	return detail
}

// updateShipmentRequest is the PUT body: only whitelisted fields, all
// optional, plus the expected row version for the CAS.
type updateShipmentRequest struct {
	Name         *string `json:"name,omitempty"`
	Mode         *string `json:"mode,omitempty"`
	ShipmentType *string `json:"shipmentType,omitempty"`
	Carrier      *string `json:"carrier,omitempty"`
	Status       *string `json:"status,omitempty"`
	RowVersion   int64   `json:"rowVersion,omitempty"`
}

func (r updateShipmentRequest) toFields() (service.UpdateFields, error) {
	fields := service.UpdateFields{
		Name:            r.Name,
		Carrier:         r.Carrier,
		ExpectedVersion: r.RowVersion,
	}
	if r.Mode != nil {
		mode, err := models.ParseMode(*r.Mode)
		if err != nil {
			return service.UpdateFields{}, err
		}
		fields.Mode = &mode
	}
	if r.ShipmentType != nil {
		shipmentType, err := models.ParseShipmentType(*r.ShipmentType)
		if err != nil {
			return service.UpdateFields{}, err
		}
		fields.ShipmentType = &shipmentType
	}
	if r.Status != nil {
		status, err := models.ParseStatus(*r.Status)
		if err != nil {
			return service.UpdateFields{}, err
		}
		fields.Status = &status
	}
	return fields, nil
}

type decisionRequest struct {
	Decision     string `json:"decision"`
	Comments     string `json:"comments,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

func (r decisionRequest) toInput() (service.DecisionInput, error) {
	switch service.Decision(r.Decision) {
	case service.DecisionApproved, service.DecisionRejected, service.DecisionDocumentsRequested:
	default:
		return service.DecisionInput{}, dErrors.NewField(dErrors.CodeInvalidInput, "decision",
			"decision must be Approved, Rejected or DocumentsRequested")
	}
	return service.DecisionInput{
		Decision:     service.Decision(r.Decision),
		Comments:     r.Comments,
		DocumentType: models.DocumentType(r.DocumentType),
	}, nil
}

type bookRequest struct {
	PreclearToken string `json:"preclearToken"`
}

type trackingRequest struct {
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	OccurredAt  string `json:"occurredAt,omitempty"`
}

type messageRequest struct {
	Body string `json:"body"`
}
