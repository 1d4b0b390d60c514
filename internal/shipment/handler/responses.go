package handler

import (
	"time"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
)

type shipmentResponse struct {
	ID           id.ShipmentID `json:"id"`
	ReferenceID  string        `json:"referenceId"`
	Name         string        `json:"name"`
	Mode         string        `json:"mode"`
	ShipmentType string        `json:"shipmentType"`
	Carrier      string        `json:"carrier,omitempty"`
	Status       string        `json:"status"`
	CreatedBy    *id.UserID    `json:"createdBy,omitempty"`
	RowVersion   int64         `json:"rowVersion"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// PreclearToken is deliberately absent from shipmentResponse: the token is
// returned exactly once, from the broker decision endpoint.
func fromShipment(sh models.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:           sh.ID,
		ReferenceID:  sh.ReferenceID,
		Name:         sh.Name,
		Mode:         string(sh.Mode),
		ShipmentType: string(sh.ShipmentType),
		Carrier:      sh.Carrier,
		Status:       string(sh.Status),
		CreatedBy:    sh.CreatedBy,
		RowVersion:   sh.RowVersion,
		CreatedAt:    sh.CreatedAt,
		UpdatedAt:    sh.UpdatedAt,
	}
}

type partyResponse struct {
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

type itemResponse struct {
	Description     string  `json:"description"`
	HSCode          string  `json:"hsCode,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unitPrice"`
	TotalValue      float64 `json:"totalValue"`
	CountryOfOrigin string  `json:"countryOfOrigin,omitempty"`
	ExportReason    string  `json:"exportReason,omitempty"`
}

type packageResponse struct {
	PackageType   string  `json:"packageType,omitempty"`
	Length        float64 `json:"length,omitempty"`
	Width         float64 `json:"width,omitempty"`
	Height        float64 `json:"height,omitempty"`
	DimensionUnit string  `json:"dimensionUnit,omitempty"`
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weightUnit,omitempty"`
	Quantity      int     `json:"quantity"`
}

type serviceResponse struct {
	ServiceLevel      string  `json:"serviceLevel,omitempty"`
	Incoterm          string  `json:"incoterm,omitempty"`
	BillTo            string  `json:"billTo,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	DeclaredValue     float64 `json:"declaredValue,omitempty"`
	InsuranceRequired bool    `json:"insuranceRequired"`
	PickupType        string  `json:"pickupType,omitempty"`
}

type complianceResponse struct {
	DangerousGoods        bool           `json:"dangerousGoods"`
	LithiumBattery        bool           `json:"lithiumBattery"`
	FoodPharma            bool           `json:"foodPharma"`
	ExportLicenseRequired bool           `json:"exportLicenseRequired"`
	Restricted            bool           `json:"restricted"`
	SanctionedCountry     bool           `json:"sanctionedCountry"`
	ECCN                  string         `json:"eccn,omitempty"`
	RiskLevel             string         `json:"riskLevel"`
	AiScore               int            `json:"aiScore"`
	AiStatus              string         `json:"aiStatus"`
	AiNotes               map[string]any `json:"aiNotes,omitempty"`
	EvaluatedAt           time.Time      `json:"evaluatedAt"`
}

type findingResponse struct {
	RuleCode        string         `json:"ruleCode"`
	Severity        string         `json:"severity"`
	Message         string         `json:"message"`
	SuggestedAction string         `json:"suggestedAction,omitempty"`
	MissingDocument string         `json:"missingDocument,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type documentResponse struct {
	ID               id.DocumentID `json:"id"`
	DocumentType     string        `json:"documentType"`
	FileName         string        `json:"fileName"`
	ContentType      string        `json:"contentType,omitempty"`
	SizeBytes        int64         `json:"sizeBytes"`
	VerifiedByBroker bool          `json:"verifiedByBroker"`
	Version          int           `json:"version"`
	UploadedBy       *id.UserID    `json:"uploadedBy,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

func fromDocument(d models.Document) documentResponse {
	return documentResponse{
		ID:               d.ID,
		DocumentType:     string(d.DocumentType),
		FileName:         d.FileName,
		ContentType:      d.ContentType,
		SizeBytes:        d.SizeBytes,
		VerifiedByBroker: d.VerifiedByBroker,
		Version:          d.Version,
		UploadedBy:       d.UploadedBy,
		CreatedAt:        d.CreatedAt,
	}
}

type detailResponse struct {
	shipmentResponse
	Parties    []partyResponse     `json:"parties"`
	Items      []itemResponse      `json:"items"`
	Packages   []packageResponse   `json:"packages,omitempty"`
	Service    *serviceResponse    `json:"service,omitempty"`
	Compliance *complianceResponse `json:"compliance,omitempty"`
	Documents  []documentResponse  `json:"documents,omitempty"`
	Findings   []findingResponse   `json:"findings,omitempty"`
}

func fromDetail(d *models.ShipmentDetail) detailResponse {
	resp := detailResponse{shipmentResponse: fromShipment(d.Shipment)}
	for _, p := range d.Parties {
		resp.Parties = append(resp.Parties, partyResponse{
			PartyType:   string(p.PartyType),
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
	for _, item := range d.Items {
		resp.Items = append(resp.Items, itemResponse{
			Description:     item.Description,
			HSCode:          item.HSCode,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalValue:      item.TotalValue,
			CountryOfOrigin: item.CountryOfOrigin,
			ExportReason:    string(item.ExportReason),
		})
	}
	for _, pkg := range d.Packages {
		resp.Packages = append(resp.Packages, packageResponse{
			PackageType:   string(pkg.PackageType),
			Length:        pkg.Length,
			Width:         pkg.Width,
			Height:        pkg.Height,
			DimensionUnit: pkg.DimensionUnit,
			Weight:        pkg.Weight,
			WeightUnit:    pkg.WeightUnit,
			Quantity:      pkg.Quantity,
		})
	}
	if d.Service != nil {
		resp.Service = &serviceResponse{
			ServiceLevel:      string(d.Service.ServiceLevel),
			Incoterm:          d.Service.Incoterm,
			BillTo:            d.Service.BillTo,
			Currency:          d.Service.Currency,
			DeclaredValue:     d.Service.DeclaredValue,
			InsuranceRequired: d.Service.InsuranceRequired,
			PickupType:        string(d.Service.PickupType),
		}
	}
	if d.Compliance != nil {
		resp.Compliance = &complianceResponse{
			DangerousGoods:        d.Compliance.DangerousGoods,
			LithiumBattery:        d.Compliance.LithiumBattery,
			FoodPharma:            d.Compliance.FoodPharma,
			ExportLicenseRequired: d.Compliance.ExportLicenseRequired,
			Restricted:            d.Compliance.Restricted,
			SanctionedCountry:     d.Compliance.SanctionedCountry,
			ECCN:                  d.Compliance.ECCN,
			RiskLevel:             string(d.Compliance.RiskLevel),
			AiScore:               d.Compliance.AiScore,
			AiStatus:              string(d.Compliance.AiStatus),
			AiNotes:               d.Compliance.AiNotes,
			EvaluatedAt:           d.Compliance.EvaluatedAt,
		}
	}
	for _, doc := range d.Documents {
		resp.Documents = append(resp.Documents, fromDocument(doc))
	}
	for _, f := range d.Findings {
		resp.Findings = append(resp.Findings, findingResponse{
			RuleCode:        f.RuleCode,
			Severity:        string(f.Severity),
			Message:         f.Message,
			SuggestedAction: f.SuggestedAction,
			MissingDocument: f.MissingDocument,
			Details:         f.Details,
			CreatedAt:       f.CreatedAt,
		})
	}
	return resp
}

type listResponse struct {
	Shipments []shipmentResponse `json:"shipments"`
	Page      int                `json:"page"`
	PageSize  int                `json:"pageSize"`
}

// decisionResponse is the only place the preclear token ever appears.
type decisionResponse struct {
	Shipment      shipmentResponse `json:"shipment"`
	PreclearToken string           `json:"preclearToken,omitempty"`
}

type reviewResponse struct {
	ShipmentID id.ShipmentID `json:"shipmentId"`
	BrokerID   *id.UserID    `json:"brokerId,omitempty"`
	Status     string        `json:"status"`
	Comments   string        `json:"comments,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	DecidedAt  *time.Time    `json:"decidedAt,omitempty"`
}

func fromReview(rv *models.BrokerReview) reviewResponse {
	return reviewResponse{
		ShipmentID: rv.ShipmentID,
		BrokerID:   rv.BrokerID,
		Status:     string(rv.Status),
		Comments:   rv.Comments,
		CreatedAt:  rv.CreatedAt,
		DecidedAt:  rv.DecidedAt,
	}
}

type trackingResponse struct {
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

func fromTracking(ev models.TrackingEvent) trackingResponse {
	return trackingResponse{
		Status:      ev.Status,
		Location:    ev.Location,
		Description: ev.Description,
		OccurredAt:  ev.OccurredAt,
		CreatedAt:   ev.CreatedAt,
	}
}

type messageResponse struct {
	SenderID   *id.UserID `json:"senderId,omitempty"`
	SenderRole string     `json:"senderRole,omitempty"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func fromMessage(m models.Message) messageResponse {
	return messageResponse{
		SenderID:   m.SenderID,
		SenderRole: string(m.SenderRole),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

type paymentResponse struct {
	ID        id.PaymentID     `json:"id"`
	Amount    float64          `json:"amount"`
	Currency  string           `json:"currency"`
	Status    string           `json:"status"`
	Breakdown compliance.Quote `json:"breakdown"`
	PaidAt    *time.Time       `json:"paidAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func fromPayment(p models.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    string(p.Status),
		Breakdown: p.Breakdown,
		PaidAt:    p.PaidAt,
		CreatedAt: p.CreatedAt,
	}
}
