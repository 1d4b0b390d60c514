package models

import (
	"time"

	"github.com/google/uuid"

	"preclear/internal/compliance"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// PartyType distinguishes the roles on a shipment's party list.
type PartyType string

const (
	PartyShipper    PartyType = "shipper"
	PartyConsignee  PartyType = "consignee"
	PartyThirdParty PartyType = "third_party"
)

var validPartyTypes = map[PartyType]bool{PartyShipper: true, PartyConsignee: true, PartyThirdParty: true}

// Party is a contact and address block attached to a shipment.
type Party struct {
	ID          uuid.UUID
	ShipmentID  id.ShipmentID
	PartyType   PartyType
	CompanyName string
	ContactName string
	Email       string
	Phone       string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// ExportReason is the declared purpose of an exported line item.
type ExportReason string

const (
	ReasonSale   ExportReason = "Sale"
	ReasonSample ExportReason = "Sample"
	ReasonGift   ExportReason = "Gift"
	ReasonRepair ExportReason = "Repair"
	ReasonReturn ExportReason = "Return"
	ReasonOther  ExportReason = "Other"
)

var validExportReasons = map[ExportReason]bool{
	ReasonSale: true, ReasonSample: true, ReasonGift: true,
	ReasonRepair: true, ReasonReturn: true, ReasonOther: true,
}

// Item is one commodity line on the shipment.
type Item struct {
	ID              uuid.UUID
	ShipmentID      id.ShipmentID
	Description     string
	HSCode          string
	Quantity        float64
	UnitPrice       float64
	TotalValue      float64
	CountryOfOrigin string
	ExportReason    ExportReason
}

// PackageType is the physical packaging kind.
type PackageType string

const (
	PackageBox      PackageType = "Box"
	PackageEnvelope PackageType = "Envelope"
	PackagePallet   PackageType = "Pallet"
	PackageOther    PackageType = "Other"
)

// Package is one physical piece with dimensions and weight.
type Package struct {
	ID            uuid.UUID
	ShipmentID    id.ShipmentID
	PackageType   PackageType
	Length        float64
	Width         float64
	Height        float64
	DimensionUnit string // cm or inch
	Weight        float64
	WeightUnit    string // kg or lb
	Quantity      int
}

// PickupType selects whether the carrier collects the shipment.
type PickupType string

const (
	PickupScheduled PickupType = "Scheduled"
	PickupDropOff   PickupType = "DropOff"
)

// ServiceDetail is the singleton service selection for a shipment.
type ServiceDetail struct {
	ShipmentID        id.ShipmentID
	ServiceLevel      compliance.ServiceLevel
	Incoterm          string
	BillTo            string
	Currency          string
	DeclaredValue     float64
	InsuranceRequired bool
	PickupType        PickupType
}

// ComplianceRecord is the singleton evaluation verdict for a shipment.
type ComplianceRecord struct {
	ShipmentID            id.ShipmentID
	DangerousGoods        bool
	LithiumBattery        bool
	FoodPharma            bool
	ExportLicenseRequired bool
	Restricted            bool
	SanctionedCountry     bool
	ECCN                  string
	RiskLevel             compliance.RiskLevel
	AiScore               int
	AiStatus              compliance.AiStatus
	AiNotes               map[string]any
	EvaluatedAt           time.Time
}

// Finding is one persisted compliance observation, append-only.
type Finding struct {
	ID              uuid.UUID
	ShipmentID      id.ShipmentID
	RuleCode        string
	Severity        compliance.Severity
	Message         string
	SuggestedAction string
	MissingDocument string
	Details         map[string]any
	CreatedAt       time.Time
}

// DocumentType is the closed set of accepted customs document kinds.
type DocumentType string

const (
	DocCommercialInvoice   DocumentType = "CommercialInvoice"
	DocPackingList         DocumentType = "PackingList"
	DocCertificateOfOrigin DocumentType = "CertificateOfOrigin"
	DocExportLicense       DocumentType = "ExportLicense"
	DocImportLicense       DocumentType = "ImportLicense"
	DocSDS                 DocumentType = "SDS"
	DocAWB                 DocumentType = "AWB"
	DocBOL                 DocumentType = "BOL"
	DocCMR                 DocumentType = "CMR"
	DocOther               DocumentType = "Other"
)

var validDocumentTypes = map[DocumentType]bool{
	DocCommercialInvoice: true, DocPackingList: true, DocCertificateOfOrigin: true,
	DocExportLicense: true, DocImportLicense: true, DocSDS: true,
	DocAWB: true, DocBOL: true, DocCMR: true, DocOther: true,
}

// ParseDocumentType validates a document type string.
func ParseDocumentType(s string) (DocumentType, error) {
	if !validDocumentTypes[DocumentType(s)] {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "documentType", "unknown document type")
	}
	return DocumentType(s), nil
}

// Document is uploaded document metadata. Version is per (shipment, type),
// assigned by the store as previous max plus one.
type Document struct {
	ID               id.DocumentID
	ShipmentID       id.ShipmentID
	DocumentType     DocumentType
	FileName         string
	ContentType      string
	SizeBytes        int64
	StorageKey       string
	VerifiedByBroker bool
	Version          int
	UploadedBy       *id.UserID
	CreatedAt        time.Time
}

// TrackingEvent is one append-only movement record.
type TrackingEvent struct {
	ID          uuid.UUID
	ShipmentID  id.ShipmentID
	Status      string
	Location    string
	Description string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// Message is one broker/shipper chat entry, append-only.
type Message struct {
	ID         uuid.UUID
	ShipmentID id.ShipmentID
	SenderID   *id.UserID
	SenderRole id.Role
	Body       string
	CreatedAt  time.Time
}

// PaymentStatus tracks one payment attempt.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment is one payment attempt against a shipment. Breakdown carries the
// quote the amount was derived from.
type Payment struct {
	ID         id.PaymentID
	ShipmentID id.ShipmentID
	Amount     float64
	Currency   string
	Status     PaymentStatus
	Breakdown  compliance.Quote
	PaidAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BrokerRequestStatus tracks a broker's document request.
type BrokerRequestStatus string

const (
	RequestOpen      BrokerRequestStatus = "Open"
	RequestFulfilled BrokerRequestStatus = "Fulfilled"
	RequestCancelled BrokerRequestStatus = "Cancelled"
)

// BrokerRequest is a broker-initiated ask for an additional document.
type BrokerRequest struct {
	ID           uuid.UUID
	ShipmentID   id.ShipmentID
	RequestedBy  *id.UserID
	DocumentType DocumentType
	Message      string
	Status       BrokerRequestStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// ReviewStatus is the broker review verdict.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "Pending"
	ReviewApproved ReviewStatus = "Approved"
	ReviewRejected ReviewStatus = "Rejected"
)

// BrokerReview is the broker's verdict record for a shipment.
type BrokerReview struct {
	ID         uuid.UUID
	ShipmentID id.ShipmentID
	BrokerID   *id.UserID
	Status     ReviewStatus
	Comments   string
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

// ShipmentDetail bundles the aggregate root with its children for reads and
// atomic creation.
type ShipmentDetail struct {
	Shipment
	Parties    []Party
	Items      []Item
	Packages   []Package
	Service    *ServiceDetail
	Compliance *ComplianceRecord
	Documents  []Document
	Findings   []Finding
}

// PartyByType returns the first party of the given type, or nil.
func (d *ShipmentDetail) PartyByType(t PartyType) *Party {
	for i := range d.Parties {
		if d.Parties[i].PartyType == t {
			return &d.Parties[i]
		}
	}
	return nil
}
