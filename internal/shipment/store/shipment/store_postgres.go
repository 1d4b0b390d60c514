package shipment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/sentinel"
	txcontext "preclear/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is the production Store. Multi-row operations rely on the caller
// running them inside tx.Runner.RunInTx; the store joins the transaction via
// the context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// mapPgError translates constraint violations into sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return sentinel.ErrAlreadyUsed
		case pgForeignKeyViolation:
			return sentinel.ErrNotFound
		}
	}
	return err
}

func (s *Postgres) Create(ctx context.Context, detail *models.ShipmentDetail) error {
	ex := s.execer(ctx)
	query := `
		INSERT INTO shipments (
			id, reference_id, name, mode, shipment_type, carrier, status,
			preclear_token, created_by, row_version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := ex.ExecContext(ctx, query,
		uuid.UUID(detail.ID), detail.ReferenceID, detail.Name, string(detail.Mode),
		string(detail.ShipmentType), detail.Carrier, string(detail.Status),
		nullString(detail.PreclearToken), nullUserID(detail.CreatedBy),
		detail.RowVersion, detail.CreatedAt, detail.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", mapPgError(err))
	}

	for _, p := range detail.Parties {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO shipment_parties (
				id, shipment_id, party_type, company_name, contact_name, email,
				phone, address_line, city, state, postal_code, country_code
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.ID, uuid.UUID(p.ShipmentID), string(p.PartyType), p.CompanyName,
			p.ContactName, p.Email, p.Phone, p.AddressLine, p.City, p.State,
			p.PostalCode, p.CountryCode,
		)
		if err != nil {
			return fmt.Errorf("insert party: %w", mapPgError(err))
		}
	}
	for _, item := range detail.Items {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO shipment_items (
				id, shipment_id, description, hs_code, quantity, unit_price,
				total_value, country_of_origin, export_reason
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, uuid.UUID(item.ShipmentID), item.Description, item.HSCode,
			item.Quantity, item.UnitPrice, item.TotalValue, item.CountryOfOrigin,
			string(item.ExportReason),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", mapPgError(err))
		}
	}
	for _, pkg := range detail.Packages {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO shipment_packages (
				id, shipment_id, package_type, length, width, height,
				dimension_unit, weight, weight_unit, quantity
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			pkg.ID, uuid.UUID(pkg.ShipmentID), string(pkg.PackageType), pkg.Length,
			pkg.Width, pkg.Height, pkg.DimensionUnit, pkg.Weight, pkg.WeightUnit,
			pkg.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert package: %w", mapPgError(err))
		}
	}
	if detail.Service != nil {
		svc := detail.Service
		_, err := ex.ExecContext(ctx, `
			INSERT INTO shipment_services (
				shipment_id, service_level, incoterm, bill_to, currency,
				declared_value, insurance_required, pickup_type
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.UUID(svc.ShipmentID), string(svc.ServiceLevel), svc.Incoterm,
			svc.BillTo, svc.Currency, svc.DeclaredValue, svc.InsuranceRequired,
			string(svc.PickupType),
		)
		if err != nil {
			return fmt.Errorf("insert service: %w", mapPgError(err))
		}
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error) {
	ex := s.execer(ctx)
	detail := &models.ShipmentDetail{}

	var (
		mode, shipmentType, status string
		token                      sql.NullString
		createdBy                  uuid.NullUUID
		rawID                      uuid.UUID
	)
	err := ex.QueryRowContext(ctx, `
		SELECT id, reference_id, name, mode, shipment_type, carrier, status,
		       preclear_token, created_by, row_version, created_at, updated_at
		FROM shipments WHERE id = $1`, uuid.UUID(shipmentID),
	).Scan(&rawID, &detail.ReferenceID, &detail.Name, &mode, &shipmentType,
		&detail.Carrier, &status, &token, &createdBy, &detail.RowVersion,
		&detail.CreatedAt, &detail.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select shipment: %w", err)
	}
	detail.ID = id.ShipmentID(rawID)
	detail.Mode = models.Mode(mode)
	detail.ShipmentType = models.ShipmentType(shipmentType)
	parsedStatus, err := models.ParseStatus(status)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("stored shipment %s has invalid status %q", rawID, status))
	}
	detail.Status = parsedStatus
	detail.PreclearToken = token.String
	if createdBy.Valid {
		creator := id.UserID(createdBy.UUID)
		detail.CreatedBy = &creator
	}

	if err := s.loadChildren(ctx, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Postgres) loadChildren(ctx context.Context, detail *models.ShipmentDetail) error {
	ex := s.execer(ctx)
	sid := uuid.UUID(detail.ID)

	rows, err := ex.QueryContext(ctx, `
		SELECT id, party_type, company_name, contact_name, email, phone,
		       address_line, city, state, postal_code, country_code
		FROM shipment_parties WHERE shipment_id = $1 ORDER BY party_type`, sid)
	if err != nil {
		return fmt.Errorf("select parties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p := models.Party{ShipmentID: detail.ID}
		var partyType string
		if err := rows.Scan(&p.ID, &partyType, &p.CompanyName, &p.ContactName,
			&p.Email, &p.Phone, &p.AddressLine, &p.City, &p.State,
			&p.PostalCode, &p.CountryCode); err != nil {
			return fmt.Errorf("scan party: %w", err)
		}
		p.PartyType = models.PartyType(partyType)
		detail.Parties = append(detail.Parties, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemRows, err := ex.QueryContext(ctx, `
		SELECT id, description, hs_code, quantity, unit_price, total_value,
		       country_of_origin, export_reason
		FROM shipment_items WHERE shipment_id = $1 ORDER BY id`, sid)
	if err != nil {
		return fmt.Errorf("select items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		item := models.Item{ShipmentID: detail.ID}
		var reason string
		if err := itemRows.Scan(&item.ID, &item.Description, &item.HSCode,
			&item.Quantity, &item.UnitPrice, &item.TotalValue,
			&item.CountryOfOrigin, &reason); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		item.ExportReason = models.ExportReason(reason)
		detail.Items = append(detail.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	pkgRows, err := ex.QueryContext(ctx, `
		SELECT id, package_type, length, width, height, dimension_unit,
		       weight, weight_unit, quantity
		FROM shipment_packages WHERE shipment_id = $1 ORDER BY id`, sid)
	if err != nil {
		return fmt.Errorf("select packages: %w", err)
	}
	defer pkgRows.Close()
	for pkgRows.Next() {
		pkg := models.Package{ShipmentID: detail.ID}
		var packageType string
		if err := pkgRows.Scan(&pkg.ID, &packageType, &pkg.Length, &pkg.Width,
			&pkg.Height, &pkg.DimensionUnit, &pkg.Weight, &pkg.WeightUnit,
			&pkg.Quantity); err != nil {
			return fmt.Errorf("scan package: %w", err)
		}
		pkg.PackageType = models.PackageType(packageType)
		detail.Packages = append(detail.Packages, pkg)
	}
	if err := pkgRows.Err(); err != nil {
		return err
	}

	svc := models.ServiceDetail{ShipmentID: detail.ID}
	var serviceLevel, pickupType string
	err = ex.QueryRowContext(ctx, `
		SELECT service_level, incoterm, bill_to, currency, declared_value,
		       insurance_required, pickup_type
		FROM shipment_services WHERE shipment_id = $1`, sid,
	).Scan(&serviceLevel, &svc.Incoterm, &svc.BillTo, &svc.Currency,
		&svc.DeclaredValue, &svc.InsuranceRequired, &pickupType)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select service: %w", err)
	default:
		svc.ServiceLevel = compliance.ServiceLevel(serviceLevel)
		svc.PickupType = models.PickupType(pickupType)
		detail.Service = &svc
	}

	rec := models.ComplianceRecord{ShipmentID: detail.ID}
	var riskLevel, aiStatus string
	var notes []byte
	err = ex.QueryRowContext(ctx, `
		SELECT dangerous_goods, lithium_battery, food_pharma,
		       export_license_required, restricted, sanctioned_country, eccn,
		       risk_level, ai_score, ai_status, ai_notes, evaluated_at
		FROM shipment_compliance WHERE shipment_id = $1`, sid,
	).Scan(&rec.DangerousGoods, &rec.LithiumBattery, &rec.FoodPharma,
		&rec.ExportLicenseRequired, &rec.Restricted, &rec.SanctionedCountry,
		&rec.ECCN, &riskLevel, &rec.AiScore, &aiStatus, &notes, &rec.EvaluatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select compliance: %w", err)
	default:
		rec.RiskLevel = compliance.RiskLevel(riskLevel)
		rec.AiStatus = compliance.AiStatus(aiStatus)
		if len(notes) > 0 {
			if err := json.Unmarshal(notes, &rec.AiNotes); err != nil {
				return fmt.Errorf("decode ai notes: %w", err)
			}
		}
		detail.Compliance = &rec
	}

	docs, err := s.ListDocuments(ctx, detail.ID)
	if err != nil {
		return err
	}
	detail.Documents = docs

	findingRows, err := ex.QueryContext(ctx, `
		SELECT id, rule_code, severity, message, suggested_action,
		       missing_document, details, created_at
		FROM ai_findings WHERE shipment_id = $1 ORDER BY created_at, id`, sid)
	if err != nil {
		return fmt.Errorf("select findings: %w", err)
	}
	defer findingRows.Close()
	for findingRows.Next() {
		f := models.Finding{ShipmentID: detail.ID}
		var severity string
		var details []byte
		if err := findingRows.Scan(&f.ID, &f.RuleCode, &severity, &f.Message,
			&f.SuggestedAction, &f.MissingDocument, &details, &f.CreatedAt); err != nil {
			return fmt.Errorf("scan finding: %w", err)
		}
		f.Severity = compliance.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &f.Details); err != nil {
				return fmt.Errorf("decode finding details: %w", err)
			}
		}
		detail.Findings = append(detail.Findings, f)
	}
	return findingRows.Err()
}

func (s *Postgres) List(ctx context.Context, page, pageSize int) ([]models.Shipment, error) {
	offset := (page - 1) * pageSize
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, reference_id, name, mode, shipment_type, carrier, status,
		       preclear_token, created_by, row_version, created_at, updated_at
		FROM shipments
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	result := []models.Shipment{}
	for rows.Next() {
		var (
			sh                         models.Shipment
			rawID                      uuid.UUID
			mode, shipmentType, status string
			token                      sql.NullString
			createdBy                  uuid.NullUUID
		)
		if err := rows.Scan(&rawID, &sh.ReferenceID, &sh.Name, &mode,
			&shipmentType, &sh.Carrier, &status, &token, &createdBy,
			&sh.RowVersion, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		sh.ID = id.ShipmentID(rawID)
		sh.Mode = models.Mode(mode)
		sh.ShipmentType = models.ShipmentType(shipmentType)
		sh.Status = models.Status(status)
		sh.PreclearToken = token.String
		if createdBy.Valid {
			creator := id.UserID(createdBy.UUID)
			sh.CreatedBy = &creator
		}
		result = append(result, sh)
	}
	return result, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, shipment *models.Shipment, expectedVersion int64) error {
	ex := s.execer(ctx)
	res, err := ex.ExecContext(ctx, `
		UPDATE shipments SET
			name = $1, mode = $2, shipment_type = $3, carrier = $4, status = $5,
			preclear_token = $6, row_version = row_version + 1, updated_at = $7
		WHERE id = $8 AND row_version = $9`,
		shipment.Name, string(shipment.Mode), string(shipment.ShipmentType),
		shipment.Carrier, string(shipment.Status),
		nullString(shipment.PreclearToken), shipment.UpdatedAt,
		uuid.UUID(shipment.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if affected == 1 {
		shipment.RowVersion = expectedVersion + 1
		return nil
	}

	// distinguish a stale version from a missing row
	var exists bool
	if err := ex.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM shipments WHERE id = $1)`, uuid.UUID(shipment.ID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *Postgres) Delete(ctx context.Context, shipmentID id.ShipmentID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM shipments WHERE id = $1`, uuid.UUID(shipmentID))
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) UpsertCompliance(ctx context.Context, record *models.ComplianceRecord) error {
	notes, err := json.Marshal(record.AiNotes)
	if err != nil {
		return fmt.Errorf("encode ai notes: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO shipment_compliance (
			shipment_id, dangerous_goods, lithium_battery, food_pharma,
			export_license_required, restricted, sanctioned_country, eccn,
			risk_level, ai_score, ai_status, ai_notes, evaluated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (shipment_id) DO UPDATE SET
			dangerous_goods = EXCLUDED.dangerous_goods,
			lithium_battery = EXCLUDED.lithium_battery,
			food_pharma = EXCLUDED.food_pharma,
			export_license_required = EXCLUDED.export_license_required,
			restricted = EXCLUDED.restricted,
			sanctioned_country = EXCLUDED.sanctioned_country,
			eccn = EXCLUDED.eccn,
			risk_level = EXCLUDED.risk_level,
			ai_score = EXCLUDED.ai_score,
			ai_status = EXCLUDED.ai_status,
			ai_notes = EXCLUDED.ai_notes,
			evaluated_at = EXCLUDED.evaluated_at`,
		uuid.UUID(record.ShipmentID), record.DangerousGoods, record.LithiumBattery,
		record.FoodPharma, record.ExportLicenseRequired, record.Restricted,
		record.SanctionedCountry, record.ECCN, string(record.RiskLevel),
		record.AiScore, string(record.AiStatus), notes, record.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert compliance: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) AppendFindings(ctx context.Context, findings []models.Finding) error {
	ex := s.execer(ctx)
	for _, f := range findings {
		details, err := json.Marshal(f.Details)
		if err != nil {
			return fmt.Errorf("encode finding details: %w", err)
		}
		_, err = ex.ExecContext(ctx, `
			INSERT INTO ai_findings (
				id, shipment_id, rule_code, severity, message,
				suggested_action, missing_document, details, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			f.ID, uuid.UUID(f.ShipmentID), f.RuleCode, string(f.Severity),
			f.Message, f.SuggestedAction, f.MissingDocument, details, f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", mapPgError(err))
		}
	}
	return nil
}

func (s *Postgres) AddDocument(ctx context.Context, doc *models.Document) error {
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO shipment_documents (
			id, shipment_id, document_type, file_name, content_type,
			size_bytes, storage_key, verified_by_broker, version, uploaded_by,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			(SELECT COALESCE(MAX(version), 0) + 1
			 FROM shipment_documents
			 WHERE shipment_id = $2 AND document_type = $3),
			$9, $10)
		RETURNING version`,
		uuid.UUID(doc.ID), uuid.UUID(doc.ShipmentID), string(doc.DocumentType),
		doc.FileName, doc.ContentType, doc.SizeBytes, doc.StorageKey,
		doc.VerifiedByBroker, nullUserID(doc.UploadedBy), doc.CreatedAt,
	).Scan(&doc.Version)
	if err != nil {
		return fmt.Errorf("insert document: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) ListDocuments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, document_type, file_name, content_type, size_bytes,
		       storage_key, verified_by_broker, version, uploaded_by, created_at
		FROM shipment_documents WHERE shipment_id = $1
		ORDER BY document_type, version`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc := models.Document{ShipmentID: shipmentID}
		var rawID uuid.UUID
		var docType string
		var uploadedBy uuid.NullUUID
		if err := rows.Scan(&rawID, &docType, &doc.FileName, &doc.ContentType,
			&doc.SizeBytes, &doc.StorageKey, &doc.VerifiedByBroker,
			&doc.Version, &uploadedBy, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.ID = id.DocumentID(rawID)
		doc.DocumentType = models.DocumentType(docType)
		if uploadedBy.Valid {
			uploader := id.UserID(uploadedBy.UUID)
			doc.UploadedBy = &uploader
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Postgres) AddTracking(ctx context.Context, event *models.TrackingEvent) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO shipment_tracking (
			id, shipment_id, status, location, description, occurred_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, uuid.UUID(event.ShipmentID), event.Status, event.Location,
		event.Description, event.OccurredAt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) ListTracking(ctx context.Context, shipmentID id.ShipmentID) ([]models.TrackingEvent, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, status, location, description, occurred_at, created_at
		FROM shipment_tracking WHERE shipment_id = $1
		ORDER BY occurred_at, id`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	defer rows.Close()

	events := []models.TrackingEvent{}
	for rows.Next() {
		event := models.TrackingEvent{ShipmentID: shipmentID}
		if err := rows.Scan(&event.ID, &event.Status, &event.Location,
			&event.Description, &event.OccurredAt, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Postgres) AddMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO shipment_messages (
			id, shipment_id, sender_id, sender_role, body, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, uuid.UUID(msg.ShipmentID), nullUserID(msg.SenderID),
		string(msg.SenderRole), msg.Body, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) ListMessages(ctx context.Context, shipmentID id.ShipmentID) ([]models.Message, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, sender_id, sender_role, body, created_at
		FROM shipment_messages WHERE shipment_id = $1
		ORDER BY created_at, id`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		msg := models.Message{ShipmentID: shipmentID}
		var senderID uuid.NullUUID
		var role string
		if err := rows.Scan(&msg.ID, &senderID, &role, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if senderID.Valid {
			sender := id.UserID(senderID.UUID)
			msg.SenderID = &sender
		}
		msg.SenderRole = id.Role(role)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Postgres) CreatePayment(ctx context.Context, payment *models.Payment) error {
	breakdown, err := json.Marshal(payment.Breakdown)
	if err != nil {
		return fmt.Errorf("encode payment breakdown: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO payments (
			id, shipment_id, amount, currency, status, breakdown, paid_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(payment.ID), uuid.UUID(payment.ShipmentID), payment.Amount,
		payment.Currency, string(payment.Status), breakdown,
		nullTime(payment.PaidAt), payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET status = $1, paid_at = $2, updated_at = $3
		WHERE id = $4`,
		string(payment.Status), nullTime(payment.PaidAt), payment.UpdatedAt,
		uuid.UUID(payment.ID),
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListPayments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Payment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, amount, currency, status, breakdown, paid_at, created_at, updated_at
		FROM payments WHERE shipment_id = $1
		ORDER BY created_at, id`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		payment := models.Payment{ShipmentID: shipmentID}
		var rawID uuid.UUID
		var status string
		var breakdown []byte
		var paidAt sql.NullTime
		if err := rows.Scan(&rawID, &payment.Amount, &payment.Currency, &status,
			&breakdown, &paidAt, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payment.ID = id.PaymentID(rawID)
		payment.Status = models.PaymentStatus(status)
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &payment.Breakdown); err != nil {
				return nil, fmt.Errorf("decode payment breakdown: %w", err)
			}
		}
		if paidAt.Valid {
			t := paidAt.Time
			payment.PaidAt = &t
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (s *Postgres) UpsertPendingReview(ctx context.Context, review *models.BrokerReview) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO broker_reviews (
			id, shipment_id, broker_id, status, comments, created_at, decided_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (shipment_id) DO UPDATE SET
			id = EXCLUDED.id,
			broker_id = EXCLUDED.broker_id,
			status = EXCLUDED.status,
			comments = EXCLUDED.comments,
			created_at = EXCLUDED.created_at,
			decided_at = EXCLUDED.decided_at`,
		review.ID, uuid.UUID(review.ShipmentID), nullUserID(review.BrokerID),
		string(review.Status), review.Comments, review.CreatedAt,
		nullTime(review.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert review: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) LatestReview(ctx context.Context, shipmentID id.ShipmentID) (*models.BrokerReview, error) {
	review := &models.BrokerReview{ShipmentID: shipmentID}
	var brokerID uuid.NullUUID
	var status string
	var decidedAt sql.NullTime
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, broker_id, status, comments, created_at, decided_at
		FROM broker_reviews WHERE shipment_id = $1`, uuid.UUID(shipmentID),
	).Scan(&review.ID, &brokerID, &status, &review.Comments, &review.CreatedAt, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select review: %w", err)
	}
	if brokerID.Valid {
		broker := id.UserID(brokerID.UUID)
		review.BrokerID = &broker
	}
	review.Status = models.ReviewStatus(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		review.DecidedAt = &t
	}
	return review, nil
}

func (s *Postgres) UpdateReview(ctx context.Context, review *models.BrokerReview) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE broker_reviews SET broker_id = $1, status = $2, comments = $3, decided_at = $4
		WHERE id = $5`,
		nullUserID(review.BrokerID), string(review.Status), review.Comments,
		nullTime(review.DecidedAt), review.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateBrokerRequest(ctx context.Context, request *models.BrokerRequest) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO broker_requests (
			id, shipment_id, requested_by, document_type, message, status,
			created_at, resolved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		request.ID, uuid.UUID(request.ShipmentID), nullUserID(request.RequestedBy),
		string(request.DocumentType), request.Message, string(request.Status),
		request.CreatedAt, nullTime(request.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert broker request: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) OpenBrokerRequests(ctx context.Context, shipmentID id.ShipmentID) ([]models.BrokerRequest, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, requested_by, document_type, message, created_at
		FROM broker_requests
		WHERE shipment_id = $1 AND status = $2
		ORDER BY created_at, id`, uuid.UUID(shipmentID), string(models.RequestOpen))
	if err != nil {
		return nil, fmt.Errorf("list broker requests: %w", err)
	}
	defer rows.Close()

	var requests []models.BrokerRequest
	for rows.Next() {
		req := models.BrokerRequest{ShipmentID: shipmentID, Status: models.RequestOpen}
		var requestedBy uuid.NullUUID
		var docType string
		if err := rows.Scan(&req.ID, &requestedBy, &docType, &req.Message, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan broker request: %w", err)
		}
		if requestedBy.Valid {
			requester := id.UserID(requestedBy.UUID)
			req.RequestedBy = &requester
		}
		req.DocumentType = models.DocumentType(docType)
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (s *Postgres) ResolveBrokerRequest(ctx context.Context, request *models.BrokerRequest) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE broker_requests SET status = $1, resolved_at = $2
		WHERE id = $3`,
		string(request.Status), nullTime(request.ResolvedAt), request.ID,
	)
	if err != nil {
		return fmt.Errorf("resolve broker request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve broker request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
}
