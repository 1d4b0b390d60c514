package service

import (
	"context"
	"errors"
	"io"
	"time"

	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

// UploadInput describes one document upload.
type UploadInput struct {
	DocumentType models.DocumentType
	FileName     string
	ContentType  string
	Size         int64
	Contents     io.Reader
}

// UploadDocument stores the blob, appends the metadata row with the next
// version for its (shipment, type) pair, and, when the upload satisfies an
// open broker request on a requires_resolution shipment, moves the shipment
// back to pending_validation.
func (s *Service) UploadDocument(ctx context.Context, shipmentID id.ShipmentID, input UploadInput) (*models.Document, error) {
	now := requestcontext.Now(ctx)

	docType, err := models.ParseDocumentType(string(input.DocumentType))
	if err != nil {
		return nil, err
	}
	if input.FileName == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "fileName", "fileName is required")
	}

	doc := &models.Document{
		ID:           id.NewDocumentID(),
		ShipmentID:   shipmentID,
		DocumentType: docType,
		FileName:     input.FileName,
		ContentType:  input.ContentType,
		SizeBytes:    input.Size,
		CreatedAt:    now,
	}
	if uploader := requestcontext.UserID(ctx); !uploader.IsNil() {
		doc.UploadedBy = &uploader
	}
	doc.StorageKey = "shipments/" + shipmentID.String() + "/" + string(docType) + "/" + doc.ID.String()

	// blob first: an orphaned object from an aborted transaction is cheap,
	// a metadata row without its blob is not
	if input.Contents != nil && s.blobs != nil {
		if err := s.blobs.Put(ctx, doc.StorageKey, input.Contents, input.Size, input.ContentType); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not store document")
		}
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		detail, err := s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		if detail.Status.IsTerminal() {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"documents cannot be added to a "+detail.Status.String()+" shipment")
		}
		if err := s.store.AddDocument(ctx, doc); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "shipment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not save document")
		}
		return s.resolveOpenRequests(ctx, detail, docType, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentsUploaded.WithLabelValues(string(docType)).Inc()
	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityDocument,
		EntityID: doc.ID.String(),
		Action:   "uploaded",
		Details: map[string]any{
			"shipment_id": shipmentID.String(),
			"type":        string(docType),
			"version":     doc.Version,
		},
	})
	return doc, nil
}

// resolveOpenRequests fulfills broker requests matched by the uploaded type.
// When the last open request is resolved on a requires_resolution shipment,
// the shipment returns to pending_validation for re-evaluation.
func (s *Service) resolveOpenRequests(ctx context.Context, detail *models.ShipmentDetail, docType models.DocumentType, now time.Time) error {
	if detail.Status != models.StatusRequiresResolution {
		return nil
	}
	open, err := s.store.OpenBrokerRequests(ctx, detail.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not load broker requests")
	}
	remaining := 0
	for i := range open {
		if open[i].DocumentType == docType {
			open[i].Status = models.RequestFulfilled
			open[i].ResolvedAt = &now
			if err := s.store.ResolveBrokerRequest(ctx, &open[i]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve broker request")
			}
		} else {
			remaining++
		}
	}
	if remaining > 0 {
		return nil
	}

	sh := detail.Shipment
	expected := sh.RowVersion
	previous := sh.Status
	if err := sh.ApplyTransition(models.StatusPendingValidation, now); err != nil {
		return err
	}
	if err := s.writeShipment(ctx, &sh, expected); err != nil {
		return err
	}
	s.metrics.Transitions.WithLabelValues(previous.String(), sh.Status.String()).Inc()
	detail.Shipment = sh
	return nil
}

// DownloadDocument returns the stored blob and its metadata.
func (s *Service) DownloadDocument(ctx context.Context, shipmentID id.ShipmentID, documentID id.DocumentID) (*models.Document, []byte, error) {
	docs, err := s.store.ListDocuments(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list documents")
	}
	for _, doc := range docs {
		if doc.ID == documentID {
			if s.blobs == nil {
				return &doc, nil, nil
			}
			contents, err := s.blobs.Get(ctx, doc.StorageKey)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return nil, nil, dErrors.New(dErrors.CodeNotFound, "document contents not found")
				}
				return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not fetch document")
			}
			return &doc, contents, nil
		}
	}
	return nil, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
}
