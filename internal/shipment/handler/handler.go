package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"preclear/internal/compliance"
	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/shipment/models"
	"preclear/internal/shipment/service"
	"preclear/internal/transport/http/shared"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 25 << 20

// Service defines the interface for shipment operations.
type Service interface {
	Create(ctx context.Context, detail *models.ShipmentDetail) (*models.ShipmentDetail, error)
	Get(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error)
	List(ctx context.Context, page, pageSize int) ([]models.Shipment, error)
	Update(ctx context.Context, shipmentID id.ShipmentID, fields service.UpdateFields) (*models.Shipment, error)
	Delete(ctx context.Context, shipmentID id.ShipmentID) error

	RequestAiEvaluation(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error)
	RequestBrokerReview(ctx context.Context, shipmentID id.ShipmentID) (*models.BrokerReview, error)
	SubmitBrokerDecision(ctx context.Context, shipmentID id.ShipmentID, input service.DecisionInput) (*models.ShipmentDetail, error)
	Book(ctx context.Context, shipmentID id.ShipmentID, preclearToken string) (*models.Shipment, error)

	UploadDocument(ctx context.Context, shipmentID id.ShipmentID, input service.UploadInput) (*models.Document, error)
	DownloadDocument(ctx context.Context, shipmentID id.ShipmentID, documentID id.DocumentID) (*models.Document, []byte, error)

	AppendTracking(ctx context.Context, shipmentID id.ShipmentID, event models.TrackingEvent) (*models.TrackingEvent, error)
	ListTracking(ctx context.Context, shipmentID id.ShipmentID) ([]models.TrackingEvent, error)
	PostMessage(ctx context.Context, shipmentID id.ShipmentID, body string) (*models.Message, error)
	ListMessages(ctx context.Context, shipmentID id.ShipmentID) ([]models.Message, error)

	QuotePrice(ctx context.Context, shipmentID id.ShipmentID) (*compliance.Quote, error)
	CreatePayment(ctx context.Context, shipmentID id.ShipmentID) (*models.Payment, error)
	MarkPaymentPaid(ctx context.Context, shipmentID id.ShipmentID, paymentID id.PaymentID) (*models.Payment, error)
	ListPayments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Payment, error)
}

// Handler wires shipment endpoints to the shipment service.
type Handler struct {
	logger       *slog.Logger
	shipments    Service
	metrics      *platformMetrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new shipment Handler.
func New(
	shipments Service,
	logger *slog.Logger,
	metrics *platformMetrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		shipments:    shipments,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the shipment routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	shipmentRouter := chi.NewRouter()
	shipmentRouter.Use(middleware.Recovery(h.logger))
	shipmentRouter.Use(middleware.RequestID)
	shipmentRouter.Use(middleware.Metadata)
	shipmentRouter.Use(middleware.Logger(h.logger))
	shipmentRouter.Use(middleware.Timeout(30 * time.Second))
	shipmentRouter.Use(middleware.ContentTypeJSON)
	shipmentRouter.Use(middleware.Latency(h.metrics))
	shipmentRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	shipmentRouter.Post("/", h.handleCreate)
	shipmentRouter.Get("/", h.handleList)
	shipmentRouter.Get("/{shipmentID}", h.handleGet)
	shipmentRouter.Put("/{shipmentID}", h.handleUpdate)
	shipmentRouter.Delete("/{shipmentID}", h.handleDelete)

	shipmentRouter.Post("/{shipmentID}/evaluate", h.handleEvaluate)
	shipmentRouter.Post("/{shipmentID}/book", h.handleBook)

	brokerOnly := middleware.RequireRole(h.logger, id.RoleBroker, id.RoleAdmin)
	shipmentRouter.Post("/{shipmentID}/review", h.handleRequestReview)
	shipmentRouter.With(brokerOnly).Post("/{shipmentID}/decision", h.handleDecision)

	shipmentRouter.Post("/{shipmentID}/documents", h.handleUploadDocument)
	shipmentRouter.Get("/{shipmentID}/documents/{documentID}", h.handleDownloadDocument)

	shipmentRouter.Post("/{shipmentID}/tracking", h.handleAppendTracking)
	shipmentRouter.Get("/{shipmentID}/tracking", h.handleListTracking)
	shipmentRouter.Post("/{shipmentID}/messages", h.handlePostMessage)
	shipmentRouter.Get("/{shipmentID}/messages", h.handleListMessages)

	shipmentRouter.Get("/{shipmentID}/quote", h.handleQuote)
	shipmentRouter.Post("/{shipmentID}/payments", h.handleCreatePayment)
	shipmentRouter.Get("/{shipmentID}/payments", h.handleListPayments)
	shipmentRouter.Post("/{shipmentID}/payments/{paymentID}/pay", h.handleSettlePayment)

	r.Mount("/shipments", shipmentRouter)
}

// shipmentID pulls and validates the path parameter, writing the 400 itself.
func (h *Handler) shipmentID(w http.ResponseWriter, r *http.Request) (id.ShipmentID, bool) {
	sid, err := id.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "shipmentId", "invalid shipment id"))
		return id.ShipmentID{}, false
	}
	return sid, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req createShipmentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid create shipment request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	detail, err := h.shipments.Create(ctx, req.toDetail())
	if err != nil {
		h.writeServiceError(ctx, w, "create shipment", err)
		return
	}

	h.logger.InfoContext(ctx, "shipment created",
		"request_id", requestID,
		"shipment_id", detail.ID,
		"reference_id", detail.ReferenceID,
	)
	w.Header().Set("Location", fmt.Sprintf("/api/shipments/%s", detail.ID))
	shared.WriteJSON(w, http.StatusCreated, fromDetail(detail))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	shipments, err := h.shipments.List(ctx, page, pageSize)
	if err != nil {
		h.writeServiceError(ctx, w, "list shipments", err)
		return
	}

	resp := listResponse{Shipments: []shipmentResponse{}, Page: page, PageSize: pageSize}
	if resp.Page < 1 {
		resp.Page = 1
	}
	if resp.PageSize < 1 || resp.PageSize > 100 {
		resp.PageSize = 25
	}
	for _, sh := range shipments {
		resp.Shipments = append(resp.Shipments, fromShipment(sh))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	detail, err := h.shipments.Get(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "get shipment", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromDetail(detail))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req updateShipmentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	fields, err := req.toFields()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	sh, err := h.shipments.Update(ctx, sid, fields)
	if err != nil {
		h.writeServiceError(ctx, w, "update shipment", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromShipment(*sh))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	if err := h.shipments.Delete(ctx, sid); err != nil {
		h.writeServiceError(ctx, w, "delete shipment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	detail, err := h.shipments.RequestAiEvaluation(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "evaluate shipment", err)
		return
	}

	h.logger.InfoContext(ctx, "shipment evaluated",
		"request_id", requestID,
		"shipment_id", sid,
		"status", detail.Status,
	)
	shared.WriteJSON(w, http.StatusOK, fromDetail(detail))
}

func (h *Handler) handleRequestReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	review, err := h.shipments.RequestBrokerReview(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "request broker review", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, fromReview(review))
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	detail, err := h.shipments.SubmitBrokerDecision(ctx, sid, input)
	if err != nil {
		h.writeServiceError(ctx, w, "submit broker decision", err)
		return
	}

	h.logger.InfoContext(ctx, "broker decision recorded",
		"request_id", requestID,
		"shipment_id", sid,
		"decision", req.Decision,
		"status", detail.Status,
	)
	shared.WriteJSON(w, http.StatusOK, decisionResponse{
		Shipment:      fromShipment(detail.Shipment),
		PreclearToken: detail.PreclearToken,
	})
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	sh, err := h.shipments.Book(ctx, sid, req.PreclearToken)
	if err != nil {
		h.writeServiceError(ctx, w, "book shipment", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromShipment(*sh))
}

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with a file part"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "file", "file part is required"))
		return
	}
	defer file.Close()

	doc, err := h.shipments.UploadDocument(ctx, sid, service.UploadInput{
		DocumentType: models.DocumentType(r.FormValue("documentType")),
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Contents:     file,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "upload document", err)
		return
	}

	h.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestID,
		"shipment_id", sid,
		"document_id", doc.ID,
		"document_type", doc.DocumentType,
		"version", doc.Version,
	)
	shared.WriteJSON(w, http.StatusCreated, fromDocument(*doc))
}

func (h *Handler) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "documentId", "invalid document id"))
		return
	}

	doc, contents, err := h.shipments.DownloadDocument(ctx, sid, docID)
	if err != nil {
		h.writeServiceError(ctx, w, "download document", err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(contents)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(contents)
}

func (h *Handler) handleAppendTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req trackingRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	event := models.TrackingEvent{
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
	}
	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "occurredAt", "occurredAt must be RFC 3339"))
			return
		}
		event.OccurredAt = occurredAt
	}

	saved, err := h.shipments.AppendTracking(ctx, sid, event)
	if err != nil {
		h.writeServiceError(ctx, w, "append tracking event", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, fromTracking(*saved))
}

func (h *Handler) handleListTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	events, err := h.shipments.ListTracking(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "list tracking events", err)
		return
	}
	resp := make([]trackingResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, fromTracking(ev))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	msg, err := h.shipments.PostMessage(ctx, sid, req.Body)
	if err != nil {
		h.writeServiceError(ctx, w, "post message", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, fromMessage(*msg))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	messages, err := h.shipments.ListMessages(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "list messages", err)
		return
	}
	resp := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, fromMessage(m))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	quote, err := h.shipments.QuotePrice(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "quote shipment", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	payment, err := h.shipments.CreatePayment(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "create payment", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, fromPayment(*payment))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	payments, err := h.shipments.ListPayments(ctx, sid)
	if err != nil {
		h.writeServiceError(ctx, w, "list payments", err)
		return
	}
	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, fromPayment(p))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSettlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "paymentId", "invalid payment id"))
		return
	}

	payment, err := h.shipments.MarkPaymentPaid(ctx, sid, paymentID)
	if err != nil {
		h.writeServiceError(ctx, w, "settle payment", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromPayment(*payment))
}

// writeServiceError logs server faults and lets shared.WriteError pick the
// status from the error code. Client errors are logged at warn only.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.Is(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "rejected "+op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
