package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/veldmed/practice-platform/internal/connections"
	"github.com/veldmed/practice-platform/internal/history"
	"github.com/veldmed/practice-platform/internal/mail"
	"github.com/veldmed/practice-platform/internal/observability/metrics"
	"github.com/veldmed/practice-platform/internal/prescription"
	"github.com/veldmed/practice-platform/pkg/logging"
)

// ConnectionResolver looks up a sender's stored provider credentials.
type ConnectionResolver interface {
	Resolve(ctx context.Context, identity string) (*connections.EmailConnection, error)
}

// DocumentRenderer produces the prescription PDF bytes.
type DocumentRenderer interface {
	Render(ctx context.Context, p *prescription.Prescription) ([]byte, error)
}

// Deliverer sends the message through the connection's provider.
type Deliverer interface {
	Deliver(ctx context.Context, conn *connections.EmailConnection, msg mail.Message) error
}

// PrescriptionEmailHandler renders a prescription PDF and emails it to the
// patient through the sender's connected provider.
type PrescriptionEmailHandler struct {
	resolver  ConnectionResolver
	renderer  DocumentRenderer
	deliverer Deliverer
	recorder  history.Recorder
	metrics   *metrics.DeliveryMetrics
	logger    *logging.Logger
}

// NewPrescriptionEmailHandler creates the send handler. The recorder and
// metrics may be nil.
func NewPrescriptionEmailHandler(
	resolver ConnectionResolver,
	renderer DocumentRenderer,
	deliverer Deliverer,
	recorder history.Recorder,
	m *metrics.DeliveryMetrics,
	logger *logging.Logger,
) *PrescriptionEmailHandler {
	if resolver == nil || renderer == nil || deliverer == nil {
		panic("handlers: resolver, renderer and deliverer are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PrescriptionEmailHandler{
		resolver:  resolver,
		renderer:  renderer,
		deliverer: deliverer,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
	}
}

// SendPrescriptionRequest is the request body for sending a prescription.
type SendPrescriptionRequest struct {
	SenderIdentity string                     `json:"senderIdentity"`
	Prescription   *prescription.Prescription `json:"prescription"`
	Message        string                     `json:"message"`
}

// Send handles the full pipeline: validate, resolve the connection, render
// the PDF and dispatch the email.
// POST /prescriptions/email
func (h *PrescriptionEmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendPrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if detail := validateSendRequest(&req); detail != "" {
		jsonErrorDetails(w, "invalid request", detail, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	conn, err := h.resolver.Resolve(ctx, req.SenderIdentity)
	if err != nil {
		if errors.Is(err, connections.ErrNotFound) || errors.Is(err, connections.ErrNotConnected) {
			jsonErrorDetails(w, "Email not connected, please connect in settings", err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("connection lookup failed", "identity", req.SenderIdentity, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	pdf, err := h.renderer.Render(ctx, req.Prescription)
	if err != nil {
		h.metrics.ObserveRenderDuration("failed", time.Since(start).Seconds())
		h.logger.Error("prescription render failed",
			"identity", req.SenderIdentity, "error", err)
		jsonErrorDetails(w, "failed to generate prescription document", err.Error(), http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveRenderDuration("rendered", time.Since(start).Seconds())

	msg := mail.Message{
		From:           req.SenderIdentity,
		To:             req.Prescription.PatientEmail,
		Subject:        prescriptionSubject(req.Prescription),
		Body:           req.Message,
		AttachmentName: req.Prescription.AttachmentFilename(),
		Attachment:     pdf,
	}

	if err := h.deliverer.Deliver(ctx, conn, msg); err != nil {
		h.record(ctx, &req, conn, history.OutcomeFailed, len(pdf), err)
		h.logger.Error("prescription email failed",
			"identity", req.SenderIdentity,
			"provider", conn.Provider,
			"document_bytes", len(pdf),
			"error", err,
		)
		jsonErrorDetails(w, "failed to send prescription email", err.Error(), http.StatusInternalServerError)
		return
	}

	h.record(ctx, &req, conn, history.OutcomeSent, len(pdf), nil)
	h.logger.Info("prescription email sent",
		"identity", req.SenderIdentity,
		"provider", conn.Provider,
		"document_bytes", len(pdf),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email sent successfully",
	})
}

// validateSendRequest returns an empty string when the request is complete.
func validateSendRequest(req *SendPrescriptionRequest) string {
	if strings.TrimSpace(req.SenderIdentity) == "" {
		return "senderIdentity is required"
	}
	if req.Prescription == nil {
		return "prescription is required"
	}
	if strings.TrimSpace(req.Message) == "" {
		return "message is required"
	}
	if strings.TrimSpace(req.Prescription.PatientEmail) == "" {
		return "prescription.patientEmail is required"
	}
	return ""
}

func prescriptionSubject(p *prescription.Prescription) string {
	if p.PatientName != "" {
		return "Prescription for " + p.PatientName
	}
	return "Your prescription"
}

func (h *PrescriptionEmailHandler) record(ctx context.Context, req *SendPrescriptionRequest, conn *connections.EmailConnection, outcome history.Outcome, docBytes int, sendErr error) {
	if h.recorder == nil {
		return
	}
	rec := &history.Record{
		SenderIdentity: req.SenderIdentity,
		Provider:       string(conn.Provider),
		PrescriptionID: req.Prescription.PrescriptionNumber,
		Recipient:      req.Prescription.PatientEmail,
		Outcome:        outcome,
		DocumentBytes:  docBytes,
	}
	if sendErr != nil {
		rec.ErrorMessage = sendErr.Error()
	}
	if err := h.recorder.Record(ctx, rec); err != nil {
		h.logger.Warn("failed to record send history", "identity", req.SenderIdentity, "error", err)
	}
}
