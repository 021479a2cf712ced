package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/domain/services"
	"xpose-triage/pkg/logger"
)

// Submitter triages citizen submissions
type Submitter interface {
	Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmissionResponse, error)
	Status(ctx context.Context, id string) (*models.StatusView, error)
}

// ReportReader loads stored reports
type ReportReader interface {
	GetByID(ctx context.Context, id string) (*models.Report, error)
}

// ReportsHandler handles report submission and lookup
type ReportsHandler struct {
	triage Submitter
	store  ReportReader
	logger *logger.Logger
}

// NewReportsHandler creates a new ReportsHandler
func NewReportsHandler(triage Submitter, store ReportReader, log *logger.Logger) *ReportsHandler {
	return &ReportsHandler{
		triage: triage,
		store:  store,
		logger: log.WithComponent("reports-handler"),
	}
}

// Submit handles POST /api/v1/reports. Accepted and rejected reports both
// return 200; a pipeline failure returns 503 with requires_retry set.
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.triage.Submit(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if resp.Status == models.StatusError {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// Status handles GET /api/v1/reports/{id}/status
func (h *ReportsHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.triage.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// VerifyTrackingID handles GET /api/v1/reports/{id}/verify. It checks the
// checksum only and never touches the store.
func (h *ReportsHandler) VerifyTrackingID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	respondJSON(w, http.StatusOK, map[string]any{
		"tracking_id": id,
		"valid":       services.VerifyTrackingID(id),
	})
}
