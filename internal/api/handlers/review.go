package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apimiddleware "xpose-triage/internal/api/middleware"
	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

// Reviewer applies staff review decisions
type Reviewer interface {
	UpdateAdminStatus(ctx context.Context, upd *models.AdminReviewUpdate) (*models.Report, error)
	UpdatePoliceStatus(ctx context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error)
	AppendActionProof(ctx context.Context, reportID, proof string, expectedVersion *int64) (*models.Report, error)
}

// ReviewHandler handles admin and police review endpoints
type ReviewHandler struct {
	review Reviewer
	logger *logger.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(review Reviewer, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		review: review,
		logger: log.WithComponent("review-handler"),
	}
}

// ActionProofRequest is the body of POST /reports/{id}/action-proof
type ActionProofRequest struct {
	ActionProof     string `json:"action_proof"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// UpdateAdminStatus handles PUT /api/v1/reports/{id}/admin-status
func (h *ReviewHandler) UpdateAdminStatus(w http.ResponseWriter, r *http.Request) {
	var upd models.AdminReviewUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	upd.ReportID = chi.URLParam(r, "id")
	if upd.ReviewedByID == nil {
		upd.ReviewedByID = subjectID(r)
	}

	report, err := h.review.UpdateAdminStatus(r.Context(), &upd)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UpdatePoliceStatus handles PUT /api/v1/reports/{id}/police-status
func (h *ReviewHandler) UpdatePoliceStatus(w http.ResponseWriter, r *http.Request) {
	var upd models.PoliceReviewUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	upd.ReportID = chi.URLParam(r, "id")

	report, err := h.review.UpdatePoliceStatus(r.Context(), &upd)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// AppendActionProof handles POST /api/v1/reports/{id}/action-proof
func (h *ReviewHandler) AppendActionProof(w http.ResponseWriter, r *http.Request) {
	var req ActionProofRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.review.AppendActionProof(r.Context(), chi.URLParam(r, "id"), req.ActionProof, req.ExpectedVersion)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// subjectID returns the numeric token subject, if any
func subjectID(r *http.Request) *int64 {
	claims := apimiddleware.GetClaims(r.Context())
	if claims == nil {
		return nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
