package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/domain/services"
	"xpose-triage/pkg/logger"
)

// Assigner routes reports to officers
type Assigner interface {
	AutoAssign(ctx context.Context, reportID string) (*models.AssignmentResult, error)
	AssignOfficer(ctx context.Context, reportID string, officerID int64) (*models.AssignmentResult, error)
	StationsNearDistrict(ctx context.Context, state, district string) ([]models.Place, error)
	Districts() *services.DistrictIndex
}

// AssignmentHandler handles officer assignment and district lookups
type AssignmentHandler struct {
	assigner Assigner
	logger   *logger.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(assigner Assigner, log *logger.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assigner: assigner,
		logger:   log.WithComponent("assignment-handler"),
	}
}

// AssignRequest is the body of POST /reports/{id}/assign
type AssignRequest struct {
	OfficerID int64 `json:"officer_id"`
}

// AutoAssign handles POST /api/v1/reports/{id}/assign/auto
func (h *AssignmentHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	result, err := h.assigner.AutoAssign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Assign handles POST /api/v1/reports/{id}/assign
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OfficerID <= 0 {
		respondServiceError(w, h.logger, validationError("officer_id", "officer is required"))
		return
	}

	result, err := h.assigner.AssignOfficer(r.Context(), chi.URLParam(r, "id"), req.OfficerID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// States handles GET /api/v1/districts/states
func (h *AssignmentHandler) States(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.assigner.Districts().States())
}

// Districts handles GET /api/v1/districts/states/{state}
func (h *AssignmentHandler) Districts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.assigner.Districts().Districts(chi.URLParam(r, "state")))
}

// NearestDistrictResponse is the body of GET /districts/nearest
type NearestDistrictResponse struct {
	models.District
	DistanceMeters float64 `json:"distance_meters"`
}

// Nearest handles GET /api/v1/districts/nearest?lat=&lng=
func (h *AssignmentHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		respondServiceError(w, h.logger, validationError("location", "lat and lng must be valid coordinates"))
		return
	}

	d, dist, err := h.assigner.Districts().Nearest(lat, lng)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, NearestDistrictResponse{District: d, DistanceMeters: dist})
}

// Stations handles GET /api/v1/districts/stations?state=&district=
func (h *AssignmentHandler) Stations(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	district := r.URL.Query().Get("district")
	if state == "" || district == "" {
		respondServiceError(w, h.logger, validationError("district", "state and district are required"))
		return
	}

	places, err := h.assigner.StationsNearDistrict(r.Context(), state, district)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, places)
}

func validationError(field, msg string) error {
	verr := &models.ValidationError{}
	verr.Add(field, msg)
	return verr
}
