package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUpstream          = "UPSTREAM_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
	CodeBadRequest        = "BAD_REQUEST"
)

const maxRequestBody int64 = 1 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps domain errors to HTTP replies. Internal details
// are logged, never returned.
func respondServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	var (
		verr   *models.ValidationError
		aerr   *models.AssignmentError
		extErr *models.ExternalServiceError
	)

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid request",
			Code:   CodeValidation,
			Fields: verr.Fields,
		})
	case errors.As(err, &aerr):
		respondJSON(w, assignmentStatus(aerr.Kind), ErrorResponse{
			Error:     aerr.Error(),
			Code:      string(aerr.Kind),
			Retryable: aerr.Retryable,
		})
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, models.ErrVersionConflict):
		respondError(w, http.StatusConflict, CodeVersionConflict, "report was modified by another reviewer")
	case errors.Is(err, models.ErrInvalidTransition):
		respondError(w, http.StatusConflict, CodeInvalidTransition, err.Error())
	case errors.As(err, &extErr):
		log.Error().Err(err).Str("service", extErr.Service).Msg("upstream failure")
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:     extErr.Service + " unavailable",
			Code:      CodeUpstream,
			Retryable: true,
		})
	default:
		log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func assignmentStatus(kind models.AssignmentErrorKind) int {
	switch kind {
	case models.AssignmentMissingCoordinates:
		return http.StatusUnprocessableEntity
	case models.AssignmentNoStations:
		return http.StatusNotFound
	case models.AssignmentNoOfficers:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}
