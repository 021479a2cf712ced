package services

import (
	"strings"
	"unicode/utf8"

	"xpose-triage/internal/domain/models"
)

const defaultMinDescriptionLength = 10

// ValidateSubmission checks a submission before any collaborator is called.
// It returns nil or a *models.ValidationError.
func ValidateSubmission(req *models.SubmissionRequest, minDescriptionLength int) error {
	if minDescriptionLength <= 0 {
		minDescriptionLength = defaultMinDescriptionLength
	}

	verr := &models.ValidationError{}
	if req == nil {
		verr.Add("body", "submission is required")
		return verr
	}

	if req.CategoryID <= 0 {
		verr.Add("category_id", "category is required")
	}

	desc := strings.TrimSpace(req.Description)
	switch {
	case desc == "":
		verr.Add("description", "description is required")
	case utf8.RuneCountInString(desc) < minDescriptionLength:
		verr.Add("description", "description is too short")
	}

	if strings.TrimSpace(req.Place) == "" {
		verr.Add("place", "place is required")
	}
	if strings.TrimSpace(req.PoliceStation) == "" {
		verr.Add("police_station", "police station is required")
	}

	if (req.Latitude == nil) != (req.Longitude == nil) {
		verr.Add("location", "latitude and longitude must be given together")
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		verr.Add("latitude", "latitude out of range")
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		verr.Add("longitude", "longitude out of range")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
