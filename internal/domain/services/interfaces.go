package services

import (
	"context"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
)

// TextNormalizer translates and tidies report text. Implementations return
// the input unchanged when the underlying model fails.
type TextNormalizer interface {
	// IsEnglish reports whether text is primarily English
	IsEnglish(ctx context.Context, text string) bool

	// Translate translates text to English
	Translate(ctx context.Context, text string) string

	// ImproveReadability fixes grammar and spelling without sanitizing.
	// It may return models.SpamDetectedMarker.
	ImproveReadability(ctx context.Context, text string) string
}

// LanguageNamer names the language of a text
type LanguageNamer interface {
	DetectLanguage(ctx context.Context, text string) string
}

// TextClassifier is the external ML classifier
type TextClassifier interface {
	Classify(ctx context.Context, text string) (*models.Classification, error)
}

// LedgerAnchor writes a report snapshot to the external ledger
type LedgerAnchor interface {
	Anchor(ctx context.Context, payload *models.LedgerPayload) (*models.LedgerProof, error)
}

// PlacesSearcher finds places near a point
type PlacesSearcher interface {
	NearbySearch(ctx context.Context, lat, lng float64, radius int, placeType string) ([]models.Place, error)
}

// ReportStore persists reports. Report IDs are immutable and no method
// updates one.
type ReportStore interface {
	IDExistenceChecker

	// Create inserts a new report. A taken ID returns models.ErrDuplicateID.
	Create(ctx context.Context, report *models.Report) error

	// GetByID returns models.ErrNotFound for unknown IDs
	GetByID(ctx context.Context, id string) (*models.Report, error)

	// UpdateLedgerProof back-fills the ledger receipt
	UpdateLedgerProof(ctx context.Context, id string, proof models.LedgerProof) error

	// UpdateAssignment stores the assigned officer and station and bumps the version
	UpdateAssignment(ctx context.Context, id string, officerID int64, stationName string) (*models.Report, error)

	// UpdateAdminReview applies an admin decision. A stale ExpectedVersion
	// returns models.ErrVersionConflict.
	UpdateAdminReview(ctx context.Context, upd *models.AdminReviewUpdate) (*models.Report, error)

	// UpdatePoliceReview applies a police status change with the same CAS rules
	UpdatePoliceReview(ctx context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error)

	// AppendActionProof adds a proof file reference
	AppendActionProof(ctx context.Context, id string, proof string, expectedVersion *int64) (*models.Report, error)
}

// StationDirectory resolves stations and their officers
type StationDirectory interface {
	// FindOrCreateByName returns the station with name, creating it from
	// place when it does not exist yet
	FindOrCreateByName(ctx context.Context, place models.Place) (*models.Station, error)

	// ListOfficersByStation returns every officer linked to the station
	ListOfficersByStation(ctx context.Context, stationID int64) ([]models.Officer, error)

	// GetOfficer returns models.ErrNotFound for unknown IDs
	GetOfficer(ctx context.Context, officerID int64) (*models.Officer, error)

	// GetStation returns models.ErrNotFound for unknown IDs
	GetStation(ctx context.Context, stationID int64) (*models.Station, error)
}

// EventPublisher publishes report lifecycle events
type EventPublisher interface {
	PublishReportEvent(ctx context.Context, event *streaming.ReportEvent) error
}

// AnchorRetryQueue schedules a later ledger anchoring attempt
type AnchorRetryQueue interface {
	EnqueueAnchor(ctx context.Context, reportID string) error
}

