package models

import "time"

// SubmissionRequest is a citizen's crime report as received from a client
type SubmissionRequest struct {
	CategoryID    int64    `json:"category_id"`
	CrimeTypeID   *int64   `json:"crime_type_id,omitempty"`
	CrimeType     string   `json:"crime_type,omitempty"`
	Description   string   `json:"description"`
	Place         string   `json:"place"`
	District      string   `json:"district,omitempty"`
	State         string   `json:"state,omitempty"`
	PoliceStation string   `json:"police_station"`
	Attachments   []string `json:"attachments,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

// ResponseStatus is the client-facing status of a submission
type ResponseStatus string

const (
	StatusReceivedPendingReview  ResponseStatus = "RECEIVED_PENDING_REVIEW"
	StatusReceivedHighPriority   ResponseStatus = "RECEIVED_HIGH_PRIORITY"
	StatusReceivedMediumPriority ResponseStatus = "RECEIVED_MEDIUM_PRIORITY"
	StatusReceivedStandard       ResponseStatus = "RECEIVED_STANDARD"
	StatusRejected               ResponseStatus = "REJECTED"
	StatusError                  ResponseStatus = "ERROR"
)

// ResponseStatusFor derives the client-facing tier of an accepted report.
// It never affects what is persisted.
func ResponseStatusFor(c *Classification) ResponseStatus {
	switch {
	case c.NeedsReview:
		return StatusReceivedPendingReview
	case c.Urgency.Rank() >= UrgencyHigh.Rank():
		return StatusReceivedHighPriority
	case c.Urgency == UrgencyMedium:
		return StatusReceivedMediumPriority
	default:
		return StatusReceivedStandard
	}
}

// SubmissionResponse is returned to the citizen after triage
type SubmissionResponse struct {
	Success                 bool            `json:"success"`
	TrackingID              string          `json:"tracking_id,omitempty"`
	Status                  ResponseStatus  `json:"status"`
	Message                 string          `json:"message,omitempty"`
	OriginalDescription     string          `json:"original_description"`
	ProcessedDescription    string          `json:"processed_description,omitempty"`
	TranslatedDescription   string          `json:"translated_description,omitempty"`
	Classification          *Classification `json:"classification,omitempty"`
	RequiresUrgentAttention bool            `json:"requires_urgent_attention"`
	RejectionReason         string          `json:"rejection_reason,omitempty"`
	RejectionPhase          DecisionPhase   `json:"rejection_phase,omitempty"`
	ImprovementSuggestions  []string        `json:"improvement_suggestions,omitempty"`
	ProcessingNotes         string          `json:"processing_notes,omitempty"`
	BlockchainHash          *string         `json:"blockchain_hash"`
	RequiresRetry           bool            `json:"requires_retry,omitempty"`
	SubmittedAt             time.Time       `json:"submitted_at"`
}

// StatusView is the public status lookup for a tracking ID
type StatusView struct {
	TrackingID              string         `json:"tracking_id"`
	Status                  OutcomeStatus  `json:"status"`
	ResponseStatus          ResponseStatus `json:"response_status"`
	AdminStatus             AdminStatus    `json:"admin_status"`
	PoliceStatus            PoliceStatus   `json:"police_status"`
	Message                 string         `json:"message"`
	EstimatedProcessingTime string         `json:"estimated_processing_time"`
	SubmittedAt             time.Time      `json:"submitted_at"`
	LastUpdated             time.Time      `json:"last_updated"`
	BlockchainHash          *string        `json:"blockchain_hash"`
}
