package models

import (
	"time"
)

// OutcomeStatus is the persisted moderation outcome of a report
type OutcomeStatus string

const (
	OutcomeAccepted      OutcomeStatus = "ACCEPTED"
	OutcomeRejected      OutcomeStatus = "REJECTED"
	OutcomePendingReview OutcomeStatus = "PENDING_REVIEW"
)

// IsValid reports whether s is a known outcome status
func (s OutcomeStatus) IsValid() bool {
	switch s {
	case OutcomeAccepted, OutcomeRejected, OutcomePendingReview:
		return true
	}
	return false
}

// Phase marks how far a report progressed through the triage pipeline
type Phase string

const (
	PhasePreProcessing Phase = "PRE_PROCESSING"
	PhaseEnriched      Phase = "GEMINI_ENRICHED"
	PhaseFinalized     Phase = "FINALIZED"
)

// rank returns the ordinal position of the phase, or -1 for unknown values
func (p Phase) rank() int {
	switch p {
	case PhasePreProcessing:
		return 0
	case PhaseEnriched:
		return 1
	case PhaseFinalized:
		return 2
	}
	return -1
}

// IsValid reports whether p is a known phase
func (p Phase) IsValid() bool {
	return p.rank() >= 0
}

// DecisionPhase records which pipeline stage produced a rejection
type DecisionPhase string

const (
	DecisionPreProcessing   DecisionPhase = "PRE_PROCESSING"
	DecisionEnrichment      DecisionPhase = "ENRICHMENT"
	DecisionFinalValidation DecisionPhase = "FINAL_VALIDATION"
)

// Location holds where an incident happened
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// LedgerProof is the tamper-evidence receipt returned by the ledger
type LedgerProof struct {
	Hash      *string    `json:"blockchain_hash,omitempty"`
	TxID      *string    `json:"blockchain_tx_id,omitempty"`
	Timestamp *time.Time `json:"blockchain_timestamp,omitempty"`
}

// IsAnchored reports whether the proof carries a ledger hash
func (p LedgerProof) IsAnchored() bool {
	return p.Hash != nil && *p.Hash != ""
}

// Report is a citizen crime report. ID is the tracking ID and never changes.
type Report struct {
	ID          string `json:"id" db:"id"`
	CategoryID  int64  `json:"category_id" db:"category_id"`
	CrimeTypeID *int64 `json:"crime_type_id,omitempty" db:"crime_type_id"`
	CrimeType   string `json:"crime_type,omitempty" db:"crime_type"`

	OriginalDescription            string `json:"original_description" db:"original_description"`
	TranslatedDescription          string `json:"translated_description,omitempty" db:"translated_description"`
	ReadabilityEnhancedDescription string `json:"readability_enhanced_description,omitempty" db:"readability_enhanced_description"`
	LanguageDetected               string `json:"language_detected,omitempty" db:"language_detected"`

	Attachments   []string `json:"attachments,omitempty" db:"attachments"`
	Location      Location `json:"location"`
	PoliceStation string   `json:"police_station" db:"police_station"`

	Classification Classification `json:"classification"`

	Status          OutcomeStatus `json:"status" db:"status"`
	ProcessingPhase Phase         `json:"processing_phase" db:"processing_phase"`
	RejectionPhase  DecisionPhase `json:"rejection_phase,omitempty" db:"rejection_phase"`
	RejectionReason *string       `json:"rejection_reason,omitempty" db:"rejection_reason"`

	Ledger LedgerProof `json:"ledger"`

	// Assignment
	AssignedOfficerID   *int64  `json:"assigned_officer_id,omitempty" db:"assigned_officer_id"`
	AssignedStationName *string `json:"assigned_station_name,omitempty" db:"assigned_station_name"`

	// Review
	AdminStatus       AdminStatus  `json:"admin_status" db:"admin_status"`
	PoliceStatus      PoliceStatus `json:"police_status" db:"police_status"`
	PoliceFeedback    *string      `json:"police_feedback,omitempty" db:"police_feedback"`
	PoliceActionProof []string     `json:"police_action_proof,omitempty" db:"police_action_proof"`
	ReviewedByID      *int64       `json:"reviewed_by_id,omitempty" db:"reviewed_by_id"`
	ReviewedAt        *time.Time   `json:"reviewed_at,omitempty" db:"reviewed_at"`

	Version     int64     `json:"version" db:"version"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewReport creates a report at the start of the pipeline
func NewReport(req *SubmissionRequest, now time.Time) *Report {
	return &Report{
		CategoryID:          req.CategoryID,
		CrimeTypeID:         req.CrimeTypeID,
		CrimeType:           req.CrimeType,
		OriginalDescription: req.Description,
		Attachments:         req.Attachments,
		Location: Location{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Address:   req.Place,
			City:      req.District,
			State:     req.State,
		},
		PoliceStation:   req.PoliceStation,
		ProcessingPhase: PhasePreProcessing,
		AdminStatus:     AdminStatusPending,
		PoliceStatus:    PoliceStatusNotViewed,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}
}

// AdvancePhase moves the report forward through the pipeline. Skipping a
// phase is allowed, moving backwards is not.
func (r *Report) AdvancePhase(next Phase) error {
	if !next.IsValid() || next.rank() < r.ProcessingPhase.rank() {
		return ErrPhaseRegression
	}
	r.ProcessingPhase = next
	return nil
}

// Reject finalizes the report as rejected at the given stage
func (r *Report) Reject(phase DecisionPhase, reason string) {
	r.Status = OutcomeRejected
	r.RejectionPhase = phase
	r.RejectionReason = &reason
}

// Accept finalizes the report as accepted
func (r *Report) Accept() {
	r.Status = OutcomeAccepted
	r.RejectionPhase = ""
	r.RejectionReason = nil
}

// ProcessedDescription returns the most refined text the pipeline produced
func (r *Report) ProcessedDescription() string {
	switch {
	case r.ReadabilityEnhancedDescription != "":
		return r.ReadabilityEnhancedDescription
	case r.TranslatedDescription != "":
		return r.TranslatedDescription
	default:
		return r.OriginalDescription
	}
}

// LedgerPayload is the normalized report snapshot sent to the ledger
type LedgerPayload struct {
	ReportID    string    `json:"reportId"`
	CategoryID  int64     `json:"categoryId"`
	CrimeTypeID *int64    `json:"crimeTypeId,omitempty"`
	CrimeType   string    `json:"crimeType,omitempty"`
	Description string    `json:"description"`
	Translated  string    `json:"translatedText,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Country     string    `json:"country,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewLedgerPayload builds the ledger snapshot for a persisted report
func NewLedgerPayload(r *Report) *LedgerPayload {
	return &LedgerPayload{
		ReportID:    r.ID,
		CategoryID:  r.CategoryID,
		CrimeTypeID: r.CrimeTypeID,
		CrimeType:   r.CrimeType,
		Description: r.OriginalDescription,
		Translated:  r.TranslatedDescription,
		Address:     r.Location.Address,
		City:        r.Location.City,
		State:       r.Location.State,
		Country:     r.Location.Country,
		Latitude:    r.Location.Latitude,
		Longitude:   r.Location.Longitude,
		Status:      string(r.Status),
		SubmittedAt: r.SubmittedAt,
	}
}

// LedgerBlock is one entry of the external ledger chain
type LedgerBlock struct {
	Index        int64  `json:"index"`
	Timestamp    string `json:"timestamp"`
	Data         string `json:"data"`
	PreviousHash string `json:"previousHash"`
	Hash         string `json:"hash"`
}
