package streaming

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"xpose-triage/internal/domain/models"
)

// EventType names a report lifecycle event
type EventType string

const (
	EventReportSubmitted    EventType = "report.submitted"
	EventReportRejected     EventType = "report.rejected"
	EventReportAnchored     EventType = "report.anchored"
	EventReportAnchorFailed EventType = "report.anchor_failed"
	EventReportAssigned     EventType = "report.assigned"
	EventAdminStatus        EventType = "report.admin_status"
	EventPoliceStatus       EventType = "report.police_status"
)

// ReportEvent is a notification about a change to a report. Events are a side
// channel; no decision depends on their delivery.
type ReportEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ReportID  string    `json:"report_id"`

	Status         models.OutcomeStatus  `json:"status,omitempty"`
	ResponseStatus models.ResponseStatus `json:"response_status,omitempty"`
	Urgency        models.Urgency        `json:"urgency,omitempty"`
	RejectionPhase models.DecisionPhase  `json:"rejection_phase,omitempty"`

	AdminStatus  models.AdminStatus  `json:"admin_status,omitempty"`
	PoliceStatus models.PoliceStatus `json:"police_status,omitempty"`

	OfficerID   *int64 `json:"officer_id,omitempty"`
	StationName string `json:"station_name,omitempty"`

	LedgerHash string `json:"ledger_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewReportEvent creates an event with a fresh ID
func NewReportEvent(eventType EventType, reportID string) *ReportEvent {
	return &ReportEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ReportID:  reportID,
	}
}

// Subject returns the NATS subject, e.g. reports.assigned
func (e *ReportEvent) Subject() string {
	return subjectRoot + "." + strings.TrimPrefix(string(e.Type), "report.")
}

// Subscription filters the events a local subscriber receives
type Subscription struct {
	// Filter by event types (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Filter by report (empty = all)
	ReportID string `json:"report_id,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *ReportEvent) bool {
	if s == nil {
		return true
	}
	if s.ReportID != "" && s.ReportID != event.ReportID {
		return false
	}
	if len(s.Types) == 0 {
		return true
	}
	for _, t := range s.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}
