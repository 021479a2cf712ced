package models

// AdminStatus is the administrative review state of a report
type AdminStatus string

const (
	AdminStatusPending  AdminStatus = "PENDING"
	AdminStatusApproved AdminStatus = "APPROVED"
	AdminStatusRejected AdminStatus = "REJECTED"
	AdminStatusAssigned AdminStatus = "ASSIGNED"
)

// AllAdminStatuses lists every admin status
var AllAdminStatuses = []AdminStatus{
	AdminStatusPending, AdminStatusApproved, AdminStatusRejected, AdminStatusAssigned,
}

// IsValid reports whether s is a known admin status
func (s AdminStatus) IsValid() bool {
	switch s {
	case AdminStatusPending, AdminStatusApproved, AdminStatusRejected, AdminStatusAssigned:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move a report from s to next.
// Re-applying the current status is allowed so reviewers can amend notes.
func (s AdminStatus) CanTransitionTo(next AdminStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case AdminStatusPending:
		return next == AdminStatusApproved || next == AdminStatusRejected || next == AdminStatusAssigned
	case AdminStatusAssigned:
		return next == AdminStatusApproved || next == AdminStatusRejected
	case AdminStatusApproved, AdminStatusRejected:
		return false
	}
	return false
}

// PoliceStatus is the handling state of a report at the assigned station
type PoliceStatus string

const (
	PoliceStatusNotViewed   PoliceStatus = "NOT_VIEWED"
	PoliceStatusViewed      PoliceStatus = "VIEWED"
	PoliceStatusInProgress  PoliceStatus = "IN_PROGRESS"
	PoliceStatusActionTaken PoliceStatus = "ACTION_TAKEN"
	PoliceStatusResolved    PoliceStatus = "RESOLVED"
	PoliceStatusClosed      PoliceStatus = "CLOSED"
)

// AllPoliceStatuses lists every police status
var AllPoliceStatuses = []PoliceStatus{
	PoliceStatusNotViewed, PoliceStatusViewed, PoliceStatusInProgress,
	PoliceStatusActionTaken, PoliceStatusResolved, PoliceStatusClosed,
}

// IsValid reports whether s is a known police status
func (s PoliceStatus) IsValid() bool {
	switch s {
	case PoliceStatusNotViewed, PoliceStatusViewed, PoliceStatusInProgress,
		PoliceStatusActionTaken, PoliceStatusResolved, PoliceStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the station may move a report from s to next
func (s PoliceStatus) CanTransitionTo(next PoliceStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case PoliceStatusNotViewed:
		return next == PoliceStatusViewed || next == PoliceStatusInProgress
	case PoliceStatusViewed:
		return next == PoliceStatusInProgress || next == PoliceStatusActionTaken
	case PoliceStatusInProgress:
		return next == PoliceStatusActionTaken || next == PoliceStatusResolved
	case PoliceStatusActionTaken:
		return next == PoliceStatusInProgress || next == PoliceStatusResolved
	case PoliceStatusResolved:
		return next == PoliceStatusClosed
	case PoliceStatusClosed:
		return false
	}
	return false
}

// AdminReviewUpdate is a requested change to the admin review state
type AdminReviewUpdate struct {
	ReportID        string      `json:"-"`
	Status          AdminStatus `json:"admin_status"`
	ReviewedByID    *int64      `json:"reviewed_by_id,omitempty"`
	ExpectedVersion *int64      `json:"expected_version,omitempty"`
}

// PoliceReviewUpdate is a requested change to the police handling state
type PoliceReviewUpdate struct {
	ReportID        string       `json:"-"`
	Status          PoliceStatus `json:"police_status"`
	Feedback        *string      `json:"police_feedback,omitempty"`
	ActionProof     string       `json:"action_proof,omitempty"`
	ExpectedVersion *int64       `json:"expected_version,omitempty"`
}
