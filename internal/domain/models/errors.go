package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a report, station or officer does not exist
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a review update lost a compare-and-swap
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidTransition is returned for a disallowed review status change
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPhaseRegression is returned when a report would move back in the pipeline
	ErrPhaseRegression = errors.New("processing phase cannot regress")
	// ErrDuplicateID is returned when a tracking ID is already taken
	ErrDuplicateID = errors.New("tracking id already exists")
)

// ValidationError describes a malformed submission
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// Add records a field error
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// HasErrors reports whether any field failed validation
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ExternalServiceError wraps a collaborator failure. Fallback carries the
// cautious classification used when the classifier is down.
type ExternalServiceError struct {
	Service  string
	Err      error
	Fallback *Classification
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// AssignmentErrorKind distinguishes why auto-assignment failed
type AssignmentErrorKind string

const (
	AssignmentMissingCoordinates AssignmentErrorKind = "MISSING_COORDINATES"
	AssignmentNoStations         AssignmentErrorKind = "NO_STATIONS"
	AssignmentNoOfficers         AssignmentErrorKind = "NO_OFFICERS"
)

// AssignmentError is returned by auto-assignment. It never implies the
// report was modified.
type AssignmentError struct {
	Kind      AssignmentErrorKind
	Retryable bool
	Detail    string
}

func (e *AssignmentError) Error() string {
	if e.Detail == "" {
		return "assignment failed: " + string(e.Kind)
	}
	return fmt.Sprintf("assignment failed: %s: %s", e.Kind, e.Detail)
}

// NewAssignmentError builds an AssignmentError with the retry hint for kind
func NewAssignmentError(kind AssignmentErrorKind, detail string) *AssignmentError {
	return &AssignmentError{
		Kind:      kind,
		Retryable: kind == AssignmentNoStations,
		Detail:    detail,
	}
}
