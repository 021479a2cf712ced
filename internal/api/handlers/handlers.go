package handlers

import (
	"xpose-triage/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health     *HealthHandler
	Reports    *ReportsHandler
	Review     *ReviewHandler
	Assignment *AssignmentHandler
	Ledger     *LedgerHandler
}

// Dependencies holds dependencies for handlers. Ledger may be nil when
// anchoring is disabled.
type Dependencies struct {
	Triage   Submitter
	Reports  ReportReader
	Review   Reviewer
	Assigner Assigner
	Ledger   LedgerReader
	Checks   map[string]Pinger
	Version  string
	Logger   *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	h := &Handlers{
		Health:     NewHealthHandler(deps.Checks, deps.Version, deps.Logger),
		Reports:    NewReportsHandler(deps.Triage, deps.Reports, deps.Logger),
		Review:     NewReviewHandler(deps.Review, deps.Logger),
		Assignment: NewAssignmentHandler(deps.Assigner, deps.Logger),
	}
	if deps.Ledger != nil {
		h.Ledger = NewLedgerHandler(deps.Ledger, deps.Logger)
	}
	return h
}
