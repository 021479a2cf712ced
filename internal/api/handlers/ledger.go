package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/infrastructure/ledger"
	"xpose-triage/pkg/logger"
)

// LedgerReader reads the external ledger
type LedgerReader interface {
	ListChain(ctx context.Context) ([]models.LedgerBlock, error)
	Validate(ctx context.Context) (bool, error)
	FindReport(ctx context.Context, reportID string) (*ledger.ReportBlock, error)
}

// LedgerHandler exposes the ledger for audit
type LedgerHandler struct {
	ledger LedgerReader
	logger *logger.Logger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(l LedgerReader, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: l,
		logger: log.WithComponent("ledger-handler"),
	}
}

// Chain handles GET /api/v1/ledger/chain
func (h *LedgerHandler) Chain(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.ledger.ListChain(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, &models.ExternalServiceError{Service: "ledger", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, blocks)
}

// Validate handles GET /api/v1/ledger/validate
func (h *LedgerHandler) Validate(w http.ResponseWriter, r *http.Request) {
	valid, err := h.ledger.Validate(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, &models.ExternalServiceError{Service: "ledger", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_valid": valid})
}

// ReportBlock handles GET /api/v1/reports/{id}/ledger
func (h *LedgerHandler) ReportBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.ledger.FindReport(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, block)
	case isNotFound(err):
		respondServiceError(w, h.logger, err)
	default:
		respondServiceError(w, h.logger, &models.ExternalServiceError{Service: "ledger", Err: err})
	}
}
