package services

import (
	"context"
	"fmt"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/metrics"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

const defaultAnchorTimeout = 10 * time.Second

// LedgerAnchorer anchors persisted reports to the external ledger and
// back-fills the proof. Anchoring is advisory; callers never see its errors.
type LedgerAnchorer struct {
	ledger  LedgerAnchor
	store   ReportStore
	events  EventPublisher
	retry   AnchorRetryQueue
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *logger.Logger
}

// NewLedgerAnchorer creates an anchorer. events, retry and m may be nil.
func NewLedgerAnchorer(ledger LedgerAnchor, store ReportStore, events EventPublisher, retry AnchorRetryQueue, m *metrics.Metrics, timeout time.Duration, log *logger.Logger) *LedgerAnchorer {
	if timeout <= 0 {
		timeout = defaultAnchorTimeout
	}
	return &LedgerAnchorer{
		ledger:  ledger,
		store:   store,
		events:  events,
		retry:   retry,
		metrics: m,
		timeout: timeout,
		logger:  log.WithComponent("ledger-anchorer"),
	}
}

// AnchorReport anchors a report that Create has already stored. It returns
// the proof, or nil when anchoring failed.
func (a *LedgerAnchorer) AnchorReport(ctx context.Context, report *models.Report) *models.LedgerProof {
	log := a.logger.WithReportID(report.ID)

	proof, err := a.anchor(ctx, report)
	if err != nil {
		log.Warn().Err(err).Msg("ledger anchoring failed, report stays unanchored")
		a.metrics.AnchorFailed()
		a.publish(ctx, streaming.EventReportAnchorFailed, report.ID, func(e *streaming.ReportEvent) {
			e.Error = err.Error()
		})
		if a.retry != nil {
			if qerr := a.retry.EnqueueAnchor(ctx, report.ID); qerr != nil {
				log.Error().Err(qerr).Msg("failed to enqueue anchor retry")
			}
		}
		return nil
	}

	a.metrics.AnchorSucceeded()
	a.publish(ctx, streaming.EventReportAnchored, report.ID, func(e *streaming.ReportEvent) {
		e.LedgerHash = *proof.Hash
	})
	log.Info().Str("hash", *proof.Hash).Msg("report anchored to ledger")
	return proof
}

// Reanchor retries anchoring for a stored report. It is a no-op when the
// report already carries a proof and returns an error when the attempt
// should be retried later.
func (a *LedgerAnchorer) Reanchor(ctx context.Context, reportID string) error {
	report, err := a.store.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}
	if report.Ledger.IsAnchored() {
		a.logger.Debug().Str("report_id", reportID).Msg("report already anchored, skipping")
		return nil
	}
	if report.Status != models.OutcomeAccepted {
		return nil
	}

	proof, err := a.anchor(ctx, report)
	if err != nil {
		a.metrics.AnchorFailed()
		return err
	}
	a.metrics.AnchorSucceeded()
	a.publish(ctx, streaming.EventReportAnchored, report.ID, func(e *streaming.ReportEvent) {
		e.LedgerHash = *proof.Hash
	})
	return nil
}

func (a *LedgerAnchorer) anchor(ctx context.Context, report *models.Report) (*models.LedgerProof, error) {
	if a.ledger == nil {
		return nil, fmt.Errorf("ledger disabled")
	}

	actx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	proof, err := a.ledger.Anchor(actx, models.NewLedgerPayload(report))
	if err != nil {
		return nil, err
	}
	if proof == nil || !proof.IsAnchored() {
		return nil, fmt.Errorf("ledger returned no hash")
	}

	if err := a.store.UpdateLedgerProof(ctx, report.ID, *proof); err != nil {
		return nil, fmt.Errorf("failed to store ledger proof: %w", err)
	}
	report.Ledger = *proof
	return proof, nil
}

func (a *LedgerAnchorer) publish(ctx context.Context, t streaming.EventType, reportID string, fill func(*streaming.ReportEvent)) {
	if a.events == nil {
		return
	}
	event := streaming.NewReportEvent(t, reportID)
	fill(event)
	if err := a.events.PublishReportEvent(ctx, event); err != nil {
		a.logger.Debug().Err(err).Str("type", string(t)).Msg("failed to publish event")
	}
}
