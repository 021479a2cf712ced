package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

// reviewAttempts bounds the re-read loop for updates without an explicit version
const reviewAttempts = 3

// ReviewConfig tunes the review service
type ReviewConfig struct {
	// RequireVersion rejects updates that carry no expected_version
	RequireVersion bool
}

// ReviewService applies admin and police decisions to accepted reports.
// It never re-runs moderation.
type ReviewService struct {
	store  ReportStore
	events EventPublisher
	config ReviewConfig
	logger *logger.Logger
}

// NewReviewService creates a review service. events may be nil.
func NewReviewService(store ReportStore, events EventPublisher, cfg ReviewConfig, log *logger.Logger) *ReviewService {
	return &ReviewService{
		store:  store,
		events: events,
		config: cfg,
		logger: log.WithComponent("review"),
	}
}

// UpdateAdminStatus moves a report through admin review
func (s *ReviewService) UpdateAdminStatus(ctx context.Context, upd *models.AdminReviewUpdate) (*models.Report, error) {
	if !upd.Status.IsValid() {
		return nil, fieldError("admin_status", "unknown admin status")
	}
	if err := s.checkVersion(upd.ExpectedVersion); err != nil {
		return nil, err
	}

	report, err := s.casLoop(ctx, upd.ReportID, upd.ExpectedVersion, func(current *models.Report, version int64) (*models.Report, error) {
		if current.Status != models.OutcomeAccepted {
			return nil, fmt.Errorf("report is %s: %w", current.Status, models.ErrInvalidTransition)
		}
		if !current.AdminStatus.CanTransitionTo(upd.Status) {
			return nil, fmt.Errorf("admin status %s -> %s: %w", current.AdminStatus, upd.Status, models.ErrInvalidTransition)
		}
		next := *upd
		next.ExpectedVersion = &version
		return s.store.UpdateAdminReview(ctx, &next)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithReportID(report.ID).Info().Str("admin_status", string(report.AdminStatus)).Msg("admin status updated")
	s.publish(ctx, streaming.EventAdminStatus, report)
	return report, nil
}

// UpdatePoliceStatus records station progress, optional feedback and an
// optional proof file reference
func (s *ReviewService) UpdatePoliceStatus(ctx context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error) {
	if !upd.Status.IsValid() {
		return nil, fieldError("police_status", "unknown police status")
	}
	if err := s.checkVersion(upd.ExpectedVersion); err != nil {
		return nil, err
	}
	upd.ActionProof = strings.TrimSpace(upd.ActionProof)

	report, err := s.casLoop(ctx, upd.ReportID, upd.ExpectedVersion, func(current *models.Report, version int64) (*models.Report, error) {
		if current.Status != models.OutcomeAccepted {
			return nil, fmt.Errorf("report is %s: %w", current.Status, models.ErrInvalidTransition)
		}
		if !current.PoliceStatus.CanTransitionTo(upd.Status) {
			return nil, fmt.Errorf("police status %s -> %s: %w", current.PoliceStatus, upd.Status, models.ErrInvalidTransition)
		}
		next := *upd
		next.ExpectedVersion = &version
		return s.store.UpdatePoliceReview(ctx, &next)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithReportID(report.ID).Info().Str("police_status", string(report.PoliceStatus)).Msg("police status updated")
	s.publish(ctx, streaming.EventPoliceStatus, report)
	return report, nil
}

// AppendActionProof attaches a proof file reference without changing status
func (s *ReviewService) AppendActionProof(ctx context.Context, reportID, proof string, expectedVersion *int64) (*models.Report, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, fieldError("action_proof", "proof reference is required")
	}
	if err := s.checkVersion(expectedVersion); err != nil {
		return nil, err
	}

	report, err := s.casLoop(ctx, reportID, expectedVersion, func(current *models.Report, version int64) (*models.Report, error) {
		if current.Status != models.OutcomeAccepted {
			return nil, fmt.Errorf("report is %s: %w", current.Status, models.ErrInvalidTransition)
		}
		return s.store.AppendActionProof(ctx, reportID, proof, &version)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, streaming.EventPoliceStatus, report)
	return report, nil
}

func (s *ReviewService) checkVersion(expected *int64) error {
	if s.config.RequireVersion && expected == nil {
		return fieldError("expected_version", "expected_version is required")
	}
	return nil
}

// casLoop loads the report and runs apply against its version. With an
// explicit expected version a mismatch fails at once. Without one the
// transition is re-checked against a fresh read when another writer won.
func (s *ReviewService) casLoop(ctx context.Context, reportID string, expected *int64, apply func(*models.Report, int64) (*models.Report, error)) (*models.Report, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.store.GetByID(ctx, reportID)
		if err != nil {
			return nil, err
		}

		version := current.Version
		if expected != nil {
			if *expected != current.Version {
				return nil, models.ErrVersionConflict
			}
			version = *expected
		}

		updated, err := apply(current, version)
		if err == nil {
			return updated, nil
		}
		if expected != nil || !errors.Is(err, models.ErrVersionConflict) || attempt+1 >= reviewAttempts {
			return nil, err
		}
		s.logger.Debug().Str("report_id", reportID).Int("attempt", attempt+1).Msg("concurrent review update, re-reading")
	}
}

func (s *ReviewService) publish(ctx context.Context, t streaming.EventType, report *models.Report) {
	if s.events == nil {
		return
	}
	ev := streaming.NewReportEvent(t, report.ID)
	ev.Status = report.Status
	ev.AdminStatus = report.AdminStatus
	ev.PoliceStatus = report.PoliceStatus
	if err := s.events.PublishReportEvent(ctx, ev); err != nil {
		s.logger.Debug().Err(err).Str("type", string(t)).Msg("failed to publish event")
	}
}

func fieldError(field, msg string) error {
	verr := &models.ValidationError{}
	verr.Add(field, msg)
	return verr
}
