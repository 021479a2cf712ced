package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

func newReviewFixture(cfg ReviewConfig) (*ReviewService, *memStore, *recordingEvents) {
	store := newMemStore()
	store.put(&models.Report{
		ID:           "R1",
		Status:       models.OutcomeAccepted,
		AdminStatus:  models.AdminStatusPending,
		PoliceStatus: models.PoliceStatusNotViewed,
	})
	events := &recordingEvents{}
	return NewReviewService(store, events, cfg, logger.Nop()), store, events
}

func TestReview_AdminTransitions(t *testing.T) {
	svc, store, events := newReviewFixture(ReviewConfig{})
	ctx := context.Background()

	report, err := svc.UpdateAdminStatus(ctx, &models.AdminReviewUpdate{
		ReportID:     "R1",
		Status:       models.AdminStatusApproved,
		ReviewedByID: ptr(int64(5)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusApproved, report.AdminStatus)
	assert.Equal(t, int64(2), report.Version)
	require.NotNil(t, report.ReviewedAt)
	assert.Equal(t, []streaming.EventType{streaming.EventAdminStatus}, events.types())

	// approved is terminal
	_, err = svc.UpdateAdminStatus(ctx, &models.AdminReviewUpdate{ReportID: "R1", Status: models.AdminStatusPending})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.AdminStatusApproved, store.get("R1").AdminStatus)
}

func TestReview_RejectsUnknownStatus(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})

	_, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{ReportID: "R1", Status: "MAYBE"})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "admin_status")
	assert.Zero(t, store.updates)
}

func TestReview_OnlyAcceptedReportsAreReviewable(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})
	store.put(&models.Report{ID: "R2", Status: models.OutcomeRejected, AdminStatus: models.AdminStatusPending})

	_, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{ReportID: "R2", Status: models.AdminStatusApproved})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.UpdatePoliceStatus(context.Background(), &models.PoliceReviewUpdate{ReportID: "R2", Status: models.PoliceStatusViewed})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Zero(t, store.updates)
}

func TestReview_StaleVersionFailsFast(t *testing.T) {
	svc, store, events := newReviewFixture(ReviewConfig{})
	store.bump("R1", nil)

	_, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{
		ReportID:        "R1",
		Status:          models.AdminStatusApproved,
		ExpectedVersion: ptr(int64(1)),
	})
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.Zero(t, store.updates)
	assert.Empty(t, events.types())
}

func TestReview_ConcurrentWriterIsRetried(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})
	raced := false
	store.beforeCAS = func(id string) {
		if !raced {
			raced = true
			store.bump(id, func(r *models.Report) { r.PoliceStatus = models.PoliceStatusViewed })
		}
	}

	report, err := svc.UpdatePoliceStatus(context.Background(), &models.PoliceReviewUpdate{
		ReportID: "R1",
		Status:   models.PoliceStatusInProgress,
		Feedback: ptr("team dispatched"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.updates)
	assert.Equal(t, models.PoliceStatusInProgress, report.PoliceStatus)
	assert.Equal(t, int64(3), report.Version)
	require.NotNil(t, report.PoliceFeedback)
	assert.Equal(t, "team dispatched", *report.PoliceFeedback)
}

func TestReview_ConcurrentWriterInvalidatesTransition(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})
	raced := false
	store.beforeCAS = func(id string) {
		if !raced {
			raced = true
			store.bump(id, func(r *models.Report) { r.AdminStatus = models.AdminStatusRejected })
		}
	}

	_, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{ReportID: "R1", Status: models.AdminStatusAssigned})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.AdminStatusRejected, store.get("R1").AdminStatus)
}

func TestReview_PersistentConflictGivesUp(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})
	store.beforeCAS = func(id string) { store.bump(id, nil) }

	_, err := svc.UpdatePoliceStatus(context.Background(), &models.PoliceReviewUpdate{ReportID: "R1", Status: models.PoliceStatusViewed})
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.Equal(t, reviewAttempts, store.updates)
}

func TestReview_RequireVersion(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{RequireVersion: true})

	_, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{ReportID: "R1", Status: models.AdminStatusApproved})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "expected_version")

	report, err := svc.UpdateAdminStatus(context.Background(), &models.AdminReviewUpdate{
		ReportID:        "R1",
		Status:          models.AdminStatusApproved,
		ExpectedVersion: ptr(int64(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusApproved, report.AdminStatus)
	assert.Equal(t, 1, store.updates)
}

func TestReview_ActionProof(t *testing.T) {
	svc, store, _ := newReviewFixture(ReviewConfig{})
	ctx := context.Background()

	_, err := svc.AppendActionProof(ctx, "R1", "   ", nil)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "action_proof")

	_, err = svc.UpdatePoliceStatus(ctx, &models.PoliceReviewUpdate{
		ReportID:    "R1",
		Status:      models.PoliceStatusViewed,
		ActionProof: " proofs/R1/visit.jpg ",
	})
	require.NoError(t, err)

	report, err := svc.AppendActionProof(ctx, "R1", "proofs/R1/fir.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"proofs/R1/visit.jpg", "proofs/R1/fir.pdf"}, report.PoliceActionProof)
	assert.Equal(t, models.PoliceStatusViewed, store.get("R1").PoliceStatus)
}
