package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

const scenarioA = "He robbed the shop and threatened the owner with a knife near Main Street yesterday at 5pm"

type triageFixture struct {
	normalizer *fakeNormalizer
	classifier *fakeClassifier
	store      *memStore
	ledger     *fakeLedger
	retry      *fakeRetryQueue
	events     *recordingEvents
	engine     *TriageEngine
}

func newTriageFixture(results ...*models.Classification) *triageFixture {
	f := &triageFixture{
		normalizer: &fakeNormalizer{english: true},
		classifier: &fakeClassifier{results: results},
		store:      newMemStore(),
		ledger:     &fakeLedger{hash: "0xabc"},
		retry:      &fakeRetryQueue{},
		events:     &recordingEvents{},
	}
	log := logger.Nop()
	f.engine = NewTriageEngine(TriageDeps{
		Normalizer: f.normalizer,
		Classifier: NewDualPassClassifier(f.classifier, nil, log),
		IDs:        NewTrackingIDGenerator("Xpose", 10, f.store, log),
		Store:      f.store,
		Anchorer:   NewLedgerAnchorer(f.ledger, f.store, f.events, f.retry, nil, 0, log),
		Events:     f.events,
	}, TriageConfig{DefaultCountry: "India"}, log)
	return f
}

func validRequest(description string) *models.SubmissionRequest {
	return &models.SubmissionRequest{
		CategoryID:    3,
		CrimeType:     "Robbery",
		Description:   description,
		Place:         "Main Street",
		District:      "Pune",
		State:         "Maharashtra",
		PoliceStation: "Shivajinagar",
	}
}

func TestTriage_ValidationCallsNoCollaborator(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SubmissionRequest)
		field  string
	}{
		{"short description", func(r *models.SubmissionRequest) { r.Description = "  too short " }, "description"},
		{"blank description", func(r *models.SubmissionRequest) { r.Description = "   " }, "description"},
		{"missing category", func(r *models.SubmissionRequest) { r.CategoryID = 0 }, "category_id"},
		{"missing place", func(r *models.SubmissionRequest) { r.Place = "" }, "place"},
		{"missing station", func(r *models.SubmissionRequest) { r.PoliceStation = " " }, "police_station"},
		{"half a coordinate", func(r *models.SubmissionRequest) { r.Latitude = ptr(18.5) }, "location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTriageFixture(clean(models.UrgencyLow))
			req := validRequest(scenarioA)
			tt.mutate(req)

			resp, err := f.engine.Submit(context.Background(), req)
			require.Nil(t, resp)

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)

			assert.Zero(t, f.normalizer.calls())
			assert.Zero(t, f.classifier.calls())
			assert.Zero(t, f.store.exists)
			assert.Zero(t, f.store.creates)
			assert.Zero(t, f.ledger.calls)
		})
	}
}

func TestTriage_ScenarioA_Accepted(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyHigh))

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Regexp(t, acceptedIDPattern, resp.TrackingID)
	assert.Equal(t, models.StatusReceivedHighPriority, resp.Status)
	assert.True(t, resp.RequiresUrgentAttention)
	assert.Equal(t, scenarioA, resp.OriginalDescription)
	require.NotNil(t, resp.BlockchainHash)
	assert.Equal(t, "0xabc", *resp.BlockchainHash)
	assert.Equal(t, 2, f.classifier.calls())

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	assert.Equal(t, models.OutcomeAccepted, stored.Status)
	assert.Equal(t, models.PhaseFinalized, stored.ProcessingPhase)
	assert.Equal(t, "English", stored.LanguageDetected)
	assert.Equal(t, "India", stored.Location.Country)
	assert.True(t, stored.Ledger.IsAnchored())

	assert.Equal(t, []streaming.EventType{streaming.EventReportSubmitted, streaming.EventReportAnchored}, f.events.types())
}

func TestTriage_ScenarioB_RejectedAtPreProcessing(t *testing.T) {
	f := newTriageFixture(&models.Classification{IsSpam: true, SpamScore: 0.95, WordCount: 4, Urgency: models.UrgencyLow})

	resp, err := f.engine.Submit(context.Background(), validRequest("lol just testing 123"))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.Status)
	assert.Equal(t, models.DecisionPreProcessing, resp.RejectionPhase)
	assert.Equal(t, ReasonSpam, resp.RejectionReason)
	assert.Regexp(t, rejectedIDPattern, resp.TrackingID)
	assert.NotEmpty(t, resp.ImprovementSuggestions)

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	assert.Equal(t, models.OutcomeRejected, stored.Status)
	assert.Equal(t, models.PhaseFinalized, stored.ProcessingPhase)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, ReasonSpam, *stored.RejectionReason)

	assert.Zero(t, f.ledger.calls, "rejected reports are not anchored")
	assert.Equal(t, []streaming.EventType{streaming.EventReportRejected}, f.events.types())
}

func TestTriage_EarlyExitSkipsSecondPass(t *testing.T) {
	f := newTriageFixture(&models.Classification{IsHateSpeech: true, Urgency: models.UrgencyLow})

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, models.DecisionPreProcessing, resp.RejectionPhase)
	assert.Equal(t, ReasonHateSpeech, resp.RejectionReason)
	assert.Zero(t, f.normalizer.readabilityCalls)
	assert.Equal(t, 1, f.classifier.calls())

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Classification.PreFlags)
	assert.True(t, stored.Classification.PreFlags.HateSpeech)
	assert.Nil(t, stored.Classification.PostFlags)
}

func TestTriage_SpamMarkerRejectsAtEnrichment(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyLow))
	f.normalizer.readable = models.SpamDetectedMarker

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, resp.Status)
	assert.Equal(t, models.DecisionEnrichment, resp.RejectionPhase)
	assert.True(t, resp.Classification.IsSpam)
	assert.Equal(t, 1, f.classifier.calls())

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	assert.Empty(t, stored.ReadabilityEnhancedDescription)
	assert.Nil(t, stored.Classification.PostFlags)
}

func TestTriage_SecondPassRejectsAtFinalValidation(t *testing.T) {
	f := newTriageFixture(
		clean(models.UrgencyMedium),
		&models.Classification{IsToxic: true, Urgency: models.UrgencyLow, ReportQuality: models.QualityHigh},
	)
	f.normalizer.readable = "He robbed the shop and threatened the owner with a knife on Main Street yesterday at 5 pm."

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, models.DecisionFinalValidation, resp.RejectionPhase)
	assert.Equal(t, ReasonToxic, resp.RejectionReason)
	assert.Equal(t, models.UrgencyMedium, resp.Classification.Urgency)
	require.Len(t, f.classifier.texts, 2)
	assert.Equal(t, f.normalizer.readable, f.classifier.texts[1])
}

func TestTriage_TranslatesBeforeFirstPass(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyLow))
	f.normalizer.english = false
	f.normalizer.language = "Hindi"
	f.normalizer.translated = scenarioA

	resp, err := f.engine.Submit(context.Background(), validRequest("उसने दुकान लूट ली और मालिक को चाकू से धमकाया"))
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Equal(t, scenarioA, f.classifier.texts[0])
	assert.Equal(t, scenarioA, resp.TranslatedDescription)

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	assert.Equal(t, "Hindi", stored.LanguageDetected)
}

func TestTriage_LedgerFailureStillSucceeds(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyLow))
	f.ledger.err = errors.New("ledger down")

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.TrackingID)
	assert.Nil(t, resp.BlockchainHash)

	stored := f.store.get(resp.TrackingID)
	require.NotNil(t, stored)
	assert.False(t, stored.Ledger.IsAnchored())
	assert.Equal(t, []string{resp.TrackingID}, f.retry.ids)
	assert.Contains(t, f.events.types(), streaming.EventReportAnchorFailed)
}

func TestTriage_ClassifierOutageReturnsError(t *testing.T) {
	f := newTriageFixture()
	f.classifier.err = errUpstream

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.True(t, resp.RequiresRetry)
	assert.Empty(t, resp.TrackingID)
	require.NotNil(t, resp.Classification)
	assert.True(t, resp.Classification.IsSpam)
	assert.Zero(t, f.store.creates)
}

func TestTriage_PersistenceFailureReturnsError(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyLow))
	f.store.createErr = []error{errUpstream}

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, resp.Status)
	assert.True(t, resp.RequiresRetry)
	assert.Empty(t, resp.TrackingID)
	assert.Zero(t, f.ledger.calls)
	assert.Empty(t, f.store.reports)
}

func TestTriage_DuplicateIDIsRetriedOnce(t *testing.T) {
	f := newTriageFixture(clean(models.UrgencyLow))
	f.store.createErr = []error{models.ErrDuplicateID}

	resp, err := f.engine.Submit(context.Background(), validRequest(scenarioA))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, f.store.creates)
	assert.NotNil(t, f.store.get(resp.TrackingID))
}

func TestTriage_Status(t *testing.T) {
	f := newTriageFixture()
	review := clean(models.UrgencyLow)
	review.NeedsReview = true

	f.store.put(&models.Report{
		ID:             "Xpose-AAAA-BBBB-CCCC-DDDD-0",
		Status:         models.OutcomeAccepted,
		Classification: *review,
		AdminStatus:    models.AdminStatusPending,
	})
	f.store.put(&models.Report{
		ID:          "Xpose-RJCT-AAAA-BBBB-CCCC-0",
		Status:      models.OutcomeRejected,
		AdminStatus: models.AdminStatusPending,
	})

	view, err := f.engine.Status(context.Background(), "Xpose-AAAA-BBBB-CCCC-DDDD-0")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePendingReview, view.Status)
	assert.Equal(t, models.StatusReceivedPendingReview, view.ResponseStatus)
	assert.Equal(t, "12-24 hours", view.EstimatedProcessingTime)

	view, err = f.engine.Status(context.Background(), "Xpose-RJCT-AAAA-BBBB-CCCC-0")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, view.Status)
	assert.Equal(t, models.StatusRejected, view.ResponseStatus)

	_, err = f.engine.Status(context.Background(), "Xpose-unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRejectionReason_Precedence(t *testing.T) {
	assert.Equal(t, ReasonHateSpeech, RejectionReason(models.ModerationFlags{Spam: true, Toxic: true, HateSpeech: true}))
	assert.Equal(t, ReasonToxic, RejectionReason(models.ModerationFlags{Spam: true, Toxic: true}))
	assert.Equal(t, ReasonSpam, RejectionReason(models.ModerationFlags{Spam: true}))
	assert.Equal(t, ReasonQuality, RejectionReason(models.ModerationFlags{}))
}
