package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/metrics"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

// Rejection reasons in precedence order
const (
	ReasonHateSpeech = "Contains hate speech or discriminatory language"
	ReasonToxic      = "Contains toxic or inappropriate content"
	ReasonSpam       = "Identified as spam or non-genuine report"
	ReasonQuality    = "Content does not meet quality standards for crime reporting"
)

const (
	messageAccepted = "Crime report submitted successfully and saved"
	messageError    = "Error processing crime report, please try again"
	lowConfidence   = 0.7
)

// RejectionReason picks the reason for a rejection: hate speech, then
// toxicity, then spam, then the generic quality floor
func RejectionReason(f models.ModerationFlags) string {
	switch {
	case f.HateSpeech:
		return ReasonHateSpeech
	case f.Toxic:
		return ReasonToxic
	case f.Spam:
		return ReasonSpam
	default:
		return ReasonQuality
	}
}

// TriageConfig tunes the triage engine
type TriageConfig struct {
	MinDescriptionLength int
	DefaultCountry       string
}

// TriageDeps are the collaborators of the triage engine. Anchorer, Events
// and Metrics are optional.
type TriageDeps struct {
	Normalizer TextNormalizer
	Classifier *DualPassClassifier
	Override   *OverrideHeuristic
	IDs        *TrackingIDGenerator
	Store      ReportStore
	Anchorer   *LedgerAnchorer
	Events     EventPublisher
	Metrics    *metrics.Metrics
}

// TriageEngine runs a submission through moderation and decides whether it
// is accepted or rejected
type TriageEngine struct {
	deps   TriageDeps
	config TriageConfig
	now    func() time.Time
	logger *logger.Logger
}

// NewTriageEngine creates a new triage engine
func NewTriageEngine(deps TriageDeps, cfg TriageConfig, log *logger.Logger) *TriageEngine {
	if deps.Override == nil {
		deps.Override = NewOverrideHeuristic()
	}
	return &TriageEngine{
		deps:   deps,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithComponent("triage"),
	}
}

// Submit triages a submission. A malformed submission returns a
// *models.ValidationError before any collaborator is called. Every other
// outcome, including pipeline failures, is reported through the response.
func (e *TriageEngine) Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmissionResponse, error) {
	if err := ValidateSubmission(req, e.config.MinDescriptionLength); err != nil {
		return nil, err
	}

	started := time.Now()
	report := models.NewReport(req, e.now())
	report.Location.Country = e.config.DefaultCountry

	resp, err := e.run(ctx, report)
	if err != nil {
		resp = e.errorResponse(report, err)
	}

	e.deps.Metrics.ObserveSubmission(string(resp.Status), started)
	return resp, nil
}

func (e *TriageEngine) run(ctx context.Context, report *models.Report) (*models.SubmissionResponse, error) {
	original := report.OriginalDescription

	// Pass 1 runs on English text
	pass1Text := original
	if e.deps.Normalizer.IsEnglish(ctx, original) {
		report.LanguageDetected = "English"
	} else {
		report.LanguageDetected = e.detectLanguage(ctx, original)
		pass1Text = e.deps.Normalizer.Translate(ctx, original)
		if pass1Text != original {
			report.TranslatedDescription = pass1Text
		}
	}

	pre, err := e.deps.Classifier.Classify(ctx, pass1Text)
	if err != nil {
		return nil, err
	}
	report.Classification = *pre

	if pre.IsFlagged() {
		return e.reject(ctx, report, models.DecisionPreProcessing, RejectionReason(pre.Flags()))
	}

	enhanced := e.deps.Normalizer.ImproveReadability(ctx, pass1Text)
	if err := report.AdvancePhase(models.PhaseEnriched); err != nil {
		return nil, err
	}

	if enhanced == models.SpamDetectedMarker {
		report.Classification.IsSpam = true
		return e.reject(ctx, report, models.DecisionEnrichment, ReasonSpam)
	}
	report.ReadabilityEnhancedDescription = enhanced

	post, err := e.deps.Classifier.Classify(ctx, enhanced)
	if err != nil {
		return nil, err
	}

	final := e.deps.Override.Apply(Combine(pre, post), enhanced)
	for _, rule := range final.Overrides {
		e.deps.Metrics.OverrideApplied(rule)
	}
	report.Classification = *final

	if final.IsFlagged() {
		return e.reject(ctx, report, models.DecisionFinalValidation, RejectionReason(final.Flags()))
	}
	return e.accept(ctx, report)
}

func (e *TriageEngine) accept(ctx context.Context, report *models.Report) (*models.SubmissionResponse, error) {
	report.Accept()
	if err := report.AdvancePhase(models.PhaseFinalized); err != nil {
		return nil, err
	}
	if err := e.persist(ctx, report); err != nil {
		return nil, err
	}

	c := &report.Classification
	tier := models.ResponseStatusFor(c)
	log := e.logger.WithReportID(report.ID)
	log.Info().
		Str("status", string(tier)).
		Str("urgency", string(c.Urgency)).
		Strs("overrides", c.Overrides).
		Msg("report accepted")

	e.publish(ctx, streaming.EventReportSubmitted, report, func(ev *streaming.ReportEvent) {
		ev.ResponseStatus = tier
	})

	var hash *string
	if e.deps.Anchorer != nil {
		if proof := e.deps.Anchorer.AnchorReport(ctx, report); proof != nil {
			hash = proof.Hash
		}
	}

	return &models.SubmissionResponse{
		Success:                 true,
		TrackingID:              report.ID,
		Status:                  tier,
		Message:                 messageAccepted,
		OriginalDescription:     report.OriginalDescription,
		ProcessedDescription:    report.ProcessedDescription(),
		TranslatedDescription:   report.TranslatedDescription,
		Classification:          c.Clone(),
		RequiresUrgentAttention: c.Urgency.Rank() >= models.UrgencyHigh.Rank(),
		ProcessingNotes:         ProcessingNotes(report),
		BlockchainHash:          hash,
		SubmittedAt:             report.SubmittedAt,
	}, nil
}

func (e *TriageEngine) reject(ctx context.Context, report *models.Report, phase models.DecisionPhase, reason string) (*models.SubmissionResponse, error) {
	report.Reject(phase, reason)
	if err := report.AdvancePhase(models.PhaseFinalized); err != nil {
		return nil, err
	}
	if err := e.persist(ctx, report); err != nil {
		return nil, err
	}

	e.logger.WithReportID(report.ID).Warn().
		Str("phase", string(phase)).
		Str("reason", reason).
		Msg("report rejected")

	e.publish(ctx, streaming.EventReportRejected, report, nil)

	return &models.SubmissionResponse{
		Success:                false,
		TrackingID:             report.ID,
		Status:                 models.StatusRejected,
		Message:                "Report rejected: " + reason,
		OriginalDescription:    report.OriginalDescription,
		ProcessedDescription:   report.ProcessedDescription(),
		TranslatedDescription:  report.TranslatedDescription,
		Classification:         report.Classification.Clone(),
		RejectionReason:        reason,
		RejectionPhase:         phase,
		ImprovementSuggestions: ImprovementSuggestions(&report.Classification),
		SubmittedAt:            report.SubmittedAt,
	}, nil
}

// persist issues the tracking ID and stores the report. A duplicate ID from
// a concurrent insert is retried once with a fresh ID.
func (e *TriageEngine) persist(ctx context.Context, report *models.Report) error {
	const attempts = 2
	var err error
	for i := 0; i < attempts; i++ {
		var id string
		id, err = e.deps.IDs.NewID(ctx, report.Status)
		if err != nil {
			return err
		}
		report.ID = id

		err = e.deps.Store.Create(ctx, report)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrDuplicateID) {
			break
		}
		e.logger.Warn().Str("id", id).Msg("tracking id taken at insert, drawing a new one")
	}
	report.ID = ""
	e.deps.Metrics.CollaboratorFailed("store")
	return &models.ExternalServiceError{Service: "store", Err: err}
}

func (e *TriageEngine) errorResponse(report *models.Report, err error) *models.SubmissionResponse {
	e.logger.Error().Err(err).Str("phase", string(report.ProcessingPhase)).Msg("submission failed, nothing persisted")

	resp := &models.SubmissionResponse{
		Success:             false,
		Status:              models.StatusError,
		Message:             messageError,
		OriginalDescription: report.OriginalDescription,
		RequiresRetry:       true,
		SubmittedAt:         report.SubmittedAt,
	}

	var extErr *models.ExternalServiceError
	if errors.As(err, &extErr) && extErr.Fallback != nil {
		resp.Classification = extErr.Fallback
	}
	return resp
}

func (e *TriageEngine) detectLanguage(ctx context.Context, text string) string {
	if namer, ok := e.deps.Normalizer.(LanguageNamer); ok {
		return namer.DetectLanguage(ctx, text)
	}
	return ""
}

func (e *TriageEngine) publish(ctx context.Context, t streaming.EventType, report *models.Report, fill func(*streaming.ReportEvent)) {
	if e.deps.Events == nil {
		return
	}
	ev := streaming.NewReportEvent(t, report.ID)
	ev.Status = report.Status
	ev.Urgency = report.Classification.Urgency
	ev.RejectionPhase = report.RejectionPhase
	if fill != nil {
		fill(ev)
	}
	if err := e.deps.Events.PublishReportEvent(ctx, ev); err != nil {
		e.logger.Debug().Err(err).Str("type", string(t)).Msg("failed to publish event")
	}
}

// Status returns the public status of a report
func (e *TriageEngine) Status(ctx context.Context, id string) (*models.StatusView, error) {
	report, err := e.deps.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &models.StatusView{
		TrackingID:     report.ID,
		Status:         report.Status,
		ResponseStatus: models.StatusRejected,
		AdminStatus:    report.AdminStatus,
		PoliceStatus:   report.PoliceStatus,
		SubmittedAt:    report.SubmittedAt,
		LastUpdated:    report.UpdatedAt,
		BlockchainHash: report.Ledger.Hash,
	}

	if report.Status == models.OutcomeAccepted {
		view.ResponseStatus = models.ResponseStatusFor(&report.Classification)
		if view.ResponseStatus == models.StatusReceivedPendingReview && report.AdminStatus == models.AdminStatusPending {
			view.Status = models.OutcomePendingReview
		}
	}
	view.Message = StatusMessage(view.ResponseStatus)
	view.EstimatedProcessingTime = EstimatedProcessingTime(view.ResponseStatus)
	return view, nil
}

// StatusMessage returns the citizen-facing message for a response status
func StatusMessage(s models.ResponseStatus) string {
	switch s {
	case models.StatusReceivedHighPriority:
		return "Your report has been received and marked as high priority"
	case models.StatusReceivedPendingReview:
		return "Your report is under manual review"
	case models.StatusRejected:
		return "Your report was rejected due to policy violations"
	case models.StatusError:
		return "There was an error processing your report"
	default:
		return "Your report is being processed"
	}
}

// EstimatedProcessingTime returns the expected handling time for a tier
func EstimatedProcessingTime(s models.ResponseStatus) string {
	switch s {
	case models.StatusReceivedHighPriority:
		return "1-2 hours"
	case models.StatusReceivedMediumPriority:
		return "4-8 hours"
	case models.StatusReceivedPendingReview:
		return "12-24 hours"
	default:
		return "24-48 hours"
	}
}

// ImprovementSuggestions tells the citizen how to resubmit a rejected report
func ImprovementSuggestions(c *models.Classification) []string {
	var out []string
	if c.IsSpam {
		out = append(out,
			"Provide a more detailed and specific description of the incident",
			"Include relevant facts such as time, date, and specific actions",
			"Avoid casual language or expressions that might be misinterpreted",
		)
	}
	if c.IsToxic {
		out = append(out,
			"Use professional and respectful language",
			"Focus on factual information rather than emotional expressions",
			"Remove any inappropriate or offensive content",
		)
	}
	if c.WordCount < 10 {
		out = append(out,
			"Provide more detailed information about the incident",
			"Include specific details about what happened, when, and where",
		)
	}
	return out
}

// ProcessingNotes summarizes how an accepted report was handled
func ProcessingNotes(report *models.Report) string {
	var notes []string
	c := &report.Classification

	if report.ProcessedDescription() != report.OriginalDescription {
		notes = append(notes, "Text was processed for language translation and/or readability improvement.")
	}
	if c.Confidence < lowConfidence {
		notes = append(notes, "Low confidence classification - may require manual review.")
	}
	if c.NeedsReview {
		notes = append(notes, "Flagged for manual review due to content analysis.")
	}
	if c.PreFlags != nil && c.PostFlags != nil && c.PreFlags.HasIssues() {
		notes = append(notes, "Dual-pass validation detected potential issues in original content.")
	}
	return strings.Join(notes, " ")
}
