package services

import (
	"context"
	"errors"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/metrics"
	"xpose-triage/pkg/logger"
)

var errEmptyClassification = errors.New("classifier returned no result")

// DualPassClassifier runs the ML classifier on the pre- and post-enrichment
// text and merges the two verdicts
type DualPassClassifier struct {
	classifier TextClassifier
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewDualPassClassifier creates a classifier wrapper. m may be nil.
func NewDualPassClassifier(classifier TextClassifier, m *metrics.Metrics, log *logger.Logger) *DualPassClassifier {
	return &DualPassClassifier{
		classifier: classifier,
		metrics:    m,
		logger:     log.WithComponent("dual-pass-classifier"),
	}
}

// Classify runs a single pass. The result records its flags as PreFlags;
// PostFlags stay nil until Combine merges in a second pass. On failure the error is an
// *models.ExternalServiceError whose Fallback is the cautious classification.
func (d *DualPassClassifier) Classify(ctx context.Context, text string) (*models.Classification, error) {
	result, err := d.classifier.Classify(ctx, text)
	if err != nil || result == nil {
		if err == nil {
			err = errEmptyClassification
		}
		d.logger.Error().Err(err).Msg("classifier unavailable, failing closed")
		d.metrics.CollaboratorFailed("classifier")
		return nil, &models.ExternalServiceError{
			Service:  "classifier",
			Err:      err,
			Fallback: models.CautiousClassification(),
		}
	}

	out := result.Clone()
	flags := out.Flags()
	out.PreFlags = &flags
	out.PostFlags = nil
	return out, nil
}

// Combine merges the pre-pass and post-pass verdicts:
//   - flags are ORed
//   - urgency, confidence and spam score take the maximum
//   - quality, counts and explanation come from the post-pass
//   - toxicity prefers the pre-pass
//
// Neither input is modified.
func Combine(pre, post *models.Classification) *models.Classification {
	preFlags := pre.Flags()
	postFlags := post.Flags()

	out := &models.Classification{
		IsSpam:       pre.IsSpam || post.IsSpam,
		IsToxic:      pre.IsToxic || post.IsToxic,
		IsHateSpeech: pre.IsHateSpeech || post.IsHateSpeech,
		NeedsReview:  pre.NeedsReview || post.NeedsReview,

		Urgency:    models.MaxUrgency(pre.Urgency, post.Urgency),
		Confidence: max(pre.Confidence, post.Confidence),
		SpamScore:  max(pre.SpamScore, post.SpamScore),

		ReportQuality: post.ReportQuality,
		WordCount:     post.WordCount,
		CharCount:     post.CharCount,

		PreFlags:  &preFlags,
		PostFlags: &postFlags,
	}

	switch {
	case pre.Toxicity != nil:
		t := *pre.Toxicity
		out.Toxicity = &t
	case post.Toxicity != nil:
		t := *post.Toxicity
		out.Toxicity = &t
	}
	if post.ShapExplanation != nil {
		out.ShapExplanation = append(out.ShapExplanation, post.ShapExplanation...)
	}
	return out
}
