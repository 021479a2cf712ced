package models

import (
	"encoding/json"
	"strings"
)

// Urgency is the ordinal urgency assigned by the classifier
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// Rank returns the ordinal value of the urgency. Unknown values rank lowest.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	}
	return 0
}

// ParseUrgency converts a string to Urgency, defaulting to LOW
func ParseUrgency(s string) Urgency {
	u := Urgency(strings.ToUpper(strings.TrimSpace(s)))
	if u.Rank() == 0 {
		return UrgencyLow
	}
	return u
}

// MaxUrgency returns the higher of two urgencies
func MaxUrgency(a, b Urgency) Urgency {
	if b.Rank() > a.Rank() {
		return b
	}
	if a.Rank() == 0 {
		return UrgencyLow
	}
	return a
}

// Quality is the classifier's assessment of how usable a report is
type Quality string

const (
	QualityLow    Quality = "LOW"
	QualityMedium Quality = "MEDIUM"
	QualityHigh   Quality = "HIGH"
)

// ParseQuality converts a string to Quality, defaulting to LOW
func ParseQuality(s string) Quality {
	switch q := Quality(strings.ToUpper(strings.TrimSpace(s))); q {
	case QualityLow, QualityMedium, QualityHigh:
		return q
	}
	return QualityLow
}

// ToxicityScores holds per-category toxicity probabilities
type ToxicityScores struct {
	Toxicity        float64 `json:"toxicity"`
	SevereToxicity  float64 `json:"severe_toxicity"`
	Obscene         float64 `json:"obscene"`
	Threat          float64 `json:"threat"`
	Insult          float64 `json:"insult"`
	IdentityAttack  float64 `json:"identity_attack"`
	HateSpeechScore float64 `json:"hate_speech_score"`
}

// ModerationFlags are the raw boolean verdicts of a single classifier pass
type ModerationFlags struct {
	Spam        bool `json:"spam"`
	Toxic       bool `json:"toxic"`
	HateSpeech  bool `json:"hate_speech"`
	NeedsReview bool `json:"needs_review"`
}

// HasIssues reports whether the pass flagged spam, toxicity or hate speech
func (f ModerationFlags) HasIssues() bool {
	return f.Spam || f.Toxic || f.HateSpeech
}

// Classification is the merged result of one or two classifier passes
type Classification struct {
	IsSpam       bool `json:"is_spam"`
	IsToxic      bool `json:"is_toxic"`
	IsHateSpeech bool `json:"is_hate_speech"`
	NeedsReview  bool `json:"needs_review"`

	Urgency       Urgency `json:"urgency"`
	Confidence    float64 `json:"confidence"`
	SpamScore     float64 `json:"spam_score"`
	ReportQuality Quality `json:"report_quality"`
	WordCount     int     `json:"word_count"`
	CharCount     int     `json:"char_count"`

	Toxicity        *ToxicityScores `json:"toxicity_analysis,omitempty"`
	ShapExplanation json.RawMessage `json:"shap_explanation,omitempty"`

	PreFlags  *ModerationFlags `json:"pre_processing_flags,omitempty"`
	PostFlags *ModerationFlags `json:"post_processing_flags,omitempty"`

	// Overrides lists the heuristic corrections applied after combining
	Overrides []string `json:"overrides,omitempty"`
}

// Flags returns the boolean verdicts of the classification
func (c *Classification) Flags() ModerationFlags {
	return ModerationFlags{
		Spam:        c.IsSpam,
		Toxic:       c.IsToxic,
		HateSpeech:  c.IsHateSpeech,
		NeedsReview: c.NeedsReview,
	}
}

// IsFlagged reports whether the content must be rejected
func (c *Classification) IsFlagged() bool {
	return c.IsSpam || c.IsToxic || c.IsHateSpeech
}

// Clone returns a deep copy
func (c *Classification) Clone() *Classification {
	if c == nil {
		return nil
	}
	out := *c
	if c.Toxicity != nil {
		t := *c.Toxicity
		out.Toxicity = &t
	}
	if c.ShapExplanation != nil {
		out.ShapExplanation = append(json.RawMessage(nil), c.ShapExplanation...)
	}
	if c.PreFlags != nil {
		f := *c.PreFlags
		out.PreFlags = &f
	}
	if c.PostFlags != nil {
		f := *c.PostFlags
		out.PostFlags = &f
	}
	if c.Overrides != nil {
		out.Overrides = append([]string(nil), c.Overrides...)
	}
	return &out
}

// CautiousClassification is substituted when the classifier is unreachable
func CautiousClassification() *Classification {
	return &Classification{
		IsSpam:        true,
		NeedsReview:   true,
		Urgency:       UrgencyLow,
		ReportQuality: QualityLow,
	}
}

// SpamDetectedMarker is the exact reply the rewriting model gives for text it
// considers spam instead of a report
const SpamDetectedMarker = "SPAM_DETECTED"
