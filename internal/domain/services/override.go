package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"xpose-triage/internal/domain/models"
)

// Override rule names recorded in Classification.Overrides
const (
	OverrideSpamCleared    = "spam_cleared"
	OverrideHateCleared    = "hate_speech_cleared"
	OverrideQualityRaised  = "quality_raised"
	minStructuredWordCount = 8
	spamClearThreshold     = 0.3
	hateScoreThreshold     = 0.7
	lowToxicityThreshold   = 0.2
)

var crimeVocabulary = []string{
	"robbery", "theft", "assault", "murder", "gun", "knife", "attack", "violence",
	"stolen", "burglary", "harassment", "threat", "emergency", "help", "police",
}

var reportVocabulary = []string{
	"report", "incident", "happened", "occurred", "witnessed", "location", "time", "date",
}

// TextSignals summarizes the vocabulary of a description
type TextSignals struct {
	Words         int
	CrimeHits     int
	LegitHits     int
	GoodStructure bool
}

// OverrideHeuristic clears classifier verdicts that are likely false
// positives caused by ordinary crime vocabulary. It holds no state.
type OverrideHeuristic struct{}

// NewOverrideHeuristic creates the heuristic
func NewOverrideHeuristic() *OverrideHeuristic {
	return &OverrideHeuristic{}
}

// Signals tokenizes text and counts distinct vocabulary hits. A vocabulary
// word counts once if any token starts with it, so "threatened" hits "threat".
func (h *OverrideHeuristic) Signals(text string) TextSignals {
	// a Caser is stateful, so one per call
	lower := cases.Lower(language.Und)
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(lower.String(f), func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	s := TextSignals{
		Words:     len(fields),
		CrimeHits: countHits(tokens, crimeVocabulary),
		LegitHits: countHits(tokens, reportVocabulary),
	}
	s.GoodStructure = s.Words >= minStructuredWordCount && (s.CrimeHits >= 1 || s.LegitHits >= 1)
	return s
}

func countHits(tokens, vocabulary []string) int {
	hits := 0
	for _, word := range vocabulary {
		for _, tok := range tokens {
			if strings.HasPrefix(tok, word) {
				hits++
				break
			}
		}
	}
	return hits
}

// Apply returns a corrected copy of c for the given description. The input
// is never modified. Applied rules are appended to Overrides.
func (h *OverrideHeuristic) Apply(c *models.Classification, text string) *models.Classification {
	out := c.Clone()
	sig := h.Signals(text)
	if !sig.GoodStructure {
		return out
	}

	if out.IsSpam && out.SpamScore < spamClearThreshold {
		out.IsSpam = false
		out.Overrides = append(out.Overrides, OverrideSpamCleared)
	}

	if out.IsHateSpeech && out.Toxicity != nil &&
		out.Toxicity.HateSpeechScore > hateScoreThreshold &&
		out.Toxicity.Toxicity < lowToxicityThreshold &&
		sig.CrimeHits >= 1 {
		out.IsHateSpeech = false
		out.Overrides = append(out.Overrides, OverrideHateCleared)
	}

	if out.ReportQuality == models.QualityLow {
		out.ReportQuality = models.QualityMedium
		out.Overrides = append(out.Overrides, OverrideQualityRaised)
	}

	return out
}
