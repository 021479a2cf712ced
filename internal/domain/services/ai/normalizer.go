package ai

import (
	"context"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

// Completer is the part of LLMClient the normalizer needs
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// TextCache stores idempotent text transform results
type TextCache interface {
	GetText(ctx context.Context, op, text string) (string, bool, error)
	SetText(ctx context.Context, op, text, result string, ttl time.Duration) error
}

// FailureRecorder counts collaborator failures
type FailureRecorder interface {
	CollaboratorFailed(service string)
}

// NormalizerConfig tunes the normalizer
type NormalizerConfig struct {
	EnglishThreshold float64 // percent of basic Latin letters
	CacheTTL         time.Duration
}

const (
	opIsEnglish   = "is_english"
	opTranslate   = "translate"
	opReadability = "readability"
	opLanguage    = "language"
)

// TranslationNormalizer detects, translates and tidies report text through an
// LLM. Every operation returns the input unchanged when the LLM fails.
type TranslationNormalizer struct {
	llm      Completer
	cache    TextCache
	detector *LanguageDetector
	failures FailureRecorder
	config   NormalizerConfig
	logger   *logger.Logger
}

// NewTranslationNormalizer creates a normalizer. cache and failures may be nil.
func NewTranslationNormalizer(llm Completer, cache TextCache, failures FailureRecorder, cfg NormalizerConfig, log *logger.Logger) *TranslationNormalizer {
	if cfg.EnglishThreshold <= 0 {
		cfg.EnglishThreshold = 60
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &TranslationNormalizer{
		llm:      llm,
		cache:    cache,
		detector: NewLanguageDetector(log),
		failures: failures,
		config:   cfg,
		logger:   log.WithComponent("normalizer"),
	}
}

// IsEnglish asks the LLM whether text is primarily English. Mixed language
// counts as not English. Falls back to the basic-Latin heuristic.
func (n *TranslationNormalizer) IsEnglish(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	prompt := "Is this text primarily in English? Answer only 'YES' or 'NO'. Consider mixed language as 'NO':\n\n" + text
	reply, err := n.complete(ctx, opIsEnglish, text, prompt, CompletionOptions{Temperature: 0, MaxTokens: 10})
	if err == nil {
		answer := strings.ToUpper(strings.Trim(reply, " \t\n.'\""))
		switch {
		case strings.HasPrefix(answer, "YES"):
			return true
		case strings.HasPrefix(answer, "NO"):
			return false
		}
		n.logger.Warn().Str("reply", truncate(reply, 40)).Msg("unexpected language answer, using heuristic")
	}

	return n.detector.LooksEnglish(text, n.config.EnglishThreshold)
}

// Translate translates text to English, keeping tone, emotion and intent
func (n *TranslationNormalizer) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	prompt := "Translate this text to English. Preserve the original tone, emotion, and intent. Only return the translated text, nothing else:\n\n" + text
	out, err := n.complete(ctx, opTranslate, text, prompt, CompletionOptions{Temperature: 0.1, MaxTokens: 512})
	if err != nil {
		return text
	}
	return out
}

// ImproveReadability fixes grammar and spelling without sanitizing the text.
// It may return models.SpamDetectedMarker.
func (n *TranslationNormalizer) ImproveReadability(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out, err := n.complete(ctx, opReadability, text, readabilityPrompt(text), CompletionOptions{Temperature: 0.1, MaxTokens: 1024})
	if err != nil {
		return text
	}
	if strings.EqualFold(strings.Trim(out, " \t\n.\"'"), models.SpamDetectedMarker) {
		return models.SpamDetectedMarker
	}
	return out
}

// DetectLanguage returns the name of the primary language of text
func (n *TranslationNormalizer) DetectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return LanguageEnglish.Name
	}
	prompt := "Detect the primary language of this text and return only the language name (e.g., 'English', 'Hindi', 'Spanish'): \n\n" + text
	out, err := n.complete(ctx, opLanguage, text, prompt, CompletionOptions{Temperature: 0, MaxTokens: 10})
	if err == nil {
		if name := strings.Trim(out, " \t\n.'\""); name != "" {
			return name
		}
	}
	return n.detector.Detect(text).Name
}

// complete runs a cached completion. Cache failures are logged and ignored.
func (n *TranslationNormalizer) complete(ctx context.Context, op, text, prompt string, opts CompletionOptions) (string, error) {
	if n.cache != nil {
		cached, ok, err := n.cache.GetText(ctx, op, text)
		if err != nil {
			n.logger.Debug().Err(err).Str("op", op).Msg("text cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	out, err := n.llm.Complete(ctx, prompt, opts)
	if err != nil {
		n.logger.Warn().Err(err).Str("op", op).Msg("LLM call failed, keeping original text")
		if n.failures != nil {
			n.failures.CollaboratorFailed("llm")
		}
		return "", err
	}

	if n.cache != nil {
		if err := n.cache.SetText(ctx, op, text, out, n.config.CacheTTL); err != nil {
			n.logger.Debug().Err(err).Str("op", op).Msg("text cache write failed")
		}
	}
	return out, nil
}

func readabilityPrompt(text string) string {
	return `Improve the readability and grammar of this crime report while preserving ALL original content and meaning:

INSTRUCTIONS:
1. Fix spelling and grammatical errors
2. Improve sentence structure for clarity
3. PRESERVE the original tone, emotion, and intent
4. Do NOT remove, filter, or sanitize any content
5. Do NOT add information that wasn't in the original
6. If the original contains complaints, anger, insults or harsh words, keep them

Do NOT judge whether content is appropriate and do NOT make the text overly polite.

Original text:
` + text + `

Return only the improved text:`
}
