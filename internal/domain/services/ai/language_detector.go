package ai

import (
	"strings"
	"unicode"

	"xpose-triage/pkg/logger"
)

// LanguageDetector guesses the language of report text from the scripts it uses.
// It is the offline fallback when the LLM cannot be reached.
type LanguageDetector struct {
	logger *logger.Logger
}

// Language describes a language reports commonly arrive in
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var (
	LanguageEnglish   = Language{Code: "en", Name: "English"}
	LanguageHindi     = Language{Code: "hi", Name: "Hindi"}
	LanguageBengali   = Language{Code: "bn", Name: "Bengali"}
	LanguagePunjabi   = Language{Code: "pa", Name: "Punjabi"}
	LanguageGujarati  = Language{Code: "gu", Name: "Gujarati"}
	LanguageOdia      = Language{Code: "or", Name: "Odia"}
	LanguageTamil     = Language{Code: "ta", Name: "Tamil"}
	LanguageTelugu    = Language{Code: "te", Name: "Telugu"}
	LanguageKannada   = Language{Code: "kn", Name: "Kannada"}
	LanguageMalayalam = Language{Code: "ml", Name: "Malayalam"}
	LanguageUrdu      = Language{Code: "ur", Name: "Urdu"}
	LanguageUnknown   = Language{Code: "und", Name: "Unknown"}
)

// NewLanguageDetector creates a new language detector
func NewLanguageDetector(log *logger.Logger) *LanguageDetector {
	return &LanguageDetector{
		logger: log.WithComponent("language-detector"),
	}
}

// Detect returns the dominant language of text. Latin script is reported as
// English; mixed Hindi written in Latin letters is indistinguishable here.
func (d *LanguageDetector) Detect(text string) Language {
	counts := d.analyzeScript(text)
	if len(counts) == 0 {
		return LanguageEnglish
	}

	primary, best := "", 0
	for script, n := range counts {
		if n > best || (n == best && script < primary) {
			primary, best = script, n
		}
	}
	return languageForScript(primary)
}

// BasicLatinRatio returns the share of letters in text that are A-Z or a-z,
// as a percentage. Text without letters yields 100.
func (d *LanguageDetector) BasicLatinRatio(text string) float64 {
	letters, latin := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			latin++
		}
	}
	if letters == 0 {
		return 100
	}
	return float64(latin) * 100 / float64(letters)
}

// LooksEnglish applies the basic-Latin threshold (percent)
func (d *LanguageDetector) LooksEnglish(text string, threshold float64) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	return d.BasicLatinRatio(text) > threshold
}

// analyzeScript counts letters by script
func (d *LanguageDetector) analyzeScript(text string) map[string]int {
	counts := make(map[string]int)
	for _, r := range text {
		if script := scriptOf(r); script != "" {
			counts[script]++
		}
	}
	return counts
}

func scriptOf(r rune) string {
	switch {
	case r >= 0x0600 && r <= 0x06FF, r >= 0x0750 && r <= 0x077F:
		return "arabic"
	case r >= 0x0900 && r <= 0x097F:
		return "devanagari"
	case r >= 0x0980 && r <= 0x09FF:
		return "bengali"
	case r >= 0x0A00 && r <= 0x0A7F:
		return "gurmukhi"
	case r >= 0x0A80 && r <= 0x0AFF:
		return "gujarati"
	case r >= 0x0B00 && r <= 0x0B7F:
		return "oriya"
	case r >= 0x0B80 && r <= 0x0BFF:
		return "tamil"
	case r >= 0x0C00 && r <= 0x0C7F:
		return "telugu"
	case r >= 0x0C80 && r <= 0x0CFF:
		return "kannada"
	case r >= 0x0D00 && r <= 0x0D7F:
		return "malayalam"
	case unicode.IsLetter(r) && r < 0x0250:
		return "latin"
	case unicode.IsLetter(r):
		return "other"
	default:
		return ""
	}
}

func languageForScript(script string) Language {
	switch script {
	case "latin":
		return LanguageEnglish
	case "devanagari":
		return LanguageHindi
	case "bengali":
		return LanguageBengali
	case "gurmukhi":
		return LanguagePunjabi
	case "gujarati":
		return LanguageGujarati
	case "oriya":
		return LanguageOdia
	case "tamil":
		return LanguageTamil
	case "telugu":
		return LanguageTelugu
	case "kannada":
		return LanguageKannada
	case "malayalam":
		return LanguageMalayalam
	case "arabic":
		return LanguageUrdu
	default:
		return LanguageUnknown
	}
}
