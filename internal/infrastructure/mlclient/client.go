// Package mlclient talks to the report classification service.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

// ErrUnavailable indicates the classifier is unreachable
var ErrUnavailable = errors.New("classifier service unavailable")

const defaultTimeout = 10 * time.Second

// Client is an HTTP client for the classification service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// ClassifyRequest is the body of POST /classify
type ClassifyRequest struct {
	Description string `json:"description"`
}

// ClassifyResponse is the body returned by POST /classify
type ClassifyResponse struct {
	IsSpam           bool                   `json:"is_spam"`
	IsHateSpeech     bool                   `json:"is_hate_speech"`
	IsToxic          bool                   `json:"is_toxic"`
	NeedsReview      bool                   `json:"needs_review"`
	Urgency          string                 `json:"urgency"`
	Confidence       float64                `json:"confidence"`
	SpamScore        float64                `json:"spam_score"`
	ReportQuality    string                 `json:"report_quality"`
	ToxicityAnalysis *models.ToxicityScores `json:"toxicity_analysis"`
	WordCount        int                    `json:"word_count"`
	CharCount        int                    `json:"char_count"`
	ShapExplanation  json.RawMessage        `json:"shap_explanation,omitempty"`
	Error            *string                `json:"error"`
}

// HealthResponse is the body returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// NewClient creates a new classifier client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("ml-client"),
	}
}

// Classify sends text to the classifier and converts the verdict
func (c *Client) Classify(ctx context.Context, text string) (*models.Classification, error) {
	body, err := json.Marshal(&ClassifyRequest{Description: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil && *out.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", *out.Error)
	}

	c.logger.Debug().
		Bool("spam", out.IsSpam).
		Bool("toxic", out.IsToxic).
		Bool("hate", out.IsHateSpeech).
		Str("urgency", out.Urgency).
		Float64("confidence", out.Confidence).
		Msg("classified text")

	return out.toClassification(), nil
}

func (r *ClassifyResponse) toClassification() *models.Classification {
	return &models.Classification{
		IsSpam:          r.IsSpam,
		IsToxic:         r.IsToxic,
		IsHateSpeech:    r.IsHateSpeech,
		NeedsReview:     r.NeedsReview,
		Urgency:         models.ParseUrgency(r.Urgency),
		Confidence:      r.Confidence,
		SpamScore:       r.SpamScore,
		ReportQuality:   models.ParseQuality(r.ReportQuality),
		WordCount:       r.WordCount,
		CharCount:       r.CharCount,
		Toxicity:        r.ToxicityAnalysis,
		ShapExplanation: r.ShapExplanation,
	}
}

// Health checks if the classifier is healthy
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}
