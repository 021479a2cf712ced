package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xpose-triage/pkg/logger"
)

// LLMClient provides access to large language model APIs
type LLMClient struct {
	httpClient *http.Client
	logger     *logger.Logger
	config     LLMConfig
}

// LLMConfig holds LLM client configuration
type LLMConfig struct {
	Provider string // gemini, claude, openai
	APIKey   string
	BaseURL  string // overrides the provider endpoint, mostly for tests
	Model    string
	Timeout  time.Duration
}

// CompletionOptions tunes a single completion
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// NewLLMClient creates a new LLM client
func NewLLMClient(cfg LLMConfig, log *logger.Logger) *LLMClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}
	if cfg.Model == "" {
		switch cfg.Provider {
		case "claude":
			cfg.Model = "claude-3-5-haiku-latest"
		case "openai":
			cfg.Model = "gpt-4o-mini"
		default:
			cfg.Model = "gemini-1.5-flash"
		}
	}

	return &LLMClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithComponent("llm-client"),
		config: cfg,
	}
}

// Complete sends a single-turn prompt and returns the model's text reply
func (c *LLMClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("LLM API key not configured")
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}

	var (
		content string
		err     error
	)
	start := time.Now()

	switch c.config.Provider {
	case "gemini":
		content, err = c.callGemini(ctx, prompt, opts)
	case "claude":
		content, err = c.callClaude(ctx, prompt, opts)
	case "openai":
		content, err = c.callOpenAI(ctx, prompt, opts)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.config.Provider)
	}
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("provider", c.config.Provider).
		Dur("duration", time.Since(start)).
		Int("reply_len", len(content)).
		Msg("completion finished")

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty response from %s", c.config.Provider)
	}
	return content, nil
}

// callGemini makes a request to the Gemini generateContent API
func (c *LLMClient) callGemini(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	base := c.config.BaseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(base, "/"), c.config.Model, url.QueryEscape(c.config.APIKey))

	reqBody := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     opts.Temperature,
			"maxOutputTokens": opts.MaxTokens,
		},
	}

	body, err := c.post(ctx, endpoint, reqBody, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates from Gemini")
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// callClaude makes a request to Claude API
func (c *LLMClient) callClaude(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	base := c.config.BaseURL
	if base == "" {
		base = "https://api.anthropic.com/v1"
	}

	reqBody := map[string]any{
		"model":       c.config.Model,
		"max_tokens":  opts.MaxTokens,
		"temperature": opts.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	body, err := c.post(ctx, strings.TrimSuffix(base, "/")+"/messages", reqBody, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	var claudeResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", err
	}

	var content string
	for _, part := range claudeResp.Content {
		if part.Type == "text" {
			content += part.Text
		}
	}
	return content, nil
}

// callOpenAI makes a request to OpenAI API
func (c *LLMClient) callOpenAI(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	base := c.config.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	reqBody := map[string]any{
		"model":       c.config.Model,
		"max_tokens":  opts.MaxTokens,
		"temperature": opts.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	body, err := c.post(ctx, strings.TrimSuffix(base, "/")+"/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	var openAIResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return "", err
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return openAIResp.Choices[0].Message.Content, nil
}

func (c *LLMClient) post(ctx context.Context, endpoint string, payload any, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
