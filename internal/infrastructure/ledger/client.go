// Package ledger is the HTTP client for the append-only report ledger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// ErrNoHash is returned when the ledger accepted a block but reported no hash
var ErrNoHash = errors.New("ledger response carries no hash")

// Client talks to the ledger service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// AddRequest is the body of POST /add
type AddRequest struct {
	Data     string `json:"data"`
	ReportID string `json:"reportId"`
}

// AddResponse is the body returned by POST /add
type AddResponse struct {
	Status    string `json:"status,omitempty"`
	Hash      string `json:"hash,omitempty"`
	TxID      string `json:"txId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ReportBlock is the body returned by GET /report/{id}
type ReportBlock struct {
	Index     int64           `json:"index"`
	Hash      string          `json:"hash"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewClient creates a ledger client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("ledger-client"),
	}
}

// Anchor appends a report snapshot to the ledger and returns the receipt
func (c *Client) Anchor(ctx context.Context, payload *models.LedgerPayload) (*models.LedgerProof, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var out AddResponse
	if err := c.do(ctx, http.MethodPost, "/add", &AddRequest{Data: string(data), ReportID: payload.ReportID}, &out); err != nil {
		return nil, err
	}

	if out.Hash == "" {
		// older ledgers only acknowledge; the block is then found by report ID
		block, err := c.FindReport(ctx, payload.ReportID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoHash, err)
		}
		if block.Hash == "" {
			return nil, ErrNoHash
		}
		out.Hash = block.Hash
		out.Timestamp = block.Timestamp
	}

	return toProof(&out), nil
}

func toProof(r *AddResponse) *models.LedgerProof {
	hash := r.Hash
	proof := &models.LedgerProof{Hash: &hash}
	if r.TxID != "" {
		tx := r.TxID
		proof.TxID = &tx
	}
	ts := time.Now().UTC()
	if r.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}
	proof.Timestamp = &ts
	return proof
}

// ListChain returns every block of the ledger
func (c *Client) ListChain(ctx context.Context) ([]models.LedgerBlock, error) {
	var blocks []models.LedgerBlock
	if err := c.do(ctx, http.MethodGet, "/chain", nil, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Validate asks the ledger to verify its hash chain
func (c *Client) Validate(ctx context.Context) (bool, error) {
	var out struct {
		IsValid bool `json:"isValid"`
	}
	if err := c.do(ctx, http.MethodGet, "/valid", nil, &out); err != nil {
		return false, err
	}
	return out.IsValid, nil
}

// FindReport returns the block anchoring a report. An unknown report
// returns models.ErrNotFound.
func (c *Client) FindReport(ctx context.Context, reportID string) (*ReportBlock, error) {
	var block ReportBlock
	if err := c.do(ctx, http.MethodGet, "/report/"+url.PathEscape(reportID), nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("ledger call completed")
	return nil
}
