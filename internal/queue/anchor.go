// Package queue schedules ledger anchoring retries on asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"xpose-triage/pkg/logger"
)

const (
	// AnchorReportTask re-attempts ledger anchoring for one report
	AnchorReportTask = "ledger:anchor"

	defaultMaxRetry = 8
	anchorDelay     = 30 * time.Second
	anchorUnique    = time.Hour
)

// AnchorPayload is the body of an AnchorReportTask
type AnchorPayload struct {
	ReportID string `json:"report_id"`
}

// NewAnchorTask builds the task for a report
func NewAnchorTask(reportID string, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(AnchorPayload{ReportID: reportID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return asynq.NewTask(AnchorReportTask, data,
		asynq.MaxRetry(maxRetry),
		asynq.ProcessIn(anchorDelay),
		asynq.Unique(anchorUnique),
	), nil
}

// Client enqueues anchoring retries
type Client struct {
	client   *asynq.Client
	maxRetry int
	logger   *logger.Logger
}

// NewClient wraps an asynq client
func NewClient(client *asynq.Client, maxRetry int, log *logger.Logger) *Client {
	return &Client{
		client:   client,
		maxRetry: maxRetry,
		logger:   log.WithComponent("anchor-queue"),
	}
}

// EnqueueAnchor schedules a retry. A retry already pending for the same
// report is not an error.
func (c *Client) EnqueueAnchor(ctx context.Context, reportID string) error {
	task, err := NewAnchorTask(reportID, c.maxRetry)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.logger.Debug().Str("report_id", reportID).Msg("anchor retry already queued")
			return nil
		}
		return fmt.Errorf("enqueue anchor task: %w", err)
	}

	c.logger.Info().Str("report_id", reportID).Str("task_id", info.ID).Msg("anchor retry queued")
	return nil
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

// Reanchorer re-attempts anchoring of a stored report
type Reanchorer interface {
	Reanchor(ctx context.Context, reportID string) error
}

// Processor handles queued anchoring tasks
type Processor struct {
	anchorer Reanchorer
	logger   *logger.Logger
}

// NewProcessor creates a processor
func NewProcessor(anchorer Reanchorer, log *logger.Logger) *Processor {
	return &Processor{
		anchorer: anchorer,
		logger:   log.WithComponent("anchor-worker"),
	}
}

// Handler registers the task handlers
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(AnchorReportTask, p.HandleAnchorTask)
	return mux
}

// HandleAnchorTask anchors the report named in the payload. A returned error
// makes asynq retry the task; a malformed payload is never retried.
func (p *Processor) HandleAnchorTask(ctx context.Context, task *asynq.Task) error {
	var payload AnchorPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReportID == "" {
		return fmt.Errorf("payload has no report_id: %w", asynq.SkipRetry)
	}

	if err := p.anchorer.Reanchor(ctx, payload.ReportID); err != nil {
		p.logger.Warn().Err(err).Str("report_id", payload.ReportID).Msg("anchor retry failed")
		return err
	}
	return nil
}
