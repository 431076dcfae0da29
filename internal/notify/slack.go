package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/regwatch/internal/model"
)

const slackTimeout = 10 * time.Second

// Slack posts alerts to an incoming webhook
type Slack struct {
	webhookURL string
	client     *http.Client
	format     Formatter
}

// NewSlack creates a Slack channel for webhookURL
func NewSlack(webhookURL string, format Formatter) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: slackTimeout},
		format:     format,
	}
}

// Name identifies the channel in logs
func (s *Slack) Name() string { return "slack" }

// ChangeDetected posts a change alert
func (s *Slack) ChangeDetected(ctx context.Context, alert model.ChangeAlert) error {
	return s.post(ctx, s.format.ChangeMessage(alert))
}

// ScraperError posts an error alert
func (s *Slack) ScraperError(ctx context.Context, alert model.ErrorAlert) error {
	return s.post(ctx, s.format.ErrorMessage(alert))
}

func (s *Slack) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
