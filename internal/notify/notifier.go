// Package notify delivers change and scraper-error alerts to administrators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/regwatch/internal/model"
)

// DefaultPreviewChars bounds the diff excerpt included in a change alert
const DefaultPreviewChars = 1000

// Channel is one alert destination
type Channel interface {
	Name() string
	ChangeDetected(ctx context.Context, alert model.ChangeAlert) error
	ScraperError(ctx context.Context, alert model.ErrorAlert) error
}

// Formatter renders alerts as plain-text messages
type Formatter struct {
	PreviewChars int    // Diff excerpt length in characters; 0 uses the default
	ReviewURL    string // Base URL of the review queue; the change ID is appended
}

// ChangeMessage renders a change alert
func (f Formatter) ChangeMessage(alert model.ChangeAlert) string {
	var b strings.Builder
	b.WriteString("*RegWatch: Change Detected*\n")
	fmt.Fprintf(&b, "Source: %s\n", alert.Source.Label())
	if alert.Source.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", alert.Source.Jurisdiction)
	}
	fmt.Fprintf(&b, "Change: %.1f%% (+%d/-%d lines, %s)\n", alert.ChangeRatio*100, alert.Added, alert.Removed, alert.Severity)
	fmt.Fprintf(&b, "Change ID: %s\n", alert.ChangeID)
	if preview := truncate(alert.Diff, f.previewChars()); preview != "" {
		fmt.Fprintf(&b, "\n```\n%s\n```\n", preview)
	}
	if f.ReviewURL != "" {
		fmt.Fprintf(&b, "Review: %s/%s\n", strings.TrimRight(f.ReviewURL, "/"), alert.ChangeID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ErrorMessage renders a scraper error or content drop alert
func (f Formatter) ErrorMessage(alert model.ErrorAlert) string {
	label := "ERROR"
	if alert.ContentDropped {
		label = "CONTENT DROP"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*RegWatch Scraper %s*\n", label)
	fmt.Fprintf(&b, "Source: %s\n", alert.Source.Label())
	fmt.Fprintf(&b, "URL: %s\n", alert.Source.URL)
	if alert.HTTPStatus != 0 {
		fmt.Fprintf(&b, "HTTP status: %d\n", alert.HTTPStatus)
	}
	fmt.Fprintf(&b, "Error: %s", alert.Message)
	return b.String()
}

func (f Formatter) previewChars() int {
	if f.PreviewChars <= 0 {
		return DefaultPreviewChars
	}
	return f.PreviewChars
}

// truncate cuts s to at most n runes, marking the cut
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n... (truncated)"
}

// Multi tries channels in order and stops at the first that delivers.
// Every failure is logged; the joined error is returned only when all fail.
type Multi struct {
	channels []Channel
}

// NewMulti creates a fallback chain over channels
func NewMulti(channels ...Channel) *Multi {
	return &Multi{channels: channels}
}

// ChangeDetected delivers a change alert
func (m *Multi) ChangeDetected(ctx context.Context, alert model.ChangeAlert) error {
	return m.deliver("change", func(c Channel) error { return c.ChangeDetected(ctx, alert) })
}

// ScraperError delivers an error alert
func (m *Multi) ScraperError(ctx context.Context, alert model.ErrorAlert) error {
	return m.deliver("error", func(c Channel) error { return c.ScraperError(ctx, alert) })
}

func (m *Multi) deliver(kind string, send func(Channel) error) error {
	if len(m.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	for _, c := range m.channels {
		err := send(c)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("channel", c.Name()).Str("alert", kind).Msg("notification failed")
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return errors.Join(errs...)
}
