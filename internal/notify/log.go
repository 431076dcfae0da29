package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/regwatch/internal/model"
)

// Log writes alerts to the process log. It never fails, so it is the
// last link of every fallback chain.
type Log struct{}

// Name identifies the channel in logs
func (Log) Name() string { return "log" }

// ChangeDetected logs a change alert
func (Log) ChangeDetected(_ context.Context, alert model.ChangeAlert) error {
	log.Warn().
		Str("source", alert.Source.Label()).
		Str("jurisdiction", alert.Source.Jurisdiction).
		Str("change_id", alert.ChangeID).
		Str("severity", string(alert.Severity)).
		Float64("ratio", alert.ChangeRatio).
		Int("added", alert.Added).
		Int("removed", alert.Removed).
		Msg("change detected")
	return nil
}

// ScraperError logs an error alert
func (Log) ScraperError(_ context.Context, alert model.ErrorAlert) error {
	log.Error().
		Str("source", alert.Source.Label()).
		Str("url", alert.Source.URL).
		Int("status", alert.HTTPStatus).
		Bool("content_drop", alert.ContentDropped).
		Msg(alert.Message)
	return nil
}
