package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/regwatch/internal/diff"
	"github.com/ppiankov/regwatch/internal/extract"
	"github.com/ppiankov/regwatch/internal/model"
	"github.com/ppiankov/regwatch/internal/notify"
	"github.com/ppiankov/regwatch/internal/pipeline"
	"github.com/ppiankov/regwatch/internal/store"
	"github.com/ppiankov/regwatch/internal/worker"
)

// app holds the wired monitor for one process
type app struct {
	store *store.Store
	cycle *pipeline.Cycle
}

func openStore(cfg *model.Config) (*store.Store, error) {
	s, err := store.Open(cfg.Storage.DBPath, cfg.Storage.ArchiveDir)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("db", cfg.Storage.DBPath).Str("archive", cfg.Storage.ArchiveDir).Msg("store opened")
	return s, nil
}

// newApp wires storage, fetching, extraction, detection and notification
func newApp(cfg *model.Config, dryRun bool) (*app, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	cycle := pipeline.NewCycle(
		s,
		pipeline.NewFetcher(cfg.HTTP, limiter),
		extract.NewExtractor(),
		diff.NewDetector(cfg.Detect.ChangeThreshold, cfg.Detect.ContentDropThreshold),
		buildNotifier(cfg.Notify, dryRun),
		pipeline.CycleOptions{
			Workers: cfg.Concurrency.Workers,
			Timeout: cfg.CycleTimeout,
		},
	)

	return &app{store: s, cycle: cycle}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildNotifier chains the configured channels, falling back to the log
func buildNotifier(cfg model.NotifyConfig, dryRun bool) *notify.Multi {
	if dryRun {
		log.Info().Msg("dry run: notifications are logged only")
		return notify.NewMulti(notify.Log{})
	}

	format := notify.Formatter{PreviewChars: cfg.PreviewChars, ReviewURL: cfg.ReviewURL}
	var channels []notify.Channel
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, notify.NewSlack(cfg.SlackWebhookURL, format))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, format)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		log.Warn().Msg("no notification channel configured; alerts go to the log")
	}
	channels = append(channels, notify.Log{})
	return notify.NewMulti(channels...)
}

func summary(stats model.CycleStats) string {
	return fmt.Sprintf("checked %d/%d sources: %d changed, %d errors, %d skipped, %d content drops (%s)",
		stats.Checked, stats.Total, stats.Changed, stats.Errors, stats.Skipped, stats.ContentDrops,
		stats.Elapsed.Round(time.Millisecond))
}
