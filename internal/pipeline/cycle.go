package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/regwatch/internal/model"
	"github.com/ppiankov/regwatch/internal/worker"
)

// ErrCycleInProgress is returned when a cycle is started while another runs
var ErrCycleInProgress = errors.New("a cycle is already in progress")

// SourceRegistry lists the sources to check and records when they were checked
type SourceRegistry interface {
	ListActiveSources(ctx context.Context) ([]model.Source, error)
	UpdateLastChecked(ctx context.Context, sourceID string, at time.Time) error
}

// SnapshotStore keeps the append-only snapshot trail
type SnapshotStore interface {
	// LatestSnapshot returns nil without error when the source has no snapshot yet
	LatestSnapshot(ctx context.Context, sourceID string) (*model.Snapshot, error)
	StoreSnapshot(ctx context.Context, snap model.NewSnapshot) (*model.Snapshot, error)
}

// ChangeStore records changes for review
type ChangeStore interface {
	StoreChange(ctx context.Context, change model.NewChange) (*model.ChangeRecord, error)
}

// AttemptLog records every scrape attempt for health monitoring
type AttemptLog interface {
	LogAttempt(ctx context.Context, attempt model.ScrapeAttempt) error
}

// Store is everything the cycle persists through
type Store interface {
	SourceRegistry
	SnapshotStore
	ChangeStore
	AttemptLog
}

// SourceFetcher retrieves one source
type SourceFetcher interface {
	Fetch(ctx context.Context, src model.Source) model.FetchOutcome
}

// TextExtractor canonicalizes fetched bytes
type TextExtractor interface {
	Extract(raw []byte, docType model.DocType, selector string) (model.CanonicalText, error)
}

// ChangeDetector classifies the difference between two texts
type ChangeDetector interface {
	Compare(oldText, newText, label string) model.DiffResult
}

// Notifier delivers admin alerts
type Notifier interface {
	ChangeDetected(ctx context.Context, alert model.ChangeAlert) error
	ScraperError(ctx context.Context, alert model.ErrorAlert) error
}

// Cycle runs fetch → extract → compare → persist → notify over every active
// source. One source failing never affects another.
type Cycle struct {
	store     Store
	fetcher   SourceFetcher
	extractor TextExtractor
	detector  ChangeDetector
	notifier  Notifier
	workers   int
	timeout   time.Duration
	running   atomic.Bool
	now       func() time.Time
}

// CycleOptions tunes a Cycle
type CycleOptions struct {
	Workers int           // Concurrent sources; defaults to 1
	Timeout time.Duration // Cycle deadline; 0 means none
}

// NewCycle wires a cycle from its collaborators
func NewCycle(store Store, fetcher SourceFetcher, extractor TextExtractor, detector ChangeDetector, notifier Notifier, opts CycleOptions) *Cycle {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Cycle{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		detector:  detector,
		notifier:  notifier,
		workers:   workers,
		timeout:   opts.Timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle checks every active source once. The error is non-nil only when
// the cycle itself could not run; per-source failures are counted in the stats.
func (c *Cycle) RunCycle(ctx context.Context) (model.CycleStats, error) {
	if !c.running.CompareAndSwap(false, true) {
		return model.CycleStats{}, ErrCycleInProgress
	}
	defer c.running.Store(false)

	start := time.Now()
	log.Info().Msg("starting scrape cycle")

	sources, err := c.store.ListActiveSources(ctx)
	if err != nil {
		return model.CycleStats{}, fmt.Errorf("list active sources: %w", err)
	}
	log.Info().Int("sources", len(sources)).Msg("found active sources to check")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	pool := worker.NewPool(ctx, c.workers)
	pool.Start()
	for _, src := range sources {
		if !pool.Submit(&sourceJob{cycle: c, source: src}) {
			break
		}
	}
	results := pool.Wait()

	stats := model.CycleStats{Total: len(sources)}
	for _, r := range results {
		res := r.(*SourceResult)
		switch res.Status {
		case SourceChecked:
			stats.Checked++
		case SourceFailed:
			stats.Errors++
		case SourceSkipped:
			stats.Skipped++
		}
		if res.Changed {
			stats.Changed++
		}
		if res.ContentDropped {
			stats.ContentDrops++
		}
	}
	// Jobs the pool never started leave no result.
	stats.Skipped += stats.Total - len(results)
	stats.Elapsed = time.Since(start)

	log.Info().
		Dur("elapsed", stats.Elapsed).
		Int("checked", stats.Checked).
		Int("changed", stats.Changed).
		Int("errors", stats.Errors).
		Int("skipped", stats.Skipped).
		Msg("scrape cycle complete")

	return stats, nil
}

// SourceStatus is the terminal state of one source within a cycle
type SourceStatus int

const (
	SourceSkipped SourceStatus = iota
	SourceChecked
	SourceFailed
)

// SourceResult is the outcome of processing one source
type SourceResult struct {
	Source         model.Source
	Status         SourceStatus
	Changed        bool
	ContentDropped bool
	ChangeID       string
	Err            error
}

// GetError returns the per-source failure, if any
func (r *SourceResult) GetError() error {
	return r.Err
}

type sourceJob struct {
	cycle  *Cycle
	source model.Source
}

func (j *sourceJob) Execute(ctx context.Context) worker.Result {
	if ctx.Err() != nil {
		return &SourceResult{Source: j.source, Status: SourceSkipped}
	}
	return j.cycle.processSource(ctx, j.source)
}

// processSource runs one source to completion or failure
func (c *Cycle) processSource(ctx context.Context, src model.Source) (res *SourceResult) {
	res = &SourceResult{Source: src}
	started := c.now()
	logger := log.With().Str("source", src.Label()).Str("url", src.URL).Logger()
	logger.Info().Msg("checking source")

	// Persistence and alerts must finish even if the cycle deadline fires
	// after the fetch succeeded.
	persistCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("stack", string(debug.Stack())).Msgf("unexpected failure: %v", r)
			c.fail(persistCtx, res, started, 0, 0, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	out := c.fetcher.Fetch(ctx, src)
	if out.Err != nil {
		if ctx.Err() != nil {
			logger.Warn().Err(out.Err).Msg("fetch cancelled by cycle deadline")
			res.Status = SourceSkipped
			return res
		}
		logger.Error().Err(out.Err).Int("status", out.StatusCode).Dur("elapsed", out.Elapsed).Msg("fetch error")
		c.fail(persistCtx, res, started, out.Elapsed, out.StatusCode, out.Err)
		return res
	}

	canonical, err := c.extractor.Extract(out.Body, src.DocType, src.Selector)
	if err != nil {
		logger.Error().Err(err).Msg("extraction error")
		c.fail(persistCtx, res, started, out.Elapsed, out.StatusCode, err)
		return res
	}

	prev, err := c.store.LatestSnapshot(persistCtx, src.ID)
	if err != nil {
		c.fail(persistCtx, res, started, out.Elapsed, out.StatusCode, fmt.Errorf("load latest snapshot: %w", err))
		return res
	}

	var diff model.DiffResult
	if prev != nil && prev.Fingerprint == canonical.Fingerprint {
		logger.Debug().Msg("fingerprint unchanged")
	} else {
		prevText := ""
		if prev != nil {
			prevText = prev.Text
		}
		diff = c.detector.Compare(prevText, canonical.Text, src.Label())
	}

	if diff.ContentDropped && prev != nil {
		res.ContentDropped = true
		c.notifyError(persistCtx, model.ErrorAlert{
			Source:         src,
			Message:        fmt.Sprintf("Content dropped from %d to %d chars", prev.Length, canonical.Length),
			HTTPStatus:     out.StatusCode,
			ContentDropped: true,
		})
	}

	snap, err := c.store.StoreSnapshot(persistCtx, model.NewSnapshot{
		SourceID:   src.ID,
		Canonical:  canonical,
		HTTPStatus: out.StatusCode,
		Raw:        out.Body,
	})
	if err != nil {
		c.fail(persistCtx, res, started, out.Elapsed, out.StatusCode, fmt.Errorf("store snapshot: %w", err))
		return res
	}

	if diff.HasChange && prev != nil {
		severity := model.SeverityForRatio(diff.ChangeRatio)
		change, err := c.store.StoreChange(persistCtx, model.NewChange{
			SourceID:         src.ID,
			BeforeSnapshotID: prev.ID,
			AfterSnapshotID:  snap.ID,
			DiffText:         diff.DiffText,
			Severity:         severity,
		})
		if err != nil {
			c.fail(persistCtx, res, started, out.Elapsed, out.StatusCode, fmt.Errorf("store change: %w", err))
			return res
		}

		alert := model.ChangeAlert{
			Source:      src,
			ChangeID:    change.ID,
			ChangeRatio: diff.ChangeRatio,
			Severity:    severity,
			Added:       diff.Added,
			Removed:     diff.Removed,
			Diff:        diff.DiffText,
		}
		bestEffort(src.Label(), "change notification", func() error {
			return c.notifier.ChangeDetected(persistCtx, alert)
		})

		res.Changed = true
		res.ChangeID = change.ID
		logger.Info().Str("change_id", change.ID).Str("severity", string(severity)).Msg("change recorded")
	}

	c.logAttempt(persistCtx, model.ScrapeAttempt{
		SourceID:      src.ID,
		Status:        model.AttemptSuccess,
		StartedAt:     started,
		Duration:      out.Elapsed,
		ContentLength: canonical.Length,
		Fingerprint:   canonical.Fingerprint,
		HasChange:     diff.HasChange,
	})

	bestEffort(src.Label(), "update last checked", func() error {
		return c.store.UpdateLastChecked(persistCtx, src.ID, c.now())
	})

	res.Status = SourceChecked
	return res
}

// fail records a per-source failure: attempt log, admin alert, error status
func (c *Cycle) fail(ctx context.Context, res *SourceResult, started time.Time, elapsed time.Duration, status int, err error) {
	res.Status = SourceFailed
	res.Err = err

	c.logAttempt(ctx, model.ScrapeAttempt{
		SourceID:  res.Source.ID,
		Status:    model.AttemptError,
		StartedAt: started,
		Duration:  elapsed,
		Error:     err.Error(),
	})
	c.notifyError(ctx, model.ErrorAlert{
		Source:     res.Source,
		Message:    err.Error(),
		HTTPStatus: status,
	})
}

func (c *Cycle) logAttempt(ctx context.Context, attempt model.ScrapeAttempt) {
	bestEffort(attempt.SourceID, "write scrape log", func() error {
		return c.store.LogAttempt(ctx, attempt)
	})
}

func (c *Cycle) notifyError(ctx context.Context, alert model.ErrorAlert) {
	bestEffort(alert.Source.Label(), "error notification", func() error {
		return c.notifier.ScraperError(ctx, alert)
	})
}

// bestEffort runs a side effect that must not change a source's outcome.
// Errors and panics are logged and swallowed; the latter matters because
// fail also runs from processSource's recover handler.
func bestEffort(source, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("source", source).Str("stack", string(debug.Stack())).Msgf("%s panicked: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("source", source).Msgf("%s failed", what)
	}
}
