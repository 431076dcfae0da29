package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regwatch/internal/model"
)

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(dir, "regwatch.db")
	cfg.Storage.ArchiveDir = filepath.Join(dir, "archive")
	cfg.RateLimiting.RequestsPerSecond = 0
	return cfg
}

func TestApp_DetectsChangeAcrossCycles(t *testing.T) {
	var version atomic.Int32
	version.Store(1)
	mux := http.NewServeMux()
	mux.HandleFunc("/str", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, `<html><body><nav>Home | About</nav><div id="content">
			<h1>Short-Term Rental Ordinance</h1>
			<p>Hosts must register annually.</p>
			<p>Registration fee: $%d</p></div></body></html>`, 100*version.Load())
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := newApp(testConfig(t), true)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	_, err = a.store.InsertSource(ctx, model.Source{
		Name: "STR Ordinance", URL: server.URL + "/str", Selector: "#content", Jurisdiction: "pleasanton", Active: true,
	})
	require.NoError(t, err)
	_, err = a.store.InsertSource(ctx, model.Source{
		Name: "Broken page", URL: server.URL + "/broken", Jurisdiction: "pleasanton", Active: true,
	})
	require.NoError(t, err)

	stats, err := a.cycle.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Changed)

	version.Store(2)
	stats, err = a.cycle.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Changed)

	pending, err := a.store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].DiffText, "-Registration fee: $100")
	assert.Contains(t, pending[0].DiffText, "+Registration fee: $200")
	assert.NotContains(t, pending[0].DiffText, "Home | About")

	src, err := a.store.SourceByURL(ctx, server.URL+"/str")
	require.NoError(t, err)
	require.NotNil(t, src.LastCheckedAt)

	latest, err := a.store.LatestSnapshot(ctx, src.ID)
	require.NoError(t, err)
	raw, err := a.store.ReadArchive(*latest)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "$200")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("bad flag")))
	assert.Equal(t, ExitSourceErrors, ExitCode(&ExitError{Code: ExitSourceErrors, Err: ErrSourceErrors}))

	wrapped := fmt.Errorf("run: %w", &ExitError{Code: ExitSourceErrors, Err: ErrSourceErrors})
	assert.Equal(t, ExitSourceErrors, ExitCode(wrapped))
	assert.ErrorIs(t, wrapped, ErrSourceErrors)
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Notify.SlackWebhookURL = "https://hooks.slack.com/services/secret"
	cfg.Notify.TelegramToken = "123:abc"

	shown := redact(*cfg)
	assert.Equal(t, "<redacted>", shown.Notify.SlackWebhookURL)
	assert.Equal(t, "<redacted>", shown.Notify.TelegramToken)
	assert.Equal(t, "https://hooks.slack.com/services/secret", cfg.Notify.SlackWebhookURL)
}

func TestSummary(t *testing.T) {
	s := summary(model.CycleStats{Total: 5, Checked: 4, Changed: 1, Errors: 1})
	assert.Contains(t, s, "checked 4/5 sources")
	assert.Contains(t, s, "1 changed, 1 errors, 0 skipped")
}

func TestPrintChanges_ShowsSourceNameAndJurisdiction(t *testing.T) {
	changes := []model.PendingChange{{
		ChangeRecord: model.ChangeRecord{
			ID:         "c1",
			SourceID:   "5b1c7e2a-0000-4000-8000-000000000000",
			Severity:   model.SeverityWarning,
			DiffText:   "-a\n+b",
			DetectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Source: model.Source{Name: "Short-term rentals", Jurisdiction: "pleasanton", URL: "https://example.gov/str"},
	}}

	var table bytes.Buffer
	require.NoError(t, printChanges(&table, changes, false))
	assert.Contains(t, table.String(), "JURISDICTION")
	assert.Contains(t, table.String(), "Short-term rentals")
	assert.Contains(t, table.String(), "pleasanton")
	assert.NotContains(t, table.String(), changes[0].SourceID)

	var diffs bytes.Buffer
	require.NoError(t, printChanges(&diffs, changes, true))
	assert.Contains(t, diffs.String(), "Short-term rentals (pleasanton)")
	assert.Contains(t, diffs.String(), "-a\n+b")
}

func TestPrintSources_LastResultColumn(t *testing.T) {
	sources := []model.Source{
		{ID: "s1", Name: "Fees", DocType: model.DocTypeHTML, Jurisdiction: "dublin", Active: true},
		{ID: "s2", Name: "Zoning", DocType: model.DocTypePDF, Active: true},
	}
	results := map[string]string{
		"s1": lastResult([]model.ScrapeAttempt{{Status: model.AttemptError, Error: "HTTP 503"}}),
		"s2": lastResult(nil),
	}

	var out bytes.Buffer
	require.NoError(t, printSources(&out, sources, results))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "LAST RESULT")
	assert.Contains(t, lines[1], "error: HTTP 503")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))
}

func TestLastResult(t *testing.T) {
	assert.Equal(t, "-", lastResult(nil))
	assert.Equal(t, "success", lastResult([]model.ScrapeAttempt{{Status: model.AttemptSuccess}}))
	assert.Equal(t, "changed", lastResult([]model.ScrapeAttempt{{Status: model.AttemptSuccess, HasChange: true}}))

	long := lastResult([]model.ScrapeAttempt{{Status: model.AttemptError, Error: strings.Repeat("x", 100)}})
	assert.Equal(t, "error: "+strings.Repeat("x", 57)+"...", long)
}
