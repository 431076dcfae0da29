// Package store persists sources, snapshots, changes and the scrape log in
// SQLite, and archives raw response bodies on disk.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/regwatch/internal/model"
)

// ErrDuplicateURL is returned when inserting a source whose URL is registered
var ErrDuplicateURL = errors.New("source URL already registered")

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	source_type TEXT NOT NULL DEFAULT 'html',
	css_selector TEXT NOT NULL DEFAULT '',
	jurisdiction TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	last_checked_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL REFERENCES sources(id),
	fetched_at INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	extracted_text TEXT NOT NULL,
	content_length INTEGER NOT NULL,
	http_status INTEGER NOT NULL,
	raw_storage_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_snapshots_source_fetched ON snapshots(source_id, fetched_at);

CREATE TABLE IF NOT EXISTS changes (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL REFERENCES sources(id),
	snapshot_before_id TEXT NOT NULL REFERENCES snapshots(id),
	snapshot_after_id TEXT NOT NULL REFERENCES snapshots(id),
	diff_text TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	detected_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	content_length INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	has_change INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);
`

// archiveTimeFormat names archived bodies; it sorts lexically in time order
const archiveTimeFormat = "20060102T150405.000000000Z"

// Store is the SQLite-backed persistence layer
type Store struct {
	db         *sql.DB
	archiveDir string
	now        func() time.Time
}

// Open opens (creating if needed) the database at dbPath. Raw bodies are
// archived under archiveDir; an empty archiveDir disables archiving.
func Open(dbPath, archiveDir string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create tables: %w", err)
	}

	return &Store{
		db:         db,
		archiveDir: archiveDir,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const sourceColumns = `id, name, url, source_type, css_selector, jurisdiction, category, is_active, last_checked_at, created_at`

// InsertSource registers a new source. A missing ID is generated and an
// empty doc type defaults to HTML.
func (s *Store) InsertSource(ctx context.Context, src model.Source) (model.Source, error) {
	if src.URL == "" {
		return model.Source{}, errors.New("store: source URL is required")
	}
	docType, err := model.ParseDocType(string(src.DocType))
	if err != nil {
		return model.Source{}, fmt.Errorf("store: %w", err)
	}
	src.DocType = docType
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = s.now()
	}

	existing, err := s.SourceByURL(ctx, src.URL)
	if err != nil {
		return model.Source{}, err
	}
	if existing != nil {
		return model.Source{}, fmt.Errorf("store: %w: %s", ErrDuplicateURL, src.URL)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, src.URL, string(src.DocType), src.Selector, src.Jurisdiction, src.Category,
		boolToInt(src.Active), nullableTime(src.LastCheckedAt), src.CreatedAt.UnixNano(),
	)
	if err != nil {
		return model.Source{}, fmt.Errorf("store: insert source %s: %w", src.URL, err)
	}
	return src, nil
}

// SourceByURL returns the source registered for url, or nil if there is none
func (s *Store) SourceByURL(ctx context.Context, url string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE url = ?`, url)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: source by url %s: %w", url, err)
	}
	return &src, nil
}

// ListSources returns every registered source, active or not
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY jurisdiction, name`)
}

// ListActiveSources returns the sources to check in a cycle
func (s *Store) ListActiveSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE is_active = 1 ORDER BY jurisdiction, name`)
}

// SetActive enables or disables checking a source
func (s *Store) SetActive(ctx context.Context, sourceID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET is_active = ? WHERE id = ?`, boolToInt(active), sourceID)
	if err != nil {
		return fmt.Errorf("store: set active %s: %w", sourceID, err)
	}
	return expectOneRow(res, sourceID)
}

// UpdateLastChecked records a successful check of a source
func (s *Store) UpdateLastChecked(ctx context.Context, sourceID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET last_checked_at = ? WHERE id = ?`, at.UTC().UnixNano(), sourceID)
	if err != nil {
		return fmt.Errorf("store: update last checked %s: %w", sourceID, err)
	}
	return expectOneRow(res, sourceID)
}

func (s *Store) querySources(ctx context.Context, query string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	return sources, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (model.Source, error) {
	var (
		src         model.Source
		docType     string
		active      int
		lastChecked sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&src.ID, &src.Name, &src.URL, &docType, &src.Selector, &src.Jurisdiction,
		&src.Category, &active, &lastChecked, &createdAt); err != nil {
		return model.Source{}, err
	}
	src.DocType = model.DocType(docType)
	src.Active = active != 0
	src.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastChecked.Valid {
		t := time.Unix(0, lastChecked.Int64).UTC()
		src.LastCheckedAt = &t
	}
	return src, nil
}

// LatestSnapshot returns the most recent snapshot of a source, or nil if it
// has never been captured
func (s *Store) LatestSnapshot(ctx context.Context, sourceID string) (*model.Snapshot, error) {
	var (
		snap      model.Snapshot
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, fetched_at, content_hash, extracted_text, content_length, http_status, raw_storage_path
		 FROM snapshots WHERE source_id = ? ORDER BY fetched_at DESC, rowid DESC LIMIT 1`, sourceID,
	).Scan(&snap.ID, &snap.SourceID, &fetchedAt, &snap.Fingerprint, &snap.Text, &snap.Length, &snap.HTTPStatus, &snap.RawPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest snapshot %s: %w", sourceID, err)
	}
	snap.FetchedAt = time.Unix(0, fetchedAt).UTC()
	return &snap, nil
}

// StoreSnapshot appends a snapshot. The raw body is archived first; an
// archive failure leaves RawPath empty but the snapshot is still stored.
func (s *Store) StoreSnapshot(ctx context.Context, in model.NewSnapshot) (*model.Snapshot, error) {
	snap := model.Snapshot{
		ID:          uuid.NewString(),
		SourceID:    in.SourceID,
		FetchedAt:   s.now(),
		Fingerprint: in.Canonical.Fingerprint,
		Text:        in.Canonical.Text,
		Length:      in.Canonical.Length,
		HTTPStatus:  in.HTTPStatus,
	}

	if path, err := s.archive(in.SourceID, snap.FetchedAt, in.Raw); err != nil {
		log.Warn().Err(err).Str("source_id", in.SourceID).Msg("failed to archive raw content")
	} else {
		snap.RawPath = path
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, source_id, fetched_at, content_hash, extracted_text, content_length, http_status, raw_storage_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SourceID, snap.FetchedAt.UnixNano(), snap.Fingerprint, snap.Text, snap.Length, snap.HTTPStatus, snap.RawPath,
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert snapshot for %s: %w", in.SourceID, err)
	}
	return &snap, nil
}

// archive writes raw bytes to archiveDir/<source>/<timestamp>.bin and
// returns the path relative to archiveDir
func (s *Store) archive(sourceID string, at time.Time, raw []byte) (string, error) {
	if s.archiveDir == "" || len(raw) == 0 {
		return "", nil
	}
	rel := filepath.Join(sourceID, at.Format(archiveTimeFormat)+".bin")
	full := filepath.Join(s.archiveDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(full, raw, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return rel, nil
}

// ReadArchive returns the raw bytes archived for a snapshot
func (s *Store) ReadArchive(snap model.Snapshot) ([]byte, error) {
	if snap.RawPath == "" {
		return nil, fmt.Errorf("store: snapshot %s has no archived content", snap.ID)
	}
	data, err := os.ReadFile(filepath.Join(s.archiveDir, snap.RawPath))
	if err != nil {
		return nil, fmt.Errorf("store: read archive: %w", err)
	}
	return data, nil
}

// StoreChange records a detected change as pending review
func (s *Store) StoreChange(ctx context.Context, in model.NewChange) (*model.ChangeRecord, error) {
	rec := model.ChangeRecord{
		ID:               uuid.NewString(),
		SourceID:         in.SourceID,
		BeforeSnapshotID: in.BeforeSnapshotID,
		AfterSnapshotID:  in.AfterSnapshotID,
		DiffText:         in.DiffText,
		Severity:         in.Severity,
		Status:           model.ChangePendingReview,
		DetectedAt:       s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO changes (id, source_id, snapshot_before_id, snapshot_after_id, diff_text, severity, status, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceID, rec.BeforeSnapshotID, rec.AfterSnapshotID, rec.DiffText,
		string(rec.Severity), string(rec.Status), rec.DetectedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert change for %s: %w", in.SourceID, err)
	}
	return &rec, nil
}

// PendingChanges returns changes awaiting review with their source, oldest first
func (s *Store) PendingChanges(ctx context.Context) ([]model.PendingChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.source_id, c.snapshot_before_id, c.snapshot_after_id, c.diff_text, c.severity, c.status, c.detected_at,
		        s.name, s.url, s.jurisdiction
		 FROM changes c JOIN sources s ON s.id = c.source_id
		 WHERE c.status = ? ORDER BY c.detected_at, c.rowid`, string(model.ChangePendingReview))
	if err != nil {
		return nil, fmt.Errorf("store: pending changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []model.PendingChange
	for rows.Next() {
		var (
			pc         model.PendingChange
			severity   string
			status     string
			detectedAt int64
		)
		if err := rows.Scan(&pc.ID, &pc.SourceID, &pc.BeforeSnapshotID, &pc.AfterSnapshotID,
			&pc.DiffText, &severity, &status, &detectedAt,
			&pc.Source.Name, &pc.Source.URL, &pc.Source.Jurisdiction); err != nil {
			return nil, fmt.Errorf("store: scan change: %w", err)
		}
		pc.Severity = model.Severity(severity)
		pc.Status = model.ChangeStatus(status)
		pc.DetectedAt = time.Unix(0, detectedAt).UTC()
		pc.Source.ID = pc.SourceID
		changes = append(changes, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: pending changes: %w", err)
	}
	return changes, nil
}

// LogAttempt appends a scrape attempt to the health log
func (s *Store) LogAttempt(ctx context.Context, a model.ScrapeAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (source_id, status, started_at, duration_ms, content_length, content_hash, has_change, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SourceID, string(a.Status), a.StartedAt.UTC().UnixNano(), a.Duration.Milliseconds(),
		a.ContentLength, a.Fingerprint, boolToInt(a.HasChange), a.Error,
	)
	if err != nil {
		return fmt.Errorf("store: log attempt for %s: %w", a.SourceID, err)
	}
	return nil
}

// RecentAttempts returns up to limit of the latest attempts for a source, newest first
func (s *Store) RecentAttempts(ctx context.Context, sourceID string, limit int) ([]model.ScrapeAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, status, started_at, duration_ms, content_length, content_hash, has_change, error_message
		 FROM scrape_log WHERE source_id = ? ORDER BY id DESC LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []model.ScrapeAttempt
	for rows.Next() {
		var (
			a          model.ScrapeAttempt
			status     string
			startedAt  int64
			durationMS int64
			hasChange  int
		)
		if err := rows.Scan(&a.SourceID, &status, &startedAt, &durationMS, &a.ContentLength,
			&a.Fingerprint, &hasChange, &a.Error); err != nil {
			return nil, fmt.Errorf("store: scan attempt: %w", err)
		}
		a.Status = model.AttemptStatus(status)
		a.StartedAt = time.Unix(0, startedAt).UTC()
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.HasChange = hasChange != 0
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent attempts: %w", err)
	}
	return attempts, nil
}

func expectOneRow(res sql.Result, sourceID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: unknown source %s", sourceID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}
