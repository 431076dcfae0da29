package model

import "time"

// CanonicalText is the normalized text extracted from one fetch
type CanonicalText struct {
	Text        string // Normalized plain text
	Length      int    // Length in characters (runes), not bytes
	Fingerprint string // SHA-256 hex of Text
}

// Snapshot is one persisted capture of a source. Snapshots are append-only.
type Snapshot struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	FetchedAt   time.Time `json:"fetched_at"`
	Fingerprint string    `json:"content_hash"`
	Text        string    `json:"extracted_text"`
	Length      int       `json:"content_length"`
	HTTPStatus  int       `json:"http_status"`
	RawPath     string    `json:"raw_storage_path,omitempty"` // Empty when archiving the raw body failed
}

// NewSnapshot carries everything needed to append a snapshot
type NewSnapshot struct {
	SourceID   string
	Canonical  CanonicalText
	HTTPStatus int
	Raw        []byte
}

// ChangeStatus tracks a change record through the review workflow. Only the
// initial state is written here; review happens outside this tool.
type ChangeStatus string

const ChangePendingReview ChangeStatus = "pending_review"

// Severity classifies a change for reviewers
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// WarningRatio is the change ratio above which a change is classified as a warning
const WarningRatio = 0.10

// SeverityForRatio maps a change ratio onto a review severity
func SeverityForRatio(ratio float64) Severity {
	if ratio > WarningRatio {
		return SeverityWarning
	}
	return SeverityInfo
}

// ChangeRecord links two snapshots of a source whose difference crossed the threshold
type ChangeRecord struct {
	ID               string       `json:"id"`
	SourceID         string       `json:"source_id"`
	BeforeSnapshotID string       `json:"snapshot_before_id"`
	AfterSnapshotID  string       `json:"snapshot_after_id"`
	DiffText         string       `json:"diff_text"`
	Severity         Severity     `json:"severity"`
	Status           ChangeStatus `json:"status"`
	DetectedAt       time.Time    `json:"detected_at"`
}

// PendingChange is a change awaiting review with the source it was detected on
type PendingChange struct {
	ChangeRecord
	Source Source
}

// NewChange carries everything needed to record a detected change
type NewChange struct {
	SourceID         string
	BeforeSnapshotID string
	AfterSnapshotID  string
	DiffText         string
	Severity         Severity
}

// AttemptStatus is the outcome of one scrape attempt
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptError   AttemptStatus = "error"
)

// ScrapeAttempt is the health-log entry written for every processed source
type ScrapeAttempt struct {
	SourceID      string
	Status        AttemptStatus
	StartedAt     time.Time
	Duration      time.Duration
	ContentLength int
	Fingerprint   string
	HasChange     bool
	Error         string
}
