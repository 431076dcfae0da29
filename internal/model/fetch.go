package model

import "time"

// FetchOutcome is the result of one fetch attempt. Err is set for HTTP and
// network failures alike; StatusCode is 0 when no response was received.
type FetchOutcome struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
	Elapsed     time.Duration
	Err         error
}

// OK reports whether the fetch produced a usable body
func (o FetchOutcome) OK() bool {
	return o.Err == nil
}

// DiffResult is the classification of one comparison between two texts
type DiffResult struct {
	HasChange      bool    `json:"has_change"`
	ChangeRatio    float64 `json:"change_ratio"` // Fraction of lines added or removed, 0..1
	DiffText       string  `json:"diff_text"`    // Unified diff, present even below threshold
	Added          int     `json:"added_lines"`
	Removed        int     `json:"removed_lines"`
	ContentDropped bool    `json:"content_dropped"` // New text is suspiciously shorter than old
}
