package model

import "time"

// CycleStats summarises one pass over the active sources
type CycleStats struct {
	Total        int           `json:"total"`
	Checked      int           `json:"checked"`
	Changed      int           `json:"changed"`
	Errors       int           `json:"errors"`
	Skipped      int           `json:"skipped"`       // Not started before the cycle deadline
	ContentDrops int           `json:"content_drops"` // Breakage signals raised
	Elapsed      time.Duration `json:"elapsed"`
}
