package model

// ChangeAlert asks an administrator to review a detected change
type ChangeAlert struct {
	Source      Source
	ChangeID    string
	ChangeRatio float64
	Severity    Severity
	Added       int
	Removed     int
	Diff        string // Full diff; channels truncate for display
}

// ErrorAlert reports a failed scrape or a suspected scraper breakage
type ErrorAlert struct {
	Source         Source
	Message        string
	HTTPStatus     int
	ContentDropped bool
}
