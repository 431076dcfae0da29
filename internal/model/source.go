package model

import (
	"fmt"
	"strings"
	"time"
)

// Source is a monitored regulatory page or document
type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	DocType       DocType    `json:"source_type"`                 // html or pdf
	Selector      string     `json:"css_selector,omitempty"`      // Optional CSS selector scoping extraction
	Jurisdiction  string     `json:"jurisdiction"`                // e.g. "pleasanton", "california"
	Category      string     `json:"category,omitempty"`          // Free-form grouping (ordinance, permit, tax)
	Active        bool       `json:"is_active"`                   // Inactive sources are never fetched
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`   // Set after every successful check
	CreatedAt     time.Time  `json:"created_at"`
}

// Label returns the name used in logs and notifications
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// DocType identifies how fetched bytes are turned into text
type DocType string

const (
	DocTypeHTML DocType = "html"
	DocTypePDF  DocType = "pdf"
)

// ParseDocType parses a document type, defaulting empty input to HTML
func ParseDocType(s string) (DocType, error) {
	switch DocType(strings.ToLower(strings.TrimSpace(s))) {
	case "", DocTypeHTML:
		return DocTypeHTML, nil
	case DocTypePDF:
		return DocTypePDF, nil
	default:
		return "", fmt.Errorf("unknown source type %q (want html or pdf)", s)
	}
}
