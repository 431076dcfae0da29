// Package diff classifies the difference between two canonical texts.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/regwatch/internal/model"
)

const (
	// DefaultChangeThreshold is the minimum change ratio that counts as a real change
	DefaultChangeThreshold = 0.005
	// DefaultContentDropThreshold flags new text shorter than this fraction of the old
	DefaultContentDropThreshold = 0.5

	contextLines = 3
)

// Detector compares consecutive snapshots of a source
type Detector struct {
	changeThreshold      float64
	contentDropThreshold float64
}

// NewDetector creates a detector. Non-positive thresholds fall back to the defaults.
func NewDetector(changeThreshold, contentDropThreshold float64) *Detector {
	if changeThreshold <= 0 {
		changeThreshold = DefaultChangeThreshold
	}
	if contentDropThreshold <= 0 {
		contentDropThreshold = DefaultContentDropThreshold
	}
	return &Detector{
		changeThreshold:      changeThreshold,
		contentDropThreshold: contentDropThreshold,
	}
}

// Compare classifies the change from oldText to newText. An empty oldText is a
// first observation and never counts as a change.
func (d *Detector) Compare(oldText, newText, label string) model.DiffResult {
	if oldText == "" {
		return model.DiffResult{}
	}

	result := model.DiffResult{
		ContentDropped: d.contentDropped(oldText, newText, label),
	}

	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	matcher := difflib.NewMatcher(oldLines, newLines)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			result.Removed += op.I2 - op.I1
			result.Added += op.J2 - op.J1
		case 'd':
			result.Removed += op.I2 - op.I1
		case 'i':
			result.Added += op.J2 - op.J1
		}
	}
	if result.Added == 0 && result.Removed == 0 {
		return result
	}

	total := max(len(oldLines), len(newLines), 1)
	result.ChangeRatio = min(float64(result.Added+result.Removed)/float64(total), 1)
	result.HasChange = result.ChangeRatio >= d.changeThreshold

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        oldLines,
		B:        newLines,
		FromFile: "previous",
		ToFile:   "current",
		Context:  contextLines,
	})
	if err != nil {
		// Only write errors on the internal buffer can surface here.
		log.Warn().Err(err).Str("source", label).Msg("render unified diff")
	}
	result.DiffText = strings.TrimSuffix(text, "\n")

	if result.HasChange {
		log.Info().
			Str("source", label).
			Int("added", result.Added).
			Int("removed", result.Removed).
			Float64("ratio", result.ChangeRatio).
			Msg("change detected")
	}

	return result
}

// contentDropped reports whether newText collapsed relative to oldText.
// Lengths are measured in characters, independent of the line ratio.
func (d *Detector) contentDropped(oldText, newText, label string) bool {
	oldLen := utf8.RuneCountInString(oldText)
	newLen := utf8.RuneCountInString(newText)
	sizeRatio := float64(newLen) / float64(oldLen)
	if sizeRatio >= d.contentDropThreshold {
		return false
	}

	log.Warn().
		Str("source", label).
		Int("old_chars", oldLen).
		Int("new_chars", newLen).
		Float64("size_ratio", sizeRatio).
		Msg("content drop detected")
	return true
}

// splitLines splits text into newline-terminated lines for the diff
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}
