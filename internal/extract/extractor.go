package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/regwatch/internal/model"
	"golang.org/x/text/unicode/norm"
)

// ErrUnsupportedDocType is returned for document types with no extractor
var ErrUnsupportedDocType = errors.New("unsupported document type")

// Extractor turns fetched bytes into canonical text
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract converts raw bytes of the given document type into canonical text.
// The selector only applies to HTML and falls back to the whole document when
// it matches nothing.
func (e *Extractor) Extract(raw []byte, docType model.DocType, selector string) (model.CanonicalText, error) {
	var (
		text string
		err  error
	)

	switch docType {
	case model.DocTypeHTML:
		if isPDF(raw) {
			return model.CanonicalText{}, fmt.Errorf("html source returned a PDF document")
		}
		text, err = htmlText(raw, selector)
	case model.DocTypePDF:
		text, err = pdfText(raw)
	default:
		return model.CanonicalText{}, fmt.Errorf("%w: %q", ErrUnsupportedDocType, docType)
	}
	if err != nil {
		return model.CanonicalText{}, fmt.Errorf("extract %s: %w", docType, err)
	}

	return Canonical(text), nil
}

// Canonical wraps already-extracted text with its length and fingerprint
func Canonical(text string) model.CanonicalText {
	text = strings.TrimSpace(norm.NFC.String(text))
	return model.CanonicalText{
		Text:        text,
		Length:      utf8.RuneCountInString(text),
		Fingerprint: Fingerprint(text),
	}
}

// Fingerprint returns the SHA-256 hex digest of text
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// collapseLines trims every line and squeezes runs of blank lines into one
func collapseLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func isPDF(raw []byte) bool {
	return len(raw) >= 5 && string(raw[:5]) == "%PDF-"
}
