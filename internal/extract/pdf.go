package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// pageSeparator joins the text of consecutive pages
const pageSeparator = "\n\n"

// pdfText extracts text page by page. Pages without extractable text, such as
// scanned images, contribute nothing.
func pdfText(raw []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("pdf page has no extractable text")
			continue
		}
		if cleaned := collapseLines(strings.Split(pageText, "\n")); cleaned != "" {
			pages = append(pages, cleaned)
		}
	}

	return strings.Join(pages, pageSeparator), nil
}
