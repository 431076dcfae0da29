package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// noiseSelector lists elements that never carry regulatory content. The head
// goes too: titles often carry dates and site names that churn between fetches.
const noiseSelector = "head, script, style, nav, footer, header, noscript, iframe, template, svg, object, embed"

// blockElements start and end a logical line
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"caption": true, "dd": true, "details": true, "dialog": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hgroup": true,
	"hr": true, "html": true, "head": true, "legend": true, "li": true, "main": true,
	"ol": true, "option": true, "p": true, "pre": true, "section": true, "summary": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true, "thead": true,
	"title": true, "tr": true, "ul": true,
}

// htmlText extracts block-separated text from an HTML document
func htmlText(raw []byte, selector string) (string, error) {
	// The charset sniffer fails with io.EOF on an empty body.
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}

	reader, err := charset.NewReader(bytes.NewReader(raw), "")
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	root := doc.Selection
	if selector != "" {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			return "", fmt.Errorf("invalid selector %q: %w", selector, err)
		}
		if scoped := doc.FindMatcher(matcher).First(); scoped.Length() > 0 {
			root = scoped
		} else {
			log.Debug().Str("selector", selector).Msg("selector matched nothing, using whole document")
		}
	}

	w := &textWriter{}
	for _, n := range root.Nodes {
		w.walk(n, false)
	}
	w.flush()

	return collapseLines(w.lines), nil
}

// textWriter accumulates inline text into lines
type textWriter struct {
	lines        []string
	cur          strings.Builder
	pendingSpace bool
}

func (w *textWriter) walk(n *html.Node, inPre bool) {
	switch n.Type {
	case html.TextNode:
		if inPre {
			w.preText(n.Data)
		} else {
			w.text(n.Data)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if name == "br" {
			w.lineBreak()
			return
		}
		if name == "pre" {
			inPre = true
		}
		if blockElements[name] {
			w.flush()
			defer w.flush()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, inPre)
	}
}

// text appends inline text with whitespace runs collapsed to single spaces
func (w *textWriter) text(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" && w.cur.Len() > 0 {
			w.pendingSpace = true
		}
		return
	}
	if w.cur.Len() > 0 && (w.pendingSpace || startsWithSpace(s)) {
		w.cur.WriteByte(' ')
	}
	w.cur.WriteString(strings.Join(words, " "))
	w.pendingSpace = endsWithSpace(s)
}

// preText keeps the line structure of preformatted text
func (w *textWriter) preText(s string) {
	for i, part := range strings.Split(s, "\n") {
		if i > 0 {
			w.lineBreak()
		}
		w.cur.WriteString(part)
	}
}

// flush ends the current line if it holds any text
func (w *textWriter) flush() {
	line := strings.TrimSpace(w.cur.String())
	if line != "" {
		w.lines = append(w.lines, line)
	}
	w.cur.Reset()
	w.pendingSpace = false
}

// lineBreak ends the current line, keeping it even when blank
func (w *textWriter) lineBreak() {
	w.lines = append(w.lines, strings.TrimSpace(w.cur.String()))
	w.cur.Reset()
	w.pendingSpace = false
}

func startsWithSpace(s string) bool {
	return strings.TrimLeftFunc(s, unicode.IsSpace) != s
}

func endsWithSpace(s string) bool {
	return strings.TrimRightFunc(s, unicode.IsSpace) != s
}
