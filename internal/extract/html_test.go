package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regwatch/internal/model"
)

func extractHTML(t *testing.T, raw string, selector string) string {
	t.Helper()
	ct, err := NewExtractor().Extract([]byte(raw), model.DocTypeHTML, selector)
	require.NoError(t, err)
	return ct.Text
}

func TestHTML_BlockSeparation(t *testing.T) {
	raw := `<html><head><title>Rules</title></head><body>
		<p>First   paragraph</p><p>Second <b>bold</b> text</p>
	</body></html>`

	assert.Equal(t, "First paragraph\nSecond bold text", extractHTML(t, raw, ""))
}

func TestHTML_DropsHeadAndTitle(t *testing.T) {
	raw := `<html><head><title>Ordinance 2026-10-16</title><meta name="x" content="y"></head>
		<body><p>a</p><p>b</p></body></html>`

	assert.Equal(t, "a\nb", extractHTML(t, raw, ""))
}

func TestHTML_RemovesNoise(t *testing.T) {
	raw := `<html><body>
		<header>Site banner</header>
		<nav><a href="/">Home</a></nav>
		<script>var tracking = 1;</script>
		<style>p { color: red }</style>
		<noscript>Enable JavaScript</noscript>
		<iframe src="/ad"></iframe>
		<p>Hosts must register annually.</p>
		<footer>Copyright 2026</footer>
	</body></html>`

	text := extractHTML(t, raw, "")

	assert.Equal(t, "Hosts must register annually.", text)
}

func TestHTML_SelectorScopesExtraction(t *testing.T) {
	raw := `<body>
		<div id="content"><h2>Chapter 5</h2><p>Rule A applies.</p></div>
		<div class="sidebar"><p>Latest news</p></div>
	</body>`

	assert.Equal(t, "Chapter 5\nRule A applies.", extractHTML(t, raw, "#content"))
}

func TestHTML_SelectorUsesFirstMatch(t *testing.T) {
	raw := `<body><section class="rule">One</section><section class="rule">Two</section></body>`

	assert.Equal(t, "One", extractHTML(t, raw, ".rule"))
}

func TestHTML_SelectorWithoutMatchFallsBack(t *testing.T) {
	raw := `<body><p>Whole page</p></body>`

	assert.Equal(t, "Whole page", extractHTML(t, raw, "#missing"))
}

func TestHTML_InvalidSelector(t *testing.T) {
	_, err := NewExtractor().Extract([]byte("<p>x</p>"), model.DocTypeHTML, "div[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selector")
}

func TestHTML_CollapsesBlankLines(t *testing.T) {
	raw := `<body><p>A<br><br><br><br>B</p></body>`

	assert.Equal(t, "A\n\nB", extractHTML(t, raw, ""))
}

func TestHTML_WhitespaceReflowIsStable(t *testing.T) {
	a := extractHTML(t, "<p>Hello\n     world,\tagain</p>", "")
	b := extractHTML(t, "<p>Hello world, again</p>", "")

	assert.Equal(t, a, b)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestHTML_NonBreakingSpaces(t *testing.T) {
	assert.Equal(t, "Fee due", extractHTML(t, "<p>Fee&nbsp;&nbsp;due</p>", ""))
}

func TestHTML_PreservesPreformattedLines(t *testing.T) {
	raw := "<body><pre>Sec. 1\n   Sec. 2\n\n\nSec. 3</pre></body>"

	assert.Equal(t, "Sec. 1\nSec. 2\n\nSec. 3", extractHTML(t, raw, ""))
}

func TestHTML_TableCells(t *testing.T) {
	raw := `<table><tr><th>Item</th><th>Fee</th></tr><tr><td>Permit</td><td>$100</td></tr></table>`

	assert.Equal(t, "Item\nFee\nPermit\n$100", extractHTML(t, raw, ""))
}

func TestHTML_DecodesDeclaredCharset(t *testing.T) {
	raw := "<html><head><meta charset=\"iso-8859-1\"></head><body><p>Caf\xe9</p></body></html>"

	assert.Equal(t, "Café", extractHTML(t, raw, ""))
}

func TestHTML_EmptyDocument(t *testing.T) {
	assert.Equal(t, "", extractHTML(t, "", ""))
	assert.Equal(t, "", extractHTML(t, " \n\t", ""))
}

func TestExtract_EmptyHTMLBodyIsEmptyText(t *testing.T) {
	ct, err := NewExtractor().Extract(nil, model.DocTypeHTML, "#content")
	require.NoError(t, err)
	assert.Equal(t, 0, ct.Length)
	assert.Equal(t, Fingerprint(""), ct.Fingerprint)
}
