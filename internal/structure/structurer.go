// Package structure converts raw extracted text into structured markdown with
// a guaranteed title. The deterministic path classifies OCR lines against
// fixed rule tables; the model path cleans up provider-composed notes.
package structure

import (
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// Structured is formatted note output. Title is never empty.
type Structured struct {
	Title   string
	Body    string
	DocType string
}

// Structurer formats raw text. It holds no per-request state and is safe for
// concurrent use.
type Structurer struct {
	logger *logrus.Logger
}

// New creates a Structurer.
func New(logger *logrus.Logger) *Structurer {
	return &Structurer{logger: logger}
}

// FormatOCR runs the deterministic rule-based path over raw OCR text. No
// network cost is incurred.
func (s *Structurer) FormatOCR(text string) Structured {
	docType := DetectDocumentType(text)

	title, found := ExtractTitle(text)
	if !found {
		title = FallbackTitle(docType)
	}

	body := s.buildBody(text)

	return Structured{
		Title:   title,
		Body:    body,
		DocType: docType,
	}
}

// buildBody classifies each line and emits markdown. Raw OCR content is
// escaped at embed time; page markers pass through untouched. A short
// follow-on line is folded into the preceding paragraph at most once.
func (s *Structurer) buildBody(text string) string {
	var out []string
	lastParagraph := -1 // index into out of the open paragraph, -1 when none
	merged := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(stripControl(raw))

		switch classifyLine(line) {
		case kindBlank:
			lastParagraph = -1
		case kindPageMarker:
			out = append(out, "", line, "")
			lastParagraph = -1
		case kindHeading:
			out = append(out, "## "+escapeText(strings.TrimSuffix(line, ":")), "")
			lastParagraph = -1
		case kindListItem:
			out = append(out, formatListItem(line))
			lastParagraph = -1
		case kindParagraph:
			if lastParagraph >= 0 && !merged && canMergeContinuation(line) {
				out[lastParagraph] += " " + escapeText(line)
				merged = true
				continue
			}
			out = append(out, escapeText(line), "")
			lastParagraph = len(out) - 2
			merged = false
		}
	}

	return strings.TrimSpace(collapseBlank(out))
}

// formatListItem normalises bullet glyphs to "-" and keeps ordered markers.
func formatListItem(line string) string {
	runes := []rune(line)
	if strings.ContainsRune(BulletGlyphs, runes[0]) {
		content := strings.TrimSpace(string(runes[1:]))
		return "- " + escapeText(content)
	}
	return escapeText(line)
}

// escapeText escapes HTML-significant characters so raw OCR text cannot leak
// markup into the structured output.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeText(text string) string {
	return htmlEscaper.Replace(text)
}

// stripControl removes user-visible control characters, keeping tabs.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

// collapseBlank joins lines while collapsing runs of blank lines to one.
func collapseBlank(lines []string) string {
	var b strings.Builder
	lastBlank := false
	for _, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank && lastBlank {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		lastBlank = blank
	}
	return b.String()
}
