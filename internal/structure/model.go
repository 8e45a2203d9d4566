package structure

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var (
	markdownHeadingPattern = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	htmlTagPattern         = regexp.MustCompile(`(?s)<(p|div|h[1-6]|ul|ol|li|table|br|span)\b[^>]*>`)
	htmlStripPattern       = regexp.MustCompile(`(?s)<[^>]+>`)
)

// newModelConverter builds the HTML to markdown converter used when the
// provider answers in HTML instead of markdown.
func newModelConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// ParseComposed cleans up a model-composed note: strips code-fence wrapping
// artefacts, converts HTML answers to markdown, and parses out a title from
// the first heading-like element or first short line. The body passes through
// otherwise untouched.
func (s *Structurer) ParseComposed(raw string) Structured {
	body := stripCodeFence(strings.TrimSpace(raw))

	if htmlTagPattern.MatchString(body) {
		if markdown, err := newModelConverter().ConvertString(body); err == nil {
			body = strings.TrimSpace(markdown)
		} else {
			s.logger.WithError(err).Warn("HTML conversion of composed note failed, stripping tags")
			body = strings.TrimSpace(htmlStripPattern.ReplaceAllString(body, ""))
		}
	}

	title, body := splitComposedTitle(body)
	docType := DetectDocumentType(body)
	if title == "" {
		title = FallbackTitle(docType)
	}

	return Structured{
		Title:   title,
		Body:    body,
		DocType: docType,
	}
}

// splitComposedTitle pulls the title out of the composed body. A leading
// markdown heading is consumed; otherwise the first short line is used as
// title but kept in the body.
func splitComposedTitle(body string) (string, string) {
	lines := strings.Split(body, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := markdownHeadingPattern.FindStringSubmatch(line); m != nil {
			rest := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return cleanTitle(m[1]), rest
		}
		if len([]rune(line)) <= maxTitleLength {
			return cleanTitle(line), body
		}
		break
	}
	return "", body
}

// stripCodeFence removes a single code-fence wrapper around the whole
// response, a common artefact of markdown-emitting models.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	// Drop the opening fence (with any language tag) and a matching closer.
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = append(lines[:i], lines[i+1:]...)
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
