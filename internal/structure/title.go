package structure

import (
	"strings"
)

// titleScanWindow bounds how many non-trivial lines are considered for the
// title.
const titleScanWindow = 8

// maxTitleLength keeps titles to a presentable size.
const maxTitleLength = 60

// Document types detected from content, used for the generic fallback title.
const (
	DocTypeAssignment = "assignment"
	DocTypeTextbook   = "textbook"
	DocTypeNotes      = "notes"
)

var fallbackTitles = map[string]string{
	DocTypeAssignment: "Assignment Notes",
	DocTypeTextbook:   "Textbook Notes",
	DocTypeNotes:      "Scanned Notes",
}

// ExtractTitle scans the first few non-trivial lines for a title candidate.
// Assignment/exercise/problem lines and subject names take priority; single
// words, pure numbers and scanner noise are skipped. The boolean reports
// whether a candidate was found.
func ExtractTitle(text string) (string, bool) {
	var candidates []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if len([]rune(line)) < 3 || pageMarkerPattern.MatchString(line) {
			continue
		}
		candidates = append(candidates, line)
		if len(candidates) == titleScanWindow {
			break
		}
	}

	// First pass: explicit priority patterns win over position.
	for _, line := range candidates {
		if assignmentTitlePattern.MatchString(line) {
			return cleanTitle(line), true
		}
	}
	for _, line := range candidates {
		if startsWithSubject(line) && titleWorthy(line) {
			return cleanTitle(line), true
		}
	}

	// Second pass: first multi-word, reasonably short, non-noise line.
	for _, line := range candidates {
		if titleWorthy(line) {
			return cleanTitle(line), true
		}
	}

	return "", false
}

// FallbackTitle derives a generic, never-empty title from the detected
// document type.
func FallbackTitle(docType string) string {
	if title, ok := fallbackTitles[docType]; ok {
		return title
	}
	return fallbackTitles[DocTypeNotes]
}

// DetectDocumentType inspects the content for document-type signals.
func DetectDocumentType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case assignmentTitlePattern.MatchString(lower) ||
		strings.Contains(lower, "assignment") || strings.Contains(lower, "homework"):
		return DocTypeAssignment
	case strings.Contains(lower, "chapter") || strings.Contains(lower, "section"):
		return DocTypeTextbook
	default:
		return DocTypeNotes
	}
}

func titleWorthy(line string) bool {
	if len([]rune(line)) > maxTitleLength {
		return false
	}
	if len(strings.Fields(line)) < 2 {
		return false
	}
	if pureNumberPattern.MatchString(line) {
		return false
	}
	if isNoise(line) || looksLikeMath(line) {
		return false
	}
	return true
}

func startsWithSubject(line string) bool {
	lower := strings.ToLower(line)
	for _, subject := range SubjectNames {
		if strings.HasPrefix(lower, subject) {
			return true
		}
	}
	return false
}

func cleanTitle(line string) string {
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		title = strings.TrimSpace(string(runes[:maxTitleLength]))
	}
	return title
}
