package structure

import (
	"regexp"
	"strings"
	"unicode"
)

// The classification heuristics live in named rule tables so each rule can be
// tested and swapped independently of the orchestration logic.

// SectionKeywords are prefixes that mark a line as a heading regardless of
// casing.
var SectionKeywords = []string{
	"chapter",
	"section",
	"question",
	"exercise",
	"problem",
	"assignment",
	"homework",
	"lecture",
	"lesson",
	"unit",
	"part",
	"topic",
	"quiz",
	"lab",
}

// MathChars disqualify a line from being a heading or a merged continuation;
// short mathematical expressions otherwise look deceptively heading-like.
const MathChars = "=+-×÷<>²³√"

// BulletGlyphs are the characters recognised as unordered list markers.
const BulletGlyphs = "-•*‣◦·—–"

// NoiseTokens are scanner artefacts and brand stamps skipped during title
// extraction.
var NoiseTokens = []string{
	"camscanner",
	"scanned by",
	"scanned with",
	"adobe scan",
	"tapscanner",
	"copyright",
	"confidential",
	"page",
}

// SubjectNames get priority as title candidates when a line starts with one.
var SubjectNames = []string{
	"math", "mathematics", "algebra", "geometry", "calculus",
	"physics", "chemistry", "biology", "science",
	"history", "geography", "economics", "english", "literature",
	"computer science", "programming",
}

var (
	// assignmentTitlePattern matches "Assignment 3", "exercise #12" and the
	// like; these outrank other title candidates.
	assignmentTitlePattern = regexp.MustCompile(`(?i)^(assignment|exercise|problem|homework|lab|quiz|worksheet)\s*#?\s*\d+`)

	// orderedListPattern matches "1. word", "a) word", "B. word".
	orderedListPattern = regexp.MustCompile(`^(\d{1,3}|[a-zA-Z])[.)]\s+\S`)

	// romanListPattern matches "iv. word", "IX) word".
	romanListPattern = regexp.MustCompile(`(?i)^(x{0,3})(ix|iv|v?i{0,3})[.)]\s+\S`)

	// pureNumberPattern matches lines that carry only digits and punctuation.
	pureNumberPattern = regexp.MustCompile(`^[\d\s.,/:-]+$`)

	pageMarkerPattern = regexp.MustCompile(`^---\s*PAGE\s+\d+\s*---$`)
)

// lineKind is the outcome of classifying one raw OCR line.
type lineKind int

const (
	kindBlank lineKind = iota
	kindHeading
	kindListItem
	kindParagraph
	kindPageMarker
)

// classifyLine applies the rule tables to one trimmed line.
func classifyLine(line string) lineKind {
	if line == "" {
		return kindBlank
	}
	if pageMarkerPattern.MatchString(line) {
		return kindPageMarker
	}
	if isListItem(line) {
		return kindListItem
	}
	if isHeading(line) {
		return kindHeading
	}
	return kindParagraph
}

// isHeading: short line (5-60 chars) that is ALL-CAPS with 2-8 words, or ends
// with a colon, or starts with a section keyword; never a math expression.
func isHeading(line string) bool {
	length := len([]rune(line))
	if length < 5 || length > 60 {
		return false
	}
	if looksLikeMath(line) {
		return false
	}

	if strings.HasSuffix(line, ":") {
		return true
	}

	lower := strings.ToLower(line)
	for _, keyword := range SectionKeywords {
		if strings.HasPrefix(lower, keyword) {
			return true
		}
	}

	words := strings.Fields(line)
	if len(words) >= 2 && len(words) <= 8 && isAllCaps(line) {
		return true
	}

	return false
}

// isListItem: bullet glyph, or number/letter/roman-numeral marker followed by
// a word.
func isListItem(line string) bool {
	runes := []rune(line)
	if len(runes) >= 2 && strings.ContainsRune(BulletGlyphs, runes[0]) && unicode.IsSpace(runes[1]) {
		return true
	}
	if orderedListPattern.MatchString(line) {
		return true
	}
	return romanListPattern.MatchString(line)
}

// canMergeContinuation: a short following line is merged into the prior
// paragraph only when it does not start with a capital, contains no period
// and is not a math expression. The caller enforces the at-most-one rule.
func canMergeContinuation(line string) bool {
	runes := []rune(line)
	if len(runes) == 0 || len(runes) >= 30 {
		return false
	}
	if unicode.IsUpper(runes[0]) {
		return false
	}
	if strings.ContainsRune(line, '.') {
		return false
	}
	return !looksLikeMath(line)
}

func looksLikeMath(line string) bool {
	return strings.ContainsAny(line, MathChars)
}

func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, token := range NoiseTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
