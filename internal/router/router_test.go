package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const cleanText = "Chapter 3: Photosynthesis. Plants convert light energy into chemical energy stored in glucose."

func defaultOpts() Options {
	return Options{DetectComplexity: true}
}

func TestSufficientResultPassesThrough(t *testing.T) {
	r := New()

	sufficient, reason := r.IsSufficient(0.95, cleanText, defaultOpts())
	assert.True(t, sufficient)
	assert.Empty(t, reason)
}

func TestLowConfidenceEscalates(t *testing.T) {
	r := New()

	sufficient, reason := r.IsSufficient(0.55, cleanText, defaultOpts())
	assert.False(t, sufficient)
	assert.Contains(t, reason, "confidence")
	assert.Contains(t, reason, "0.70")
}

func TestCustomThresholdRespected(t *testing.T) {
	r := New()
	opts := defaultOpts()
	opts.QualityThreshold = 0.9

	sufficient, _ := r.IsSufficient(0.85, cleanText, opts)
	assert.False(t, sufficient)

	opts.QualityThreshold = 0.5
	sufficient, _ = r.IsSufficient(0.55, cleanText, opts)
	assert.True(t, sufficient)
}

func TestShortTextEscalates(t *testing.T) {
	r := New()

	sufficient, reason := r.IsSufficient(0.99, "Hi", defaultOpts())
	assert.False(t, sufficient)
	assert.Contains(t, reason, "shorter")

	// Whitespace does not count toward the minimum.
	sufficient, _ = r.IsSufficient(0.99, "  a  \n\n  b  "+strings.Repeat(" ", 40), defaultOpts())
	assert.False(t, sufficient)
}

func TestHandwritingKeywordEscalatesUnlessEnhancementEnabled(t *testing.T) {
	r := New()
	text := "Notes include a HANDWRITTEN margin comment about the assignment due date."

	sufficient, reason := r.IsSufficient(0.9, text, defaultOpts())
	assert.False(t, sufficient)
	assert.Contains(t, reason, "handwritten")

	opts := defaultOpts()
	opts.EnhanceHandwriting = true
	sufficient, _ = r.IsSufficient(0.9, text, opts)
	assert.True(t, sufficient)
}

func TestLayoutKeywordsEscalate(t *testing.T) {
	r := New()

	for _, keyword := range LayoutKeywords {
		text := "See the " + keyword + " on page two for the complete derivation of the result."
		sufficient, reason := r.IsSufficient(0.9, text, defaultOpts())
		assert.False(t, sufficient, "keyword %q should escalate", keyword)
		assert.Contains(t, reason, keyword)
	}
}

func TestComplexityDetectionCanBeDisabled(t *testing.T) {
	r := New()
	text := "The diagram shows a handwritten formula in a table with a chart beside it."

	sufficient, _ := r.IsSufficient(0.9, text, Options{DetectComplexity: false})
	assert.True(t, sufficient)
}

func TestConfidenceCheckedBeforeContent(t *testing.T) {
	r := New()

	// Low confidence wins even when the text also has layout keywords.
	_, reason := r.IsSufficient(0.1, "a diagram of a chart", defaultOpts())
	assert.Contains(t, reason, "confidence")
}
