// Package router decides whether an OCR result is usable directly or must
// escalate to the multimodal path. It is a cheap heuristic gate built from
// named rule tables, not a classifier.
package router

import (
	"fmt"
	"strings"
)

// DefaultQualityThreshold is the confidence below which OCR output escalates.
const DefaultQualityThreshold = 0.7

// DefaultMinTextLength is the minimum extracted-text length considered
// meaningful.
const DefaultMinTextLength = 20

// HandwritingKeywords flag content that plain OCR handles poorly unless
// handwriting enhancement is on.
var HandwritingKeywords = []string{
	"handwriting",
	"handwritten",
	"cursive",
	"illegible",
}

// LayoutKeywords flag complex layouts that lose structure under plain OCR.
var LayoutKeywords = []string{
	"diagram",
	"chart",
	"formula",
	"table",
	"graph",
	"figure",
}

// Options are the per-request knobs the router consults.
type Options struct {
	QualityThreshold   float64
	MinTextLength      int
	DetectComplexity   bool
	EnhanceHandwriting bool
}

// Router applies the escalation rules.
type Router struct{}

// New creates a Router.
func New() *Router {
	return &Router{}
}

// IsSufficient reports whether the OCR output can be used directly. When it
// cannot, the returned reason names the rule that fired.
func (r *Router) IsSufficient(confidence float64, text string, opts Options) (bool, string) {
	threshold := opts.QualityThreshold
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	minLength := opts.MinTextLength
	if minLength <= 0 {
		minLength = DefaultMinTextLength
	}

	if confidence < threshold {
		return false, fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, threshold)
	}

	if len(strings.TrimSpace(text)) < minLength {
		return false, fmt.Sprintf("extracted text shorter than %d characters", minLength)
	}

	if opts.DetectComplexity {
		lower := strings.ToLower(text)

		if !opts.EnhanceHandwriting {
			if keyword := firstMatch(lower, HandwritingKeywords); keyword != "" {
				return false, fmt.Sprintf("handwriting indicator %q without handwriting enhancement", keyword)
			}
		}

		if keyword := firstMatch(lower, LayoutKeywords); keyword != "" {
			return false, fmt.Sprintf("complex layout indicator %q", keyword)
		}
	}

	return true, ""
}

func firstMatch(text string, keywords []string) string {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return keyword
		}
	}
	return ""
}
