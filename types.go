package scannote

import (
	"time"

	"github.com/scannote/scannote/internal/metrics"
)

// Tone selects the writing style for composed notes.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneSimplified   Tone = "simplified"
)

// Decision is the processing route chosen for a request. It is picked once
// per request and never retro-changed.
type Decision string

const (
	DecisionOCROnly            Decision = "ocr_only"
	DecisionHybridBatch        Decision = "hybrid_batch"
	DecisionMultimodalFallback Decision = "multimodal_fallback"
	DecisionIndividualFallback Decision = "individual_fallback"
)

// TruncatedSuffix marks a method whose output was accepted despite hitting
// the provider's output-length ceiling.
const TruncatedSuffix = "_truncated"

// Options configures one extraction request. Immutable once submitted.
type Options struct {
	Tone               Tone
	PreserveLayout     bool
	ExtractTables      bool
	EnhanceHandwriting bool

	// QualityThreshold is the OCR confidence below which the request
	// escalates. Zero selects the default of 0.7.
	QualityThreshold float64

	// AllowFallback permits escalation to the multimodal provider. Nil
	// means true.
	AllowFallback *bool

	// DetectComplexity enables the keyword-based complexity gate. Nil means
	// true.
	DetectComplexity *bool

	// CacheEnabled overrides the cache for this request. Nil means true.
	CacheEnabled *bool

	// PageSeparators inserts "--- PAGE n ---" markers between concatenated
	// pages of a batch.
	PageSeparators bool

	// Timeout bounds the whole request including retries and fallback.
	// Zero keeps provider defaults.
	Timeout time.Duration
}

// Metadata describes how a result was produced.
type Metadata struct {
	PageCount      int           `json:"page_count"`
	DocumentType   string        `json:"document_type"`
	HasTables      bool          `json:"has_tables"`
	HasHandwriting bool          `json:"has_handwriting"`
	ProcessingTime time.Duration `json:"processing_time"`
	Method         string        `json:"method"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	CacheHit       bool          `json:"cache_hit"`
}

// Result is the outcome of an extraction or composition request. The caller
// owns it after return; the pipeline holds no reference.
type Result struct {
	Text       string   `json:"text"`
	Title      string   `json:"title"` // never empty
	Confidence float64  `json:"confidence"`
	Metadata   Metadata `json:"metadata"`
}

// CostBreakdown itemises estimated provider spend.
type CostBreakdown = metrics.Breakdown

// Health summarises provider availability.
type Health = metrics.Health

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
