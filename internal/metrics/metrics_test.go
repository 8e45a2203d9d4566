package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequestAggregates(t *testing.T) {
	r := NewRecorder()

	r.RecordRequest("ocr_only", 0.9, 100*time.Millisecond)
	r.RecordRequest("ocr_only", 0.8, 200*time.Millisecond)
	r.RecordRequest("multimodal_fallback", 0.7, 600*time.Millisecond)
	r.RecordRequest("hybrid_batch", 0.6, 300*time.Millisecond)

	s := r.Snapshot()
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(2), s.ByMethod["ocr_only"])
	assert.InDelta(t, 50.0, s.MethodShare["ocr_only"], 1e-9)
	assert.InDelta(t, 25.0, s.MethodShare["hybrid_batch"], 1e-9)
	assert.InDelta(t, 0.75, s.AvgConfidence, 1e-9)
	assert.InDelta(t, 300.0, s.AvgLatencyMillis, 1e-9)
	assert.Greater(t, s.EstimatedSavings, 0.0, "cheap-path requests avoid multimodal spend")
}

func TestSnapshotOfEmptyRecorder(t *testing.T) {
	s := NewRecorder().Snapshot()
	assert.Equal(t, int64(0), s.TotalRequests)
	assert.Empty(t, s.ByMethod)
	assert.Zero(t, s.AvgConfidence)
	assert.Zero(t, s.EstimatedSavings)
}

func TestResetZeroesEverything(t *testing.T) {
	r := NewRecorder()
	r.RecordRequest("ocr_only", 0.9, time.Second)
	r.RecordSuccess("ocr_extract")
	r.RecordFailure("multimodal_extract")

	r.Reset()

	s := r.Snapshot()
	assert.Equal(t, int64(0), s.TotalRequests)
	assert.Empty(t, s.Successes)
	assert.Empty(t, s.Failures)
	assert.Zero(t, s.AvgLatencyMillis)
}

func TestHealthTracksFailureStreaks(t *testing.T) {
	r := NewRecorder()

	h := r.Health()
	assert.True(t, h.OCRHealthy)
	assert.True(t, h.MultimodalHealthy)
	assert.Equal(t, "ocr_only", h.RecommendedMethod)

	for range unhealthyStreak {
		r.RecordFailure("ocr_extract")
	}
	h = r.Health()
	assert.False(t, h.OCRHealthy)
	assert.True(t, h.MultimodalHealthy)
	assert.Equal(t, "multimodal_fallback", h.RecommendedMethod)

	for range unhealthyStreak {
		r.RecordFailure("multimodal_extract")
	}
	h = r.Health()
	assert.Equal(t, "none", h.RecommendedMethod)

	// A single success clears the streak for its family.
	r.RecordSuccess("ocr_extract")
	h = r.Health()
	assert.True(t, h.OCRHealthy)
	assert.Equal(t, "ocr_only", h.RecommendedMethod)
}

func TestEstimateCostByMethod(t *testing.T) {
	ocr := EstimateCost(3, 2000, "ocr_only")
	assert.Equal(t, 3, ocr.OCRCalls)
	assert.Zero(t, ocr.MultimodalImages)
	assert.InDelta(t, 3*OCRCostPerCall, ocr.TotalCost, 1e-9)

	fallback := EstimateCost(3, 2000, "multimodal_fallback")
	assert.Equal(t, 3, fallback.OCRCalls, "the failed OCR pass is still paid for")
	assert.Equal(t, 3, fallback.MultimodalImages)
	assert.Equal(t, 1500, fallback.EstimatedTokens)
	assert.Greater(t, fallback.TotalCost, ocr.TotalCost)
}

func TestEstimateCostDefaults(t *testing.T) {
	b := EstimateCost(2, 0, "individual_fallback")
	assert.Equal(t, 2*nominalTokensPerPage, b.EstimatedTokens)

	negative := EstimateCost(-5, 100, "ocr_only")
	assert.Zero(t, negative.ImageCount)
	assert.Zero(t, negative.TotalCost)
}

func TestEstimateCostMonotonicInPageCount(t *testing.T) {
	for _, method := range []string{"ocr_only", "hybrid_batch", "multimodal_fallback"} {
		previous := 0.0
		for pages := 1; pages <= 5; pages++ {
			cost := EstimateCost(pages, 1500, method).TotalCost
			require.Greater(t, cost, previous, "method %s pages %d", method, pages)
			previous = cost
		}
	}
}

func TestRecorderImplementsRetryRecorder(t *testing.T) {
	// Compile-time check lives in the pipeline; this documents the success
	// and failure bookkeeping shape.
	r := NewRecorder()
	r.RecordSuccess("ocr_extract")
	r.RecordFailure("ocr_extract")

	s := r.Snapshot()
	assert.Equal(t, int64(1), s.Successes["ocr_extract"])
	assert.Equal(t, int64(1), s.Failures["ocr_extract"])
}
