// Package metrics tracks per-method usage counters, running averages and a
// cost model for the extraction pipeline. All state is owned by a Recorder
// instance and guarded by its mutex; counters only move forward and are reset
// solely by an explicit operator call.
package metrics

import (
	"strings"
	"sync"
	"time"
)

// Operation families used for health tracking.
const (
	familyOCR        = "ocr"
	familyMultimodal = "multimodal"

	// unhealthyStreak is the consecutive-failure count at which a provider
	// is reported unhealthy.
	unhealthyStreak = 3
)

type runningAvg struct {
	count int64
	mean  float64
}

func (a *runningAvg) add(v float64) {
	a.count++
	a.mean += (v - a.mean) / float64(a.count)
}

// Recorder accumulates pipeline metrics. It satisfies retry.Recorder so retry
// wrappers report exactly one terminal outcome per operation.
type Recorder struct {
	mu            sync.Mutex
	requests      int64
	byMethod      map[string]int64
	successes     map[string]int64
	failures      map[string]int64
	failStreaks   map[string]int64
	avgConfidence runningAvg
	avgLatency    runningAvg
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		byMethod:    make(map[string]int64),
		successes:   make(map[string]int64),
		failures:    make(map[string]int64),
		failStreaks: make(map[string]int64),
	}
}

// RecordSuccess notes one terminal success for op.
func (r *Recorder) RecordSuccess(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes[op]++
	r.failStreaks[familyOf(op)] = 0
}

// RecordFailure notes one terminal failure for op.
func (r *Recorder) RecordFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op]++
	r.failStreaks[familyOf(op)]++
}

// RecordRequest notes a completed top-level request: the routing decision it
// settled on, the result confidence and the end-to-end latency.
func (r *Recorder) RecordRequest(method string, confidence float64, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	r.byMethod[method]++
	r.avgConfidence.add(confidence)
	r.avgLatency.add(float64(latency.Milliseconds()))
}

// Reset zeroes all counters. Operator use only.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = 0
	r.byMethod = make(map[string]int64)
	r.successes = make(map[string]int64)
	r.failures = make(map[string]int64)
	r.failStreaks = make(map[string]int64)
	r.avgConfidence = runningAvg{}
	r.avgLatency = runningAvg{}
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	TotalRequests    int64              `json:"total_requests"`
	ByMethod         map[string]int64   `json:"by_method"`
	MethodShare      map[string]float64 `json:"method_share"`
	Successes        map[string]int64   `json:"successes"`
	Failures         map[string]int64   `json:"failures"`
	AvgConfidence    float64            `json:"avg_confidence"`
	AvgLatencyMillis float64            `json:"avg_latency_ms"`
	EstimatedSavings float64            `json:"estimated_savings_usd"`
}

// Snapshot returns a copy of the current metrics, including the aggregate
// cost-savings estimate derived from the OCR-vs-multimodal ratio.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		TotalRequests:    r.requests,
		ByMethod:         make(map[string]int64, len(r.byMethod)),
		MethodShare:      make(map[string]float64, len(r.byMethod)),
		Successes:        make(map[string]int64, len(r.successes)),
		Failures:         make(map[string]int64, len(r.failures)),
		AvgConfidence:    r.avgConfidence.mean,
		AvgLatencyMillis: r.avgLatency.mean,
	}
	for k, v := range r.byMethod {
		s.ByMethod[k] = v
		if r.requests > 0 {
			s.MethodShare[k] = float64(v) / float64(r.requests) * 100
		}
	}
	for k, v := range r.successes {
		s.Successes[k] = v
	}
	for k, v := range r.failures {
		s.Failures[k] = v
	}
	s.EstimatedSavings = estimateSavings(s.ByMethod)
	return s
}

// Health summarises provider availability from recent failure streaks.
type Health struct {
	OCRHealthy        bool   `json:"ocr_healthy"`
	MultimodalHealthy bool   `json:"multimodal_healthy"`
	RecommendedMethod string `json:"recommended_method"`
}

// Health reports whether each provider looks usable and which method a caller
// should prefer right now.
func (r *Recorder) Health() Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Health{
		OCRHealthy:        r.failStreaks[familyOCR] < unhealthyStreak,
		MultimodalHealthy: r.failStreaks[familyMultimodal] < unhealthyStreak,
	}

	switch {
	case h.OCRHealthy:
		h.RecommendedMethod = "ocr_only"
	case h.MultimodalHealthy:
		h.RecommendedMethod = "multimodal_fallback"
	default:
		h.RecommendedMethod = "none"
	}
	return h
}

func familyOf(op string) string {
	if strings.HasPrefix(op, "multimodal") {
		return familyMultimodal
	}
	return familyOCR
}
