// Package scannote turns document page images into clean, structured note
// text while minimising paid provider spend. A cheap OCR pass handles clear
// printed pages; low-confidence or complex pages escalate to a multimodal
// vision-language model with retries, partial-batch tolerance and caching.
package scannote

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scannote/scannote/internal/batch"
	"github.com/scannote/scannote/internal/cache"
	"github.com/scannote/scannote/internal/config"
	"github.com/scannote/scannote/internal/errs"
	"github.com/scannote/scannote/internal/metrics"
	"github.com/scannote/scannote/internal/router"
	"github.com/scannote/scannote/internal/source"
	"github.com/scannote/scannote/internal/structure"
	"github.com/scannote/scannote/internal/vision"
	"github.com/scannote/scannote/internal/vlm"
)

const (
	// multimodalConfidence is assigned to multimodal results; the provider
	// reports no per-token confidence.
	multimodalConfidence = 0.9

	// truncatedConfidence is assigned when partial output was accepted.
	truncatedConfidence = 0.75

	// pagePlaceholder marks a page whose OCR call failed inside an accepted
	// batch.
	pagePlaceholder = "[page unavailable]"

	// methodCached is the metrics bucket for requests served from cache.
	methodCached = "cached"
)

// OCRClient is the cheap extraction path. ExtractText returns (nil, nil)
// when no text was detected.
type OCRClient interface {
	ExtractText(ctx context.Context, imageRef string) (*vision.Result, error)
}

// MultimodalClient is the expensive extraction/composition path.
type MultimodalClient interface {
	ExtractOrCompose(ctx context.Context, imageRefs []string, task vlm.Task) (*vlm.Output, error)
}

// Service is the extraction pipeline facade. Construct it once with New and
// share it; it is safe for concurrent use.
type Service struct {
	cfg        *config.Config
	logger     *logrus.Logger
	accessor   source.Accessor
	validator  *source.Validator
	ocr        OCRClient
	multimodal MultimodalClient
	router     *router.Router
	structurer *structure.Structurer
	cache      *cache.Cache
	recorder   *metrics.Recorder
}

// ServiceOption customises construction; tests use these to inject fakes.
type ServiceOption func(*Service)

// WithOCRClient substitutes the OCR client.
func WithOCRClient(c OCRClient) ServiceOption {
	return func(s *Service) { s.ocr = c }
}

// WithMultimodalClient substitutes the multimodal client.
func WithMultimodalClient(c MultimodalClient) ServiceOption {
	return func(s *Service) { s.multimodal = c }
}

// WithAccessor substitutes the file accessor.
func WithAccessor(a source.Accessor) ServiceOption {
	return func(s *Service) { s.accessor = a }
}

// New builds a Service from cfg. Provider clients are created from cfg
// unless substituted via options.
func New(cfg *config.Config, logger *logrus.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		router:     router.New(),
		structurer: structure.New(logger),
		cache:      cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.Capacity),
		recorder:   metrics.NewRecorder(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.accessor == nil {
		s.accessor = source.NewOSAccessor()
	}
	s.validator = source.NewValidator(s.accessor, cfg.MaxFileSize)

	// Real provider clients require configuration; injected fakes do not.
	if s.ocr == nil || s.multimodal == nil {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	if s.ocr == nil {
		s.ocr = vision.NewClient(vision.Config{
			Endpoint:      cfg.OCR.Endpoint,
			APIKey:        cfg.OCR.APIKey,
			LanguageHints: cfg.OCR.LanguageHints,
			MaxInFlight:   cfg.OCR.MaxInFlight,
		}, s.accessor, nil, logger, s.recorder)
	}
	if s.multimodal == nil {
		client, err := vlm.NewClient(vlm.Config{
			BaseURL:   cfg.VLM.BaseURL,
			APIKey:    cfg.VLM.APIKey,
			Model:     cfg.VLM.Model,
			MaxTokens: cfg.VLM.MaxTokens,
		}, s.accessor, logger, s.recorder)
		if err != nil {
			return nil, err
		}
		s.multimodal = client
	}

	return s, nil
}

// ExtractText processes a single page image. It returns (nil, nil) when no
// text could be found on the page.
func (s *Service) ExtractText(ctx context.Context, imageRef string, opts Options) (*Result, error) {
	started := time.Now()
	log := s.requestLogger("extract_text")

	if source.IsPDF(imageRef) {
		pages, dir, err := source.ExpandPDF(imageRef, s.logger)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.RemoveAll(dir) }()
		return s.ExtractTextBatch(ctx, pages, opts)
	}

	if err := s.validate([]string{imageRef}, opts); err != nil {
		return nil, err
	}
	ctx, cancel := s.requestContext(ctx, opts)
	defer cancel()

	key, cacheable := s.cacheKey([]string{imageRef}, opts)
	if cacheable {
		if v, ok := s.cache.Get(key); ok {
			log.Debug("Serving formatted result from cache")
			return s.cachedResult(v, 1, started), nil
		}
	}

	allowFallback := boolOr(opts.AllowFallback, true)

	ocrResult, ocrErr := s.ocr.ExtractText(ctx, imageRef)

	var reason string
	switch {
	case ocrErr != nil:
		// Only transient trouble is worth paying the multimodal rate for; a
		// bad key or exhausted quota fails the same way on either path.
		if errs.IsValidation(ocrErr) || errs.IsPermanent(ocrErr) || !allowFallback {
			return nil, ocrErr
		}
		reason = fmt.Sprintf("ocr failed: %v", ocrErr)
	case ocrResult == nil:
		if !allowFallback {
			return nil, nil
		}
		reason = "no text detected by ocr"
	default:
		var sufficient bool
		sufficient, reason = s.router.IsSufficient(ocrResult.Confidence, ocrResult.Text, s.routerOptions(opts))
		if sufficient {
			st := s.structurer.FormatOCR(ocrResult.Text)
			result := s.buildResult(st, ocrResult.Confidence, 1, string(DecisionOCROnly), "", started, ocrResult.Text)
			s.finish(log, result, DecisionOCROnly, cacheable, key)
			return result, nil
		}
		if !allowFallback {
			return nil, fmt.Errorf("ocr result not usable (%s) and multimodal fallback is disabled", reason)
		}
	}

	log.WithField("reason", reason).Warn("Escalating to multimodal fallback")

	out, err := s.multimodal.ExtractOrCompose(ctx, []string{imageRef}, s.extractTask(opts))
	if err != nil {
		if errs.IsEmptyResponse(err) && ocrResult == nil {
			// Neither provider found anything; the page is genuinely blank.
			return nil, nil
		}
		return nil, fmt.Errorf("multimodal fallback failed: %w", err)
	}

	decision, method := fallbackMethod(out)
	st := s.structurer.FormatOCR(out.Text)
	result := s.buildResult(st, outputConfidence(out), 1, method, reason, started, out.Text)
	s.finish(log, result, decision, cacheable, key)
	return result, nil
}

// ExtractTextBatch processes a multi-page document: pages fan out across a
// bounded worker pool, results merge in page order, and the whole document
// escalates to the multimodal path when too few pages produce usable text.
func (s *Service) ExtractTextBatch(ctx context.Context, imageRefs []string, opts Options) (*Result, error) {
	started := time.Now()
	log := s.requestLogger("extract_text_batch")

	refs, cleanup, err := s.expandPDFs(imageRefs)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := s.validate(refs, opts); err != nil {
		return nil, err
	}
	ctx, cancel := s.requestContext(ctx, opts)
	defer cancel()

	allowFallback := boolOr(opts.AllowFallback, true)
	routerOpts := s.routerOptions(opts)

	type page struct {
		text       string
		confidence float64
		usable     bool
	}

	slots := batch.Run(ctx, s.logger, s.cfg.Batch.Concurrency, refs, func(ctx context.Context, index int, ref string) (*page, error) {
		result, err := s.ocr.ExtractText(ctx, ref)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return &page{}, nil
		}
		usable, _ := s.router.IsSufficient(result.Confidence, result.Text, routerOpts)
		return &page{text: result.Text, confidence: result.Confidence, usable: usable}, nil
	})

	usable := 0
	for _, slot := range slots {
		if slot != nil && slot.usable {
			usable++
		}
	}
	ratio := float64(usable) / float64(len(refs))

	if ratio >= s.successRatio() {
		var parts []string
		var confidenceSum float64
		for i, slot := range slots {
			if opts.PageSeparators {
				parts = append(parts, batch.PageMarker(i+1))
			}
			if slot != nil && slot.usable {
				parts = append(parts, slot.text)
				confidenceSum += slot.confidence
			} else {
				parts = append(parts, pagePlaceholder)
			}
		}
		combined := strings.Join(parts, "\n")

		var fallbackReason string
		if usable < len(refs) {
			fallbackReason = fmt.Sprintf("%d of %d pages unavailable", len(refs)-usable, len(refs))
		}

		st := s.structurer.FormatOCR(combined)
		result := s.buildResult(st, confidenceSum/float64(usable), len(refs), string(DecisionHybridBatch), fallbackReason, started, combined)
		s.finish(log, result, DecisionHybridBatch, false, "")
		return result, nil
	}

	reason := fmt.Sprintf("only %d of %d pages produced usable text (ratio %.2f below %.2f)", usable, len(refs), ratio, s.successRatio())
	if !allowFallback {
		return nil, fmt.Errorf("%s and multimodal fallback is disabled", reason)
	}

	log.WithField("reason", reason).Warn("Escalating whole document to multimodal fallback")

	out, err := s.multimodal.ExtractOrCompose(ctx, refs, s.extractTask(opts))
	if err != nil {
		return nil, fmt.Errorf("multimodal fallback failed: %w", err)
	}

	decision, method := fallbackMethod(out)
	st := s.structurer.FormatOCR(out.Text)
	result := s.buildResult(st, outputConfidence(out), len(refs), method, reason, started, out.Text)
	s.finish(log, result, decision, false, "")
	return result, nil
}

// ComposeStructuredNote asks the multimodal provider to compose a structured,
// tone-aware note from the page images in a single call.
func (s *Service) ComposeStructuredNote(ctx context.Context, imageRefs []string, tone Tone, opts Options) (*Result, error) {
	started := time.Now()
	log := s.requestLogger("compose_structured_note")
	opts.Tone = tone

	refs, cleanup, err := s.expandPDFs(imageRefs)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := s.validate(refs, opts); err != nil {
		return nil, err
	}
	ctx, cancel := s.requestContext(ctx, opts)
	defer cancel()

	key, cacheable := s.cacheKey(refs, opts)
	if cacheable {
		if v, ok := s.cache.Get(key); ok {
			log.Debug("Serving composed note from cache")
			return s.cachedResult(v, len(refs), started), nil
		}
	}

	task := vlm.Task{
		Kind:          vlm.TaskCompose,
		Tone:          string(tone),
		ExtractTables: opts.ExtractTables,
	}
	out, err := s.multimodal.ExtractOrCompose(ctx, refs, task)
	if err != nil {
		return nil, fmt.Errorf("note composition failed: %w", err)
	}

	decision, method := fallbackMethod(out)
	st := s.structurer.ParseComposed(out.Text)
	result := s.buildResult(st, outputConfidence(out), len(refs), method, "", started, out.Text)
	s.finish(log, result, decision, cacheable, key)
	return result, nil
}

// EstimateCost reports the expected provider spend for a document. Pure; no
// side effects.
func (s *Service) EstimateCost(imageCount, avgTextLen int, method Decision) CostBreakdown {
	return EstimateCost(imageCount, avgTextLen, method)
}

// EstimateCost prices a document up front, without a configured Service.
func EstimateCost(imageCount, avgTextLen int, method Decision) CostBreakdown {
	return metrics.EstimateCost(imageCount, avgTextLen, string(method))
}

// Health reports provider availability and the method a caller should prefer.
func (s *Service) Health() Health {
	return s.recorder.Health()
}

// Metrics returns a snapshot of pipeline metrics.
func (s *Service) Metrics() metrics.Snapshot {
	return s.recorder.Snapshot()
}

// ResetMetrics zeroes all counters. Operator use only.
func (s *Service) ResetMetrics() {
	s.recorder.Reset()
}

// CacheStats reports response-cache behaviour.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *Service) requestLogger(operation string) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"operation":  operation,
	})
}

func (s *Service) requestContext(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return ctx, func() {}
}

func (s *Service) validate(refs []string, opts Options) error {
	if len(refs) == 0 {
		return errs.NewValidation("images", "no image references provided")
	}
	for _, ref := range refs {
		if err := s.validator.ValidateRef(ref); err != nil {
			return err
		}
	}
	if err := s.validator.ValidateThreshold(opts.QualityThreshold); err != nil {
		return err
	}
	return s.validator.ValidateTimeout(opts.Timeout)
}

func (s *Service) routerOptions(opts Options) router.Options {
	return router.Options{
		QualityThreshold:   opts.QualityThreshold,
		DetectComplexity:   boolOr(opts.DetectComplexity, true),
		EnhanceHandwriting: opts.EnhanceHandwriting,
	}
}

func (s *Service) extractTask(opts Options) vlm.Task {
	return vlm.Task{
		Kind:           vlm.TaskExtract,
		Tone:           string(opts.Tone),
		PreserveLayout: opts.PreserveLayout,
		ExtractTables:  opts.ExtractTables,
	}
}

func (s *Service) successRatio() float64 {
	if s.cfg.Batch.SuccessRatio > 0 {
		return s.cfg.Batch.SuccessRatio
	}
	return batch.DefaultSuccessRatio
}

// cacheKey fingerprints every page's content plus tone. An unreadable file
// makes the request not cacheable; the pipeline proper will surface the real
// error.
func (s *Service) cacheKey(refs []string, opts Options) (string, bool) {
	if !boolOr(opts.CacheEnabled, true) {
		return "", false
	}
	contents := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		content, err := s.accessor.ReadBase64(ref)
		if err != nil {
			return "", false
		}
		contents = append(contents, []byte(content))
	}
	return cache.Key(contents, string(opts.Tone)), true
}

// cachedResult materialises a cache hit, carrying the stored outcome, and
// records the request under the cached bucket.
func (s *Service) cachedResult(v cache.Value, pages int, started time.Time) *Result {
	result := &Result{
		Text:       v.Text,
		Title:      v.Title,
		Confidence: v.Confidence,
		Metadata: Metadata{
			PageCount:      pages,
			DocumentType:   structure.DetectDocumentType(v.Text),
			ProcessingTime: time.Since(started),
			Method:         v.Method,
			CacheHit:       true,
		},
	}
	s.recorder.RecordRequest(methodCached, v.Confidence, result.Metadata.ProcessingTime)
	return result
}

func (s *Service) buildResult(st structure.Structured, confidence float64, pages int, method, fallbackReason string, started time.Time, rawText string) *Result {
	lower := strings.ToLower(rawText)
	return &Result{
		Text:       st.Body,
		Title:      st.Title,
		Confidence: clamp01(confidence),
		Metadata: Metadata{
			PageCount:      pages,
			DocumentType:   st.DocType,
			HasTables:      containsAny(lower, "table", "|---"),
			HasHandwriting: containsAnyOf(lower, router.HandwritingKeywords),
			ProcessingTime: time.Since(started),
			Method:         method,
			FallbackReason: fallbackReason,
		},
	}
}

// finish records the terminal outcome once and stores the formatted result.
func (s *Service) finish(log *logrus.Entry, result *Result, decision Decision, cacheable bool, key string) {
	if cacheable {
		s.cache.Set(key, cache.Value{
			Text:       result.Text,
			Title:      result.Title,
			Confidence: result.Confidence,
			Method:     result.Metadata.Method,
		})
	}
	s.recorder.RecordRequest(string(decision), result.Confidence, result.Metadata.ProcessingTime)
	log.WithFields(logrus.Fields{
		"method":     result.Metadata.Method,
		"confidence": result.Confidence,
		"pages":      result.Metadata.PageCount,
	}).Info("Request complete")
}

// expandPDFs replaces PDF references with their extracted page images,
// keeping everything else in place.
func (s *Service) expandPDFs(refs []string) ([]string, func(), error) {
	var out []string
	var dirs []string
	cleanup := func() {
		for _, dir := range dirs {
			_ = os.RemoveAll(dir)
		}
	}

	for _, ref := range refs {
		if !source.IsPDF(ref) {
			out = append(out, ref)
			continue
		}
		pages, dir, err := source.ExpandPDF(ref, s.logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		dirs = append(dirs, dir)
		out = append(out, pages...)
	}

	return out, cleanup, nil
}

// fallbackMethod maps a multimodal output onto the recorded decision and the
// user-visible method string.
func fallbackMethod(out *vlm.Output) (Decision, string) {
	decision := DecisionMultimodalFallback
	if out.Individual {
		decision = DecisionIndividualFallback
	}
	method := string(decision)
	if out.Truncated {
		method += TruncatedSuffix
	}
	return decision, method
}

func outputConfidence(out *vlm.Output) float64 {
	if out.Truncated {
		return truncatedConfidence
	}
	return multimodalConfidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func containsAnyOf(text string, needles []string) bool {
	return containsAny(text, needles...)
}
