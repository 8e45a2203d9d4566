// Package vision implements the cheap OCR path: a text-detection REST client
// with a system-wide in-flight cap, request pacing and retry-wrapped network
// calls.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/scannote/scannote/internal/errs"
	"github.com/scannote/scannote/internal/httpclient"
	"github.com/scannote/scannote/internal/retry"
	"github.com/scannote/scannote/internal/source"
)

const (
	// DefaultMaxInFlight caps concurrent OCR calls system-wide. Additional
	// calls queue on the gate until a slot frees or the call times out.
	DefaultMaxInFlight = 3

	// DefaultRateLimit is the maximum OCR requests per second.
	DefaultRateLimit = 10

	featureTextDetection = "TEXT_DETECTION"

	// defaultTokenConfidence substitutes for tokens the provider returned
	// without a confidence value.
	defaultTokenConfidence = 0.9
)

// HTTPClient is the subset of http.Client the OCR client needs; tests
// substitute fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	Endpoint      string
	APIKey        string
	LanguageHints []string
	MaxInFlight   int
	RateLimit     float64
	Policy        retry.Policy
}

// Client calls the text-detection provider for single images.
type Client struct {
	cfg      Config
	http     HTTPClient
	accessor source.Accessor
	logger   *logrus.Logger
	recorder retry.Recorder
	gate     chan struct{}
	limiter  *rate.Limiter
}

// DefaultPolicy is the retry policy for OCR calls: 30s per-attempt timeout.
func DefaultPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Timeout = 30 * time.Second
	return p
}

// NewClient creates an OCR client. A nil httpClient selects the default
// proxy-aware client without its own timeout; per-call timeouts come from the
// retry policy.
func NewClient(cfg Config, accessor source.Accessor, httpClient HTTPClient, logger *logrus.Logger, recorder retry.Recorder) *Client {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Policy.MaxRetries == 0 && cfg.Policy.BaseDelay == 0 {
		cfg.Policy = DefaultPolicy()
	}
	if httpClient == nil {
		httpClient = httpclient.New(0, logger)
	}

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		accessor: accessor,
		logger:   logger,
		recorder: recorder,
		gate:     make(chan struct{}, cfg.MaxInFlight),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// ExtractText runs one OCR pass over imageRef. It returns (nil, nil) when the
// provider detected no text; that is not an error.
func (c *Client) ExtractText(ctx context.Context, imageRef string) (*Result, error) {
	content, err := c.accessor.ReadBase64(imageRef)
	if err != nil {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: err}
	}

	return retry.Do(ctx, c.logger, c.recorder, "ocr_extract", c.cfg.Policy, func(ctx context.Context) (*Result, error) {
		return c.annotate(ctx, content)
	})
}

func (c *Client) annotate(ctx context.Context, content string) (*Result, error) {
	// Queue behind the system-wide in-flight cap; the per-attempt timeout
	// bounds how long a call may wait here.
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, &errs.TransientError{Op: "ocr_extract", Err: ctx.Err()}
	}
	defer func() { <-c.gate }()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: err}
	}

	reqBody := annotateRequest{
		Requests: []annotateItem{{
			Image:    imagePayload{Content: content},
			Features: []feature{{Type: featureTextDetection}},
		}},
	}
	if len(c.cfg.LanguageHints) > 0 {
		reqBody.Requests[0].ImageContext = &imageContext{LanguageHints: c.cfg.LanguageHints}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &errs.PermanentError{Op: "ocr_extract", Err: err}
	}

	url := c.cfg.Endpoint
	if c.cfg.APIKey != "" {
		url = fmt.Sprintf("%s?key=%s", c.cfg.Endpoint, c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &errs.PermanentError{Op: "ocr_extract", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: err}
	}

	if err := classifyStatus("ocr_extract", resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed annotateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: fmt.Errorf("malformed response: %w", err)}
	}
	if len(parsed.Responses) == 0 {
		return nil, &errs.TransientError{Op: "ocr_extract", Err: fmt.Errorf("malformed response: no results")}
	}

	result := parsed.Responses[0]
	if result.Error != nil {
		return nil, classifyAPIError("ocr_extract", result.Error)
	}

	return buildResult(result), nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy. 429 and 5xx
// are transient; other non-2xx codes are permanent.
func classifyStatus(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	cause := fmt.Errorf("HTTP %d: %s", status, msg)

	if status == http.StatusTooManyRequests || status >= 500 {
		return &errs.TransientError{Op: op, Err: cause}
	}
	return &errs.PermanentError{Op: op, Err: cause}
}

func classifyAPIError(op string, st *apiStatus) error {
	cause := fmt.Errorf("provider error %d: %s", st.Code, st.Message)
	switch st.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &errs.TransientError{Op: op, Err: cause}
	default:
		return &errs.PermanentError{Op: op, Err: cause}
	}
}

// buildResult converts a provider result into a Result. Returns nil when no
// text was detected.
func buildResult(r annotateResult) *Result {
	if len(r.TextAnnotations) == 0 {
		return nil
	}

	full := r.TextAnnotations[0]
	text := strings.TrimSpace(full.Description)
	if text == "" {
		return nil
	}

	tokens := r.TextAnnotations[1:]
	blocks := make([]Block, 0, len(tokens))
	var confidenceSum float64

	for _, token := range tokens {
		confidence := token.Confidence
		if confidence <= 0 {
			confidence = defaultTokenConfidence
		}
		confidenceSum += confidence
		blocks = append(blocks, Block{
			Text:       token.Description,
			Confidence: confidence,
			Box:        boundingRect(token.BoundingPoly),
		})
	}

	aggregate := defaultTokenConfidence
	if len(blocks) > 0 {
		aggregate = confidenceSum / float64(len(blocks))
	} else if full.Confidence > 0 {
		aggregate = full.Confidence
	}

	return &Result{
		Text:       text,
		Confidence: aggregate,
		Blocks:     blocks,
	}
}

// boundingRect computes the min/max rectangle over the polygon's corner
// coordinates, clamped to non-negative values.
func boundingRect(p poly) Rect {
	if len(p.Vertices) == 0 {
		return Rect{}
	}

	minX, minY := p.Vertices[0].X, p.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range p.Vertices[1:] {
		minX = min(minX, v.X)
		minY = min(minY, v.Y)
		maxX = max(maxX, v.X)
		maxY = max(maxY, v.Y)
	}

	minX = max(minX, 0)
	minY = max(minY, 0)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  max(maxX-minX, 0),
		Height: max(maxY-minY, 0),
	}
}
