// Package vlm implements the expensive multimodal path: a vision-language
// provider client carrying one or many images per request, with a fallback
// ladder for empty and truncated responses.
package vlm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/scannote/scannote/internal/errs"
	"github.com/scannote/scannote/internal/retry"
	"github.com/scannote/scannote/internal/source"
)

const (
	// DefaultMaxTokens bounds generated output length.
	DefaultMaxTokens = 8192

	// Generation parameters are fixed per task type: near-deterministic for
	// extraction, moderate for composition.
	extractTemperature = 0.1
	composeTemperature = 0.4

	// finishLength is the provider's finish reason for output truncated at
	// the token ceiling.
	finishLength = "length"
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	ComposeTimeout time.Duration
	Policy         retry.Policy
}

// Output is the outcome of a multimodal request after the fallback ladder.
type Output struct {
	Text       string
	Truncated  bool // partial content accepted after hitting the token ceiling
	Individual bool // produced by the per-image fallback
}

// Client calls the vision-language provider.
type Client struct {
	cfg      Config
	client   *openai.Client
	accessor source.Accessor
	logger   *logrus.Logger
	recorder retry.Recorder
}

// DefaultPolicy is the retry policy for multimodal calls. Extraction relies
// on the provider client's own timeout; composition gets 45s per attempt.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    2,
		BaseDelay:     2 * time.Second,
		MaxDelay:      15 * time.Second,
		BackoffFactor: 2.0,
		NonRetryable:  retry.DefaultNonRetryable,
	}
}

// NewClient creates a multimodal client.
func NewClient(cfg Config, accessor source.Accessor, logger *logrus.Logger, recorder retry.Recorder) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("multimodal API key is not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("multimodal model is not configured")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ComposeTimeout <= 0 {
		cfg.ComposeTimeout = 45 * time.Second
	}
	if cfg.Policy.BackoffFactor == 0 {
		cfg.Policy = DefaultPolicy()
	}

	// Retries are handled here, not by the SDK; stacking both would
	// multiply the attempt count.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{
		cfg:      cfg,
		client:   &client,
		accessor: accessor,
		logger:   logger,
		recorder: recorder,
	}, nil
}

// ExtractOrCompose sends all images in a single request with the task prompt
// and walks the fallback ladder on empty or truncated responses:
// empty -> one reduced-scope retry -> per-image individual processing ->
// EmptyResponseError.
func (c *Client) ExtractOrCompose(ctx context.Context, imageRefs []string, task Task) (*Output, error) {
	op := "multimodal_" + string(task.Kind)

	text, finish, err := c.generate(ctx, op, imageRefs, BuildPrompt(task), c.cfg.MaxTokens, c.temperatureFor(task), c.timeoutFor(task))
	if err != nil {
		return nil, err
	}

	if out, ok := c.resolve(text, finish, false); ok {
		return out, nil
	}

	// Empty response: one reduced-scope retry with a shorter prompt and a
	// lower output ceiling.
	c.logger.WithField("operation", op).Warn("Empty multimodal response, retrying with reduced scope")
	text, finish, err = c.generate(ctx, op, imageRefs, BuildReducedPrompt(task), c.cfg.MaxTokens/2, c.temperatureFor(task), c.timeoutFor(task))
	if err == nil {
		if out, ok := c.resolve(text, finish, false); ok {
			return out, nil
		}
	}

	// Still nothing: fall back to per-image individual processing before
	// surfacing a final error.
	if len(imageRefs) > 1 {
		if out, fallbackErr := c.extractIndividually(ctx, op, imageRefs, task); fallbackErr == nil {
			return out, nil
		}
	}

	return nil, &errs.EmptyResponseError{Op: op}
}

// extractIndividually processes pages one at a time and concatenates the
// non-empty results in page order.
func (c *Client) extractIndividually(ctx context.Context, op string, imageRefs []string, task Task) (*Output, error) {
	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"pages":     len(imageRefs),
	}).Warn("Falling back to per-image multimodal processing")

	var parts []string
	var truncated bool

	for i, ref := range imageRefs {
		text, finish, err := c.generate(ctx, op, []string{ref}, BuildReducedPrompt(task), c.cfg.MaxTokens/2, c.temperatureFor(task), c.timeoutFor(task))
		if err != nil {
			c.logger.WithError(err).WithField("page", i+1).Warn("Individual page processing failed")
			continue
		}
		if out, ok := c.resolve(text, finish, true); ok {
			parts = append(parts, out.Text)
			truncated = truncated || out.Truncated
		}
	}

	if len(parts) == 0 {
		return nil, &errs.EmptyResponseError{Op: op}
	}

	return &Output{
		Text:       strings.Join(parts, "\n\n"),
		Truncated:  truncated,
		Individual: true,
	}, nil
}

// resolve applies the response state machine: non-empty success is accepted,
// truncated-with-content is accepted and flagged, everything else reports not
// ok so the caller can continue down the ladder.
func (c *Client) resolve(text, finish string, individual bool) (*Output, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	return &Output{
		Text:       trimmed,
		Truncated:  finish == finishLength,
		Individual: individual,
	}, true
}

// generate performs one retry-wrapped provider call and returns the raw text
// plus the finish reason.
func (c *Client) generate(ctx context.Context, op string, imageRefs []string, prompt string, maxTokens int, temperature float64, timeout time.Duration) (string, string, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(imageRefs)+1)
	parts = append(parts, openai.TextContentPart(prompt))

	for _, ref := range imageRefs {
		content, err := c.accessor.ReadBase64(ref)
		if err != nil {
			return "", "", &errs.TransientError{Op: op, Err: err}
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", source.MimeType(ref), content)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURI,
		}))
	}

	policy := c.cfg.Policy
	policy.Timeout = timeout

	type completion struct {
		text   string
		finish string
	}

	result, err := retry.Do(ctx, c.logger, c.recorder, op, policy, func(ctx context.Context) (completion, error) {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       c.cfg.Model,
			Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
			MaxTokens:   openai.Int(int64(maxTokens)),
			Temperature: openai.Float(temperature),
		})
		if err != nil {
			return completion{}, &errs.TransientError{Op: op, Err: err}
		}
		if len(resp.Choices) == 0 {
			return completion{}, nil // empty response, handled by the ladder
		}
		choice := resp.Choices[0]
		return completion{text: choice.Message.Content, finish: choice.FinishReason}, nil
	})
	if err != nil {
		return "", "", err
	}

	return result.text, result.finish, nil
}

func (c *Client) temperatureFor(task Task) float64 {
	if task.Kind == TaskCompose {
		return composeTemperature
	}
	return extractTemperature
}

// timeoutFor: extraction relies on the provider client default; composition
// is given a longer explicit race.
func (c *Client) timeoutFor(task Task) time.Duration {
	if task.Kind == TaskCompose {
		return c.cfg.ComposeTimeout
	}
	return 0
}
