package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	validation := NewValidation("image", "missing %s", "file")
	assert.True(t, IsValidation(fmt.Errorf("request rejected: %w", validation)))
	assert.Contains(t, validation.Error(), "missing file")

	permanent := &PermanentError{Op: "ocr_extract", Err: errors.New("quota exhausted")}
	assert.True(t, IsPermanent(fmt.Errorf("pipeline: %w", permanent)))
	assert.False(t, IsPermanent(errors.New("plain failure")))

	truncation := &TruncationError{Op: "multimodal_compose", Partial: "partial text"}
	assert.True(t, IsTruncation(fmt.Errorf("wrapped: %w", truncation)))

	empty := &EmptyResponseError{Op: "multimodal_extract"}
	assert.True(t, IsEmptyResponse(fmt.Errorf("wrapped: %w", empty)))
}

func TestExhaustedErrorUnwrapsLastCause(t *testing.T) {
	cause := &TransientError{Op: "ocr_extract", Err: errors.New("connection reset")}
	exhausted := &ExhaustedError{Op: "ocr_extract", Attempts: 4, Last: cause}

	assert.Contains(t, exhausted.Error(), "after 4 attempts")

	var transient *TransientError
	assert.ErrorAs(t, exhausted, &transient)
}
