package source

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/scannote/scannote/internal/errs"
)

// DefaultMaxFileSize caps image references at 20 MiB.
const DefaultMaxFileSize = int64(20 * 1024 * 1024)

// allowedExtensions is the fixed allow-list of image formats accepted by the
// pipeline. PDF references are expanded to page images before validation.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
}

// Validator fails fast on bad input so no network call is attempted for it.
// Its errors are never retried.
type Validator struct {
	accessor    Accessor
	maxFileSize int64
}

// NewValidator creates a Validator with the given size ceiling. A ceiling of
// zero or less selects DefaultMaxFileSize.
func NewValidator(accessor Accessor, maxFileSize int64) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Validator{accessor: accessor, maxFileSize: maxFileSize}
}

// ValidateRef checks that ref names a readable, supported, size-bounded image.
func (v *Validator) ValidateRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return errs.NewValidation("image", "reference is empty")
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if !allowedExtensions[ext] {
		return errs.NewValidation("image", "unsupported format %q for %s", ext, ref)
	}

	if !v.accessor.Exists(ref) {
		return errs.NewValidation("image", "file does not exist or is not readable: %s", ref)
	}

	size, err := v.accessor.Stat(ref)
	if err != nil {
		return errs.NewValidation("image", "cannot stat %s: %v", ref, err)
	}
	if size > v.maxFileSize {
		return errs.NewValidation("image", "file %s is %d bytes, exceeds limit of %d", ref, size, v.maxFileSize)
	}
	if size == 0 {
		return errs.NewValidation("image", "file %s is empty", ref)
	}

	return nil
}

// ValidateThreshold checks a confidence threshold is within [0, 1].
func (v *Validator) ValidateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return errs.NewValidation("quality_threshold", "must be within [0, 1], got %v", threshold)
	}
	return nil
}

// ValidateTimeout checks a timeout is within a sane range.
func (v *Validator) ValidateTimeout(timeout time.Duration) error {
	if timeout == 0 {
		return nil // zero means "use the client default"
	}
	if timeout < time.Second || timeout > 10*time.Minute {
		return errs.NewValidation("timeout", "must be between 1s and 10m, got %s", timeout)
	}
	return nil
}
