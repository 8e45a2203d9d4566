// Package source handles image references: reading them, validating them
// before any network call is spent on them, and expanding PDF documents into
// per-page images.
package source

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Accessor abstracts file access so tests can substitute fakes.
type Accessor interface {
	Exists(ref string) bool
	Stat(ref string) (int64, error)
	ReadBase64(ref string) (string, error)
}

// OSAccessor reads image references from the local filesystem.
type OSAccessor struct{}

// NewOSAccessor returns an Accessor backed by the OS filesystem.
func NewOSAccessor() *OSAccessor {
	return &OSAccessor{}
}

func (a *OSAccessor) Exists(ref string) bool {
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}

func (a *OSAccessor) Stat(ref string) (int64, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", ref, err)
	}
	return info.Size(), nil
}

func (a *OSAccessor) ReadBase64(ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// MimeType maps a reference's extension to the mime type declared to the
// multimodal provider. Unknown extensions fall back to JPEG.
func MimeType(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
