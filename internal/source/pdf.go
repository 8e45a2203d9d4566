package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// IsPDF reports whether ref names a PDF document.
func IsPDF(ref string) bool {
	return strings.EqualFold(filepath.Ext(ref), ".pdf")
}

// ExpandPDF extracts the page images embedded in a scanned PDF into a
// temporary directory and returns their paths in page order. The caller owns
// the returned directory and should remove it when done with the images.
func ExpandPDF(ref string, logger *logrus.Logger) ([]string, string, error) {
	if _, err := os.Stat(ref); err != nil {
		return nil, "", fmt.Errorf("failed to stat PDF %s: %w", ref, err)
	}

	outDir, err := os.MkdirTemp("", "scannote_pages_*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create page directory: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(ref, outDir, nil, conf); err != nil {
		_ = os.RemoveAll(outDir)
		return nil, "", fmt.Errorf("failed to extract page images from %s: %w", ref, err)
	}

	pages, err := listPageImages(outDir)
	if err != nil {
		_ = os.RemoveAll(outDir)
		return nil, "", err
	}
	if len(pages) == 0 {
		_ = os.RemoveAll(outDir)
		return nil, "", fmt.Errorf("no page images found in %s", ref)
	}

	logger.WithFields(logrus.Fields{
		"pdf":   ref,
		"pages": len(pages),
	}).Debug("Expanded PDF into page images")

	return pages, outDir, nil
}

// listPageImages returns the extracted image files sorted by name. pdfcpu
// names them <file>_<page>_<obj>.<ext>, so a lexical sort preserves page order.
func listPageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list page images: %w", err)
	}

	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if allowedExtensions[ext] {
			pages = append(pages, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(pages)
	return pages, nil
}
