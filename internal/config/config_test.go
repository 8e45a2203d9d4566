package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, DefaultVLMModel, cfg.VLM.Model)
	assert.Equal(t, DefaultMaxTokens, cfg.VLM.MaxTokens)
	assert.Equal(t, DefaultInFlight, cfg.OCR.MaxInFlight)
	assert.Equal(t, DefaultConcurrency, cfg.Batch.Concurrency)
	assert.InDelta(t, DefaultSuccessRatio, cfg.Batch.SuccessRatio, 1e-9)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxFileSize)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv(EnvOCREndpoint, "https://ocr.example.com/v1/annotate")
	t.Setenv(EnvOCRLanguages, "en, de ,fr")
	t.Setenv(EnvVLMModel, "custom-vision")
	t.Setenv(EnvVLMMaxTokens, "2048")
	t.Setenv(EnvSuccessRatio, "0.85")

	cfg := Load()

	assert.Equal(t, "https://ocr.example.com/v1/annotate", cfg.OCR.Endpoint)
	assert.Equal(t, []string{"en", "de", "fr"}, cfg.OCR.LanguageHints)
	assert.Equal(t, "custom-vision", cfg.VLM.Model)
	assert.Equal(t, 2048, cfg.VLM.MaxTokens)
	assert.InDelta(t, 0.85, cfg.Batch.SuccessRatio, 1e-9)
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv(EnvVLMMaxTokens, "not-a-number")
	cfg := Load()
	assert.Equal(t, DefaultMaxTokens, cfg.VLM.MaxTokens)
}

func TestLoadFileOverlaysEnv(t *testing.T) {
	t.Setenv(EnvOCREndpoint, "https://from-env.example.com")
	t.Setenv(EnvVLMAPIKey, "env-key")

	path := filepath.Join(t.TempDir(), "scannote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ocr:
  endpoint: https://from-file.example.com
vlm:
  model: file-model
batch:
  success_ratio: 0.9
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-file.example.com", cfg.OCR.Endpoint, "file wins where set")
	assert.Equal(t, "file-model", cfg.VLM.Model)
	assert.Equal(t, "env-key", cfg.VLM.APIKey, "env survives where the file is silent")
	assert.InDelta(t, 0.9, cfg.Batch.SuccessRatio, 1e-9)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		OCR:   OCRConfig{Endpoint: "https://ocr.example.com"},
		VLM:   VLMConfig{APIKey: "key"},
		Batch: BatchConfig{SuccessRatio: 0.7},
	}
	assert.NoError(t, valid.Validate())

	missingEndpoint := *valid
	missingEndpoint.OCR.Endpoint = ""
	assert.ErrorContains(t, missingEndpoint.Validate(), EnvOCREndpoint)

	missingKey := *valid
	missingKey.VLM.APIKey = ""
	assert.ErrorContains(t, missingKey.Validate(), EnvVLMAPIKey)

	badRatio := *valid
	badRatio.Batch.SuccessRatio = 1.5
	assert.ErrorContains(t, badRatio.Validate(), "success ratio")
}
