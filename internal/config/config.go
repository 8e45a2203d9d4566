// Package config loads pipeline configuration from environment variables,
// with an optional YAML file for settings that are awkward as env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvOCREndpoint   = "SCANNOTE_OCR_ENDPOINT"
	EnvOCRAPIKey     = "SCANNOTE_OCR_API_KEY"
	EnvOCRLanguages  = "SCANNOTE_OCR_LANGUAGES"
	EnvOCRInFlight   = "SCANNOTE_OCR_MAX_IN_FLIGHT"
	EnvVLMBaseURL    = "SCANNOTE_VLM_API_URL"
	EnvVLMModel      = "SCANNOTE_VLM_MODEL"
	EnvVLMAPIKey     = "SCANNOTE_VLM_API_KEY"
	EnvVLMMaxTokens  = "SCANNOTE_VLM_MAX_TOKENS"
	EnvCacheTTL      = "SCANNOTE_CACHE_TTL_SECONDS"
	EnvCacheCapacity = "SCANNOTE_CACHE_CAPACITY"
	EnvConcurrency   = "SCANNOTE_BATCH_CONCURRENCY"
	EnvSuccessRatio  = "SCANNOTE_BATCH_SUCCESS_RATIO"
	EnvMaxFileSize   = "SCANNOTE_MAX_FILE_SIZE"
)

// Default values. The 0.7 success ratio and batch size of 3 are carried over
// as configurable defaults rather than re-derived.
const (
	DefaultVLMModel     = "gpt-4o-mini"
	DefaultMaxTokens    = 8192
	DefaultInFlight     = 3
	DefaultConcurrency  = 3
	DefaultSuccessRatio = 0.7
)

// OCRConfig configures the text-detection provider.
type OCRConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	APIKey        string   `yaml:"api_key"`
	LanguageHints []string `yaml:"language_hints"`
	MaxInFlight   int      `yaml:"max_in_flight"`
}

// VLMConfig configures the vision-language provider.
type VLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	Capacity   int `yaml:"capacity"`
}

// BatchConfig configures multi-page fan-out.
type BatchConfig struct {
	Concurrency  int     `yaml:"concurrency"`
	SuccessRatio float64 `yaml:"success_ratio"`
}

// Config is the root configuration.
type Config struct {
	OCR         OCRConfig   `yaml:"ocr"`
	VLM         VLMConfig   `yaml:"vlm"`
	Cache       CacheConfig `yaml:"cache"`
	Batch       BatchConfig `yaml:"batch"`
	MaxFileSize int64       `yaml:"max_file_size"`
}

// Load builds a Config from environment variables and defaults.
func Load() *Config {
	return &Config{
		OCR: OCRConfig{
			Endpoint:      os.Getenv(EnvOCREndpoint),
			APIKey:        os.Getenv(EnvOCRAPIKey),
			LanguageHints: splitList(os.Getenv(EnvOCRLanguages)),
			MaxInFlight:   getEnvInt(EnvOCRInFlight, DefaultInFlight),
		},
		VLM: VLMConfig{
			BaseURL:   os.Getenv(EnvVLMBaseURL),
			Model:     getEnvString(EnvVLMModel, DefaultVLMModel),
			APIKey:    os.Getenv(EnvVLMAPIKey),
			MaxTokens: getEnvInt(EnvVLMMaxTokens, DefaultMaxTokens),
		},
		Cache: CacheConfig{
			TTLSeconds: getEnvInt(EnvCacheTTL, 300),
			Capacity:   getEnvInt(EnvCacheCapacity, 50),
		},
		Batch: BatchConfig{
			Concurrency:  getEnvInt(EnvConcurrency, DefaultConcurrency),
			SuccessRatio: getEnvFloat(EnvSuccessRatio, DefaultSuccessRatio),
		},
		MaxFileSize: int64(getEnvInt(EnvMaxFileSize, 20*1024*1024)),
	}
}

// LoadFile reads a YAML config file and overlays it on the env-derived
// config. File values win only where set.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	merge(cfg, &fileCfg)
	return cfg, nil
}

func merge(dst, src *Config) {
	if src.OCR.Endpoint != "" {
		dst.OCR.Endpoint = src.OCR.Endpoint
	}
	if src.OCR.APIKey != "" {
		dst.OCR.APIKey = src.OCR.APIKey
	}
	if len(src.OCR.LanguageHints) > 0 {
		dst.OCR.LanguageHints = src.OCR.LanguageHints
	}
	if src.OCR.MaxInFlight > 0 {
		dst.OCR.MaxInFlight = src.OCR.MaxInFlight
	}
	if src.VLM.BaseURL != "" {
		dst.VLM.BaseURL = src.VLM.BaseURL
	}
	if src.VLM.Model != "" {
		dst.VLM.Model = src.VLM.Model
	}
	if src.VLM.APIKey != "" {
		dst.VLM.APIKey = src.VLM.APIKey
	}
	if src.VLM.MaxTokens > 0 {
		dst.VLM.MaxTokens = src.VLM.MaxTokens
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	if src.Cache.Capacity > 0 {
		dst.Cache.Capacity = src.Cache.Capacity
	}
	if src.Batch.Concurrency > 0 {
		dst.Batch.Concurrency = src.Batch.Concurrency
	}
	if src.Batch.SuccessRatio > 0 {
		dst.Batch.SuccessRatio = src.Batch.SuccessRatio
	}
	if src.MaxFileSize > 0 {
		dst.MaxFileSize = src.MaxFileSize
	}
}

// Validate checks that the configuration can drive the pipeline.
func (c *Config) Validate() error {
	if c.OCR.Endpoint == "" {
		return fmt.Errorf("%s is required", EnvOCREndpoint)
	}
	if c.VLM.APIKey == "" {
		return fmt.Errorf("%s is required", EnvVLMAPIKey)
	}
	if c.Batch.SuccessRatio <= 0 || c.Batch.SuccessRatio > 1 {
		return fmt.Errorf("batch success ratio must be within (0, 1], got %v", c.Batch.SuccessRatio)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
