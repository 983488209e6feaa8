package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration. It is built once per batch run and
// passed into the coordinator; nothing reads it through package globals.
type Config struct {
	Extraction  ExtractionConfig
	Recognition RecognitionConfig
	Patterns    PatternsConfig
	Cache       CacheConfig
	Workers     WorkerConfig
}

// ExtractionConfig holds extraction-strategy configuration.
type ExtractionConfig struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	// StrategyTimeout bounds each individual strategy run.
	StrategyTimeout time.Duration
	// QualityThreshold is the score below which the selector escalates to the
	// external recognition service, when one is configured. 0-100.
	QualityThreshold float64
}

// RecognitionConfig holds the external recognition-service configuration.
type RecognitionConfig struct {
	Endpoint string // empty disables the escalation path
	APIKey   string
	Timeout  time.Duration // hard timeout per call
}

// PatternsConfig points at an optional external pattern-table file.
type PatternsConfig struct {
	TablePath string // YAML pattern tables; empty -> built-in defaults
}

// CacheConfig sizes the bounded read-through result cache.
type CacheConfig struct {
	Size int // number of cached reports; 0 disables caching
}

// WorkerConfig tunes the batch worker pool.
type WorkerConfig struct {
	Count      int
	QueueSize  int
	JobTimeout time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Pdftotext:        getEnv("FM_PDFTOTEXT", ""),
			Pdftoppm:         getEnv("FM_PDFTOPPM", ""),
			Tesseract:        getEnv("FM_TESSERACT", ""),
			TesseractLang:    getEnv("FM_TESSERACT_LANG", "eng"),
			DPI:              getEnvAsInt("FM_OCR_DPI", 300),
			MaxPages:         getEnvAsInt("FM_OCR_MAX_PAGES", 0),
			StrategyTimeout:  getEnvAsDuration("FM_STRATEGY_TIMEOUT", 90*time.Second),
			QualityThreshold: getEnvAsFloat("FM_QUALITY_THRESHOLD", 80),
		},
		Recognition: RecognitionConfig{
			Endpoint: getEnv("FM_RECOGNITION_ENDPOINT", ""),
			APIKey:   getEnv("FM_RECOGNITION_API_KEY", ""),
			Timeout:  getEnvAsDuration("FM_RECOGNITION_TIMEOUT", 30*time.Second),
		},
		Patterns: PatternsConfig{
			TablePath: getEnv("FM_PATTERN_TABLES", ""),
		},
		Cache: CacheConfig{
			Size: getEnvAsInt("FM_CACHE_SIZE", 128),
		},
		Workers: WorkerConfig{
			Count:      getEnvAsInt("FM_WORKERS", 4),
			QueueSize:  getEnvAsInt("FM_QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("FM_JOB_TIMEOUT", 3*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
