package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ocrpipe/internal/httpapi"
	"ocrpipe/internal/ingest"
	"ocrpipe/internal/logger"
	"ocrpipe/internal/ocr"
)

type Config struct {
	// OCR engine selection
	Engine string

	// Tesseract CLI configuration
	TesseractPath string
	Language      string
	PSM           int
	OEM           int
	TessdataDir   string

	// Ingestion limits
	EngineTimeout time.Duration
	MaxConcurrent int
	MaxImageBytes int64
	TempDir       string

	// HTTP server configuration
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Capture client configuration
	ServerURL string

	// Google Cloud configuration (vision and documentai engines)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		Engine:                strings.ToLower(getEnv("OCR_ENGINE", ocr.EngineTesseract)),
		TesseractPath:         getEnv("TESSERACT_PATH", "tesseract"),
		Language:              getEnv("OCR_LANGUAGE", ocr.DefaultLanguage),
		PSM:                   getEnvAsInt("OCR_PSM", ocr.DefaultPSM),
		OEM:                   getEnvAsInt("OCR_OEM", ocr.DefaultOEM),
		TessdataDir:           getEnv("TESSDATA_PREFIX", ""),
		EngineTimeout:         getEnvAsDuration("OCR_TIMEOUT", ingest.DefaultEngineTimeout),
		MaxConcurrent:         getEnvAsInt("OCR_MAX_CONCURRENT", ingest.DefaultMaxConcurrent),
		MaxImageBytes:         getEnvAsInt64("OCR_MAX_IMAGE_BYTES", ingest.DefaultMaxImageBytes),
		TempDir:               getEnv("TEMP_DIR", ""),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:       getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		ServerURL:             getEnv("OCR_SERVER_URL", "http://localhost:8080"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case ocr.EngineTesseract:
		if c.TesseractPath == "" {
			return fmt.Errorf("TESSERACT_PATH must not be empty")
		}
	case ocr.EngineVision:
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai engine")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai engine")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be one of %s, %s, %s (got %q)",
			ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI, c.Engine)
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("OCR_LANGUAGE must not be empty")
	}
	// PSM 0 is orientation detection only and yields no text; OEM 0 needs
	// legacy traineddata that the standard tessdata packages do not ship.
	if c.PSM < 1 || c.PSM > 13 {
		return fmt.Errorf("OCR_PSM must be between 1 and 13 (got %d)", c.PSM)
	}
	if c.OEM < 1 || c.OEM > 3 {
		return fmt.Errorf("OCR_OEM must be between 1 and 3 (got %d)", c.OEM)
	}
	if c.EngineTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("OCR_MAX_CONCURRENT must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("OCR_MAX_IMAGE_BYTES must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetEngineConfig returns the OCR engine configuration.
func (c *Config) GetEngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{
		Engine: c.Engine,
		Tesseract: ocr.TesseractConfig{
			Binary:      c.TesseractPath,
			PSM:         c.PSM,
			OEM:         c.OEM,
			TessdataDir: c.TessdataDir,
		},
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:   c.GoogleCloudProject,
			Location:    c.GoogleCloudLocation,
			ProcessorID: c.DocumentAIProcessorID,
		},
	}
}

// GetIngestConfig returns the ingestion service configuration.
func (c *Config) GetIngestConfig() ingest.Config {
	return ingest.Config{
		Language:      c.Language,
		TempDir:       c.TempDir,
		EngineTimeout: c.EngineTimeout,
		MaxConcurrent: c.MaxConcurrent,
		MaxImageBytes: c.MaxImageBytes,
	}
}

// GetServerConfig returns the HTTP server configuration.
func (c *Config) GetServerConfig() httpapi.Config {
	return httpapi.Config{
		Addr:            c.HTTPAddr,
		MaxImageBytes:   c.MaxImageBytes,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err == nil {
			return intVal
		}
		warnFallback(key, value, defaultValue, err)
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intVal
		}
		warnFallback(key, value, defaultValue, err)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
		warnFallback(key, value, defaultValue, err)
	}
	return defaultValue
}

// warnFallback reports an unparsable variable. Config is loaded before the
// logger is set up, so this goes through zerolog's default global logger.
func warnFallback(key, value string, defaultValue any, err error) {
	log.Warn().
		Err(err).
		Str("variable", key).
		Str("value", value).
		Interface("default", defaultValue).
		Msg("Invalid environment value, using default")
}
