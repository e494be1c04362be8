package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/notely/internal/models"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/processor"
)

// DefaultDatabasePath is the database file used when none is configured.
const DefaultDatabasePath = "notely.db"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	oc := ocr.DefaultConfig()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		OCR: OCRConfig{
			EngineMode:       oc.EngineMode,
			SegmentationMode: oc.SegmentationMode,
			UseBestModel:     oc.UseBestModel,
			Preprocess:       oc.Preprocess,
			TessdataDir:      models.DefaultTessdataDir,
			Languages:        []string{"eng"},
			Engine:           ocr.EngineCLI,
			TesseractPath:    "tesseract",
		},
		Preprocessing: PreprocessingConfig{
			Preset: processor.PresetPrinted,
		},
		Worker: WorkerConfig{
			PoolSize:      0,
			MessageBuffer: 256,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        300,
			ShutdownTimeout:   10,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     500 * 1024 * 1024,
		},
		Search: SearchConfig{
			CaseSensitive: false,
			FuzzyDistance: 0,
			Mode:          "title",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path must not be empty")
	}

	if err := c.ToOCRConfig().Validate(); err != nil {
		return err
	}
	validEngines := []string{ocr.EngineCLI, ocr.EngineGosseract}
	if !slices.Contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid ocr engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}

	if c.Preprocessing.Preset != "" {
		if _, err := processor.LookupPreset(c.Preprocessing.Preset); err != nil {
			return err
		}
	}

	if c.Worker.PoolSize < 0 {
		return fmt.Errorf("invalid worker pool size: %d (must not be negative)", c.Worker.PoolSize)
	}
	if c.Worker.MessageBuffer < 0 {
		return fmt.Errorf("invalid worker message buffer: %d (must not be negative)", c.Worker.MessageBuffer)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && c.Server.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid requests per minute: %d (must be positive when rate limiting is enabled)",
			c.Server.RequestsPerMinute)
	}

	if c.Search.FuzzyDistance < 0 {
		return fmt.Errorf("invalid fuzzy distance: %d (must not be negative)", c.Search.FuzzyDistance)
	}
	validModes := []string{"title", "content"}
	if !slices.Contains(validModes, c.Search.Mode) {
		return fmt.Errorf("invalid search mode: %s (must be one of: %s)", c.Search.Mode, strings.Join(validModes, ", "))
	}
	return nil
}

// ToOCRConfig converts to the per-job recognition settings.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		EngineMode:       c.OCR.EngineMode,
		SegmentationMode: c.OCR.SegmentationMode,
		UseBestModel:     c.OCR.UseBestModel,
		Preprocess:       c.OCR.Preprocess,
	}
}

// ModelSet resolves the tessdata directories.
func (c *Config) ModelSet() models.ModelSet {
	return models.ResolveModelSet(c.OCR.TessdataDir)
}
