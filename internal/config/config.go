//nolint:lll
package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
	"github.com/MeKo-Tech/subtext/internal/report"
	"github.com/MeKo-Tech/subtext/internal/server"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// Config represents the complete configuration for the subtext server.
// It supports loading from configuration files, environment variables,
// a .env file and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	OCR       OCRConfig       `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Translate TranslateConfig `mapstructure:"translate" yaml:"translate" json:"translate"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report" json:"report"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	AdminPort       int             `mapstructure:"admin_port" yaml:"admin_port" json:"admin_port"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	QueueTimeoutSec int             `mapstructure:"queue_timeout_sec" yaml:"queue_timeout_sec" json:"queue_timeout_sec"`
	WebSocketPath   string          `mapstructure:"websocket_path" yaml:"websocket_path" json:"websocket_path"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// OCRConfig contains OCR engine settings.
type OCRConfig struct {
	Engine       string `mapstructure:"engine" yaml:"engine" json:"engine"`
	SourceLang   string `mapstructure:"source_lang" yaml:"source_lang" json:"source_lang"`
	UseGPU       bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	BatchSize    int    `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	Workers      int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	MaxImageSize int    `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`

	Remote  RemoteOCRConfig  `mapstructure:"remote" yaml:"remote" json:"remote"`
	Vision  VisionOCRConfig  `mapstructure:"vision" yaml:"vision" json:"vision"`
	Fixture FixtureOCRConfig `mapstructure:"fixture" yaml:"fixture" json:"fixture"`
}

// RemoteOCRConfig configures the EasyOCR sidecar.
type RemoteOCRConfig struct {
	URL        string `mapstructure:"url" yaml:"url" json:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// VisionOCRConfig configures Google Cloud Vision.
type VisionOCRConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
}

// FixtureOCRConfig configures the canned-detection engine.
type FixtureOCRConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// TranslateConfig contains translation provider settings.
type TranslateConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider" json:"provider"`
	SourceLang string `mapstructure:"source_lang" yaml:"source_lang" json:"source_lang"`
	TargetLang string `mapstructure:"target_lang" yaml:"target_lang" json:"target_lang"`

	Google     GoogleTranslateConfig `mapstructure:"google" yaml:"google" json:"google"`
	Gemini     GeminiConfig          `mapstructure:"gemini" yaml:"gemini" json:"gemini"`
	Dictionary DictionaryConfig      `mapstructure:"dictionary" yaml:"dictionary" json:"dictionary"`
	Cache      CacheConfig           `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// GoogleTranslateConfig configures Cloud Translation.
type GoogleTranslateConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"-"`
}

// GeminiConfig configures the Gemini translator.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Model  string `mapstructure:"model" yaml:"model" json:"model"`
}

// DictionaryConfig configures the phrase table translator.
type DictionaryConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// CacheConfig configures the translation cache.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Size          int    `mapstructure:"size" yaml:"size" json:"size"`
	TTLSec        int    `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password" json:"-"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db" json:"redis_db"`
}

// PipelineConfig contains filtering and merge settings.
type PipelineConfig struct {
	MinConfidence       float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	MergeXOverlapping   bool    `mapstructure:"merge_x_overlapping" yaml:"merge_x_overlapping" json:"merge_x_overlapping"`
	MergeMaxYDiff       int     `mapstructure:"merge_max_y_diff" yaml:"merge_max_y_diff" json:"merge_max_y_diff"`
	TranslateWorkers    int     `mapstructure:"translate_workers" yaml:"translate_workers" json:"translate_workers"`
	TranslationFallback bool    `mapstructure:"translation_fallback" yaml:"translation_fallback" json:"translation_fallback"`
}

// ReportConfig contains report sink settings.
type ReportConfig struct {
	FilePath    string `mapstructure:"file_path" yaml:"file_path" json:"file_path"`
	Stdout      bool   `mapstructure:"stdout" yaml:"stdout" json:"stdout"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" json:"-"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8888,
			AdminPort:       0,
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			QueueTimeoutSec: 30,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDay:     1 << 30,
			},
		},
		OCR: OCRConfig{
			Engine:     ocr.EngineRemote,
			SourceLang: "es",
			UseGPU:     true,
			BatchSize:  1,
			Workers:    4,
			Remote: RemoteOCRConfig{
				URL:        "http://127.0.0.1:8000/readtext",
				TimeoutSec: 120,
			},
		},
		Translate: TranslateConfig{
			Provider:   translate.ProviderGoogle,
			SourceLang: translate.AutoDetect,
			TargetLang: "en",
			Gemini:     GeminiConfig{Model: translate.DefaultGeminiModel},
			Cache: CacheConfig{
				Enabled: false,
				Size:    translate.DefaultCacheSize,
				TTLSec:  86400,
			},
		},
		Pipeline: PipelineConfig{
			MinConfidence:    pipeline.DefaultMinConfidence,
			MergeMaxYDiff:    pipeline.DefaultMaxYDiff,
			TranslateWorkers: 4,
		},
		Report: ReportConfig{
			FilePath: "report.txt",
			Stdout:   true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := validatePort(c.Server.Port, "server port"); err != nil {
		return err
	}
	if c.Server.AdminPort != 0 {
		if err := validatePort(c.Server.AdminPort, "admin port"); err != nil {
			return err
		}
		if c.Server.AdminPort == c.Server.Port {
			return fmt.Errorf("admin port %d must differ from server port", c.Server.AdminPort)
		}
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.QueueTimeoutSec <= 0 {
		return fmt.Errorf("invalid queue timeout: %d (must be positive)", c.Server.QueueTimeoutSec)
	}
	if p := c.Server.WebSocketPath; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("invalid websocket path: %q (must start with /)", p)
	}

	validEngines := []string{ocr.EngineRemote, ocr.EngineVision, ocr.EngineTesseract, ocr.EngineFixture}
	if !contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	if err := validateLanguage(c.OCR.SourceLang, "ocr.source_lang"); err != nil {
		return err
	}
	if c.OCR.BatchSize <= 0 {
		return fmt.Errorf("invalid OCR batch size: %d (must be positive)", c.OCR.BatchSize)
	}
	if c.OCR.Workers <= 0 {
		return fmt.Errorf("invalid OCR workers: %d (must be positive)", c.OCR.Workers)
	}
	if c.OCR.MaxImageSize < 0 {
		return fmt.Errorf("invalid max image size: %d (must not be negative)", c.OCR.MaxImageSize)
	}

	validProviders := []string{translate.ProviderGoogle, translate.ProviderGemini, translate.ProviderDictionary, translate.ProviderNone}
	if !contains(validProviders, c.Translate.Provider) {
		return fmt.Errorf("invalid translation provider: %s (must be one of: %s)", c.Translate.Provider, strings.Join(validProviders, ", "))
	}
	if c.Translate.SourceLang != translate.AutoDetect {
		if err := validateLanguage(c.Translate.SourceLang, "translate.source_lang"); err != nil {
			return err
		}
	}
	if err := validateLanguage(c.Translate.TargetLang, "translate.target_lang"); err != nil {
		return err
	}

	if err := validateThreshold(c.Pipeline.MinConfidence, "pipeline.min_confidence"); err != nil {
		return err
	}
	if c.Pipeline.MergeMaxYDiff < 0 {
		return fmt.Errorf("invalid merge max y diff: %d (must not be negative)", c.Pipeline.MergeMaxYDiff)
	}
	if c.Pipeline.TranslateWorkers <= 0 {
		return fmt.Errorf("invalid translate workers: %d (must be positive)", c.Pipeline.TranslateWorkers)
	}

	return nil
}

// ToOCRConfig converts to ocr.Config.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Engine:                c.OCR.Engine,
		Languages:             ocr.Languages(c.OCR.SourceLang),
		UseGPU:                c.OCR.UseGPU,
		BatchSize:             c.OCR.BatchSize,
		Workers:               c.OCR.Workers,
		MaxImageSize:          c.OCR.MaxImageSize,
		RemoteURL:             c.OCR.Remote.URL,
		RemoteTimeoutSec:      c.OCR.Remote.TimeoutSec,
		VisionCredentialsFile: c.OCR.Vision.CredentialsFile,
		FixturePath:           c.OCR.Fixture.Path,
	}
}

// ToTranslateConfig converts to translate.Config.
func (c *Config) ToTranslateConfig() translate.Config {
	return translate.Config{
		Provider:       c.Translate.Provider,
		SourceLang:     c.Translate.SourceLang,
		TargetLang:     c.Translate.TargetLang,
		GoogleAPIKey:   c.Translate.Google.APIKey,
		GeminiAPIKey:   c.Translate.Gemini.APIKey,
		GeminiModel:    c.Translate.Gemini.Model,
		DictionaryPath: c.Translate.Dictionary.Path,
		Cache: translate.CacheConfig{
			Enabled:       c.Translate.Cache.Enabled,
			Size:          c.Translate.Cache.Size,
			TTLSec:        c.Translate.Cache.TTLSec,
			RedisAddr:     c.Translate.Cache.RedisAddr,
			RedisPassword: c.Translate.Cache.RedisPassword,
			RedisDB:       c.Translate.Cache.RedisDB,
		},
	}
}

// ToPipelineConfig converts to pipeline.Config.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		MinConfidence: c.Pipeline.MinConfidence,
		Merge: pipeline.MergeConfig{
			Enabled:  c.Pipeline.MergeXOverlapping,
			MaxYDiff: c.Pipeline.MergeMaxYDiff,
		},
		TranslateWorkers:    c.Pipeline.TranslateWorkers,
		TranslationFallback: c.Pipeline.TranslationFallback,
	}
}

// ToReportConfig converts to report.Config.
func (c *Config) ToReportConfig() report.Config {
	return report.Config{
		FilePath:    c.Report.FilePath,
		Stdout:      c.Report.Stdout,
		PostgresDSN: c.Report.PostgresDSN,
	}
}

// ToServerConfig converts to server.Config. The request pool is sized by
// ocr.workers.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		AdminPort:       c.Server.AdminPort,
		MaxUploadMB:     int64(c.Server.MaxUploadMB),
		TimeoutSec:      c.Server.TimeoutSec,
		QueueTimeoutSec: c.Server.QueueTimeoutSec,
		Workers:         c.OCR.Workers,
		WebSocketPath:   c.Server.WebSocketPath,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimit.Enabled,
			RequestsPerMinute: c.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   c.Server.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: c.Server.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     c.Server.RateLimit.MaxDataPerDay,
		},
	}
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

func validatePort(port int, name string) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid %s: %d (must be between 1 and 65535)", name, port)
	}
	return nil
}

// validateLanguage checks that code is a well-formed BCP 47 tag.
func validateLanguage(code, name string) error {
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid %s: %q is not a language code: %w", name, code, err)
	}
	return nil
}
