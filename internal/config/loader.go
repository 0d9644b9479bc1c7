package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "subtext"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SUBTEXT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader around v. Tests use it to avoid
// sharing the global instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation loads configuration without validating it.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options. Every key
// needs a default so AutomaticEnv can resolve it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	// Server defaults
	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.admin_port", d.Server.AdminPort)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.queue_timeout_sec", d.Server.QueueTimeoutSec)
	l.v.SetDefault("server.websocket_path", d.Server.WebSocketPath)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)

	// OCR defaults
	l.v.SetDefault("ocr.engine", d.OCR.Engine)
	l.v.SetDefault("ocr.source_lang", d.OCR.SourceLang)
	l.v.SetDefault("ocr.use_gpu", d.OCR.UseGPU)
	l.v.SetDefault("ocr.batch_size", d.OCR.BatchSize)
	l.v.SetDefault("ocr.workers", d.OCR.Workers)
	l.v.SetDefault("ocr.max_image_size", d.OCR.MaxImageSize)
	l.v.SetDefault("ocr.remote.url", d.OCR.Remote.URL)
	l.v.SetDefault("ocr.remote.timeout_sec", d.OCR.Remote.TimeoutSec)
	l.v.SetDefault("ocr.vision.credentials_file", d.OCR.Vision.CredentialsFile)
	l.v.SetDefault("ocr.fixture.path", d.OCR.Fixture.Path)

	// Translation defaults
	l.v.SetDefault("translate.provider", d.Translate.Provider)
	l.v.SetDefault("translate.source_lang", d.Translate.SourceLang)
	l.v.SetDefault("translate.target_lang", d.Translate.TargetLang)
	l.v.SetDefault("translate.google.api_key", d.Translate.Google.APIKey)
	l.v.SetDefault("translate.gemini.api_key", d.Translate.Gemini.APIKey)
	l.v.SetDefault("translate.gemini.model", d.Translate.Gemini.Model)
	l.v.SetDefault("translate.dictionary.path", d.Translate.Dictionary.Path)
	l.v.SetDefault("translate.cache.enabled", d.Translate.Cache.Enabled)
	l.v.SetDefault("translate.cache.size", d.Translate.Cache.Size)
	l.v.SetDefault("translate.cache.ttl_sec", d.Translate.Cache.TTLSec)
	l.v.SetDefault("translate.cache.redis_addr", d.Translate.Cache.RedisAddr)
	l.v.SetDefault("translate.cache.redis_password", d.Translate.Cache.RedisPassword)
	l.v.SetDefault("translate.cache.redis_db", d.Translate.Cache.RedisDB)

	// Pipeline defaults
	l.v.SetDefault("pipeline.min_confidence", d.Pipeline.MinConfidence)
	l.v.SetDefault("pipeline.merge_x_overlapping", d.Pipeline.MergeXOverlapping)
	l.v.SetDefault("pipeline.merge_max_y_diff", d.Pipeline.MergeMaxYDiff)
	l.v.SetDefault("pipeline.translate_workers", d.Pipeline.TranslateWorkers)
	l.v.SetDefault("pipeline.translation_fallback", d.Pipeline.TranslationFallback)

	// Report defaults
	l.v.SetDefault("report.file_path", d.Report.FilePath)
	l.v.SetDefault("report.stdout", d.Report.Stdout)
	l.v.SetDefault("report.postgres_dsn", d.Report.PostgresDSN)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}
