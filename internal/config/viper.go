// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/bill-csv/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Supported values for the enumerated settings.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	EngineNative    = "native"
	EnginePdftotext = "pdftotext"

	DefaultOutputFile  = models.DefaultOutputFile
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CSVConfig controls the CSV export.
type CSVConfig struct {
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	FileName  string `mapstructure:"file_name" yaml:"file_name"`
}

// AIConfig controls the language model client.
type AIConfig struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"`
	Model             string  `mapstructure:"model" yaml:"model"`
	Temperature       float32 `mapstructure:"temperature" yaml:"temperature"`
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	OpenAIAPIKey      string  `mapstructure:"openai_api_key" yaml:"-"` // Never serialize API keys
	GeminiAPIKey      string  `mapstructure:"gemini_api_key" yaml:"-"`
}

// BatchConfig controls how a batch of documents is processed.
type BatchConfig struct {
	Workers                int  `mapstructure:"workers" yaml:"workers"`
	FailFast               bool `mapstructure:"fail_fast" yaml:"fail_fast"`
	DocumentTimeoutSeconds int  `mapstructure:"document_timeout_seconds" yaml:"document_timeout_seconds"`
}

// ExtractionConfig controls record validation.
type ExtractionConfig struct {
	RequireAllFields bool `mapstructure:"require_all_fields" yaml:"require_all_fields"`
}

// PDFConfig selects the text extraction engine.
type PDFConfig struct {
	Engine string `mapstructure:"engine" yaml:"engine"`
}

// ParsersConfig groups input parser settings.
type ParsersConfig struct {
	PDF PDFConfig `mapstructure:"pdf" yaml:"pdf"`
}

// ServerConfig controls the HTTP upload endpoint.
type ServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Config represents the complete application configuration
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	CSV        CSVConfig        `mapstructure:"csv" yaml:"csv"`
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Parsers    ParsersConfig    `mapstructure:"parsers" yaml:"parsers"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// APIKey returns the key of the configured provider.
func (a AIConfig) APIKey() string {
	if a.Provider == ProviderGemini {
		return a.GeminiAPIKey
	}
	return a.OpenAIAPIKey
}

// Timeout returns the per-request model timeout.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DocumentTimeout returns the per-document deadline, zero when disabled.
func (b BatchConfig) DocumentTimeout() time.Duration {
	return time.Duration(b.DocumentTimeoutSeconds) * time.Second
}

// DelimiterRune returns the CSV delimiter as a rune.
func (c CSVConfig) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}

// MaxUploadBytes returns the request body limit of the upload endpoint.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// InitializeConfig loads configuration from the default locations.
func InitializeConfig() (*Config, error) {
	return Load("")
}

// Load initializes Viper configuration with hierarchical loading:
// defaults, then config.yaml (or configFile when set), then BILLS_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.bill-csv")
		v.AddConfigPath(".bill-csv")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("BILLS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// 5. API keys keep their conventional, unprefixed names
	if err := v.BindEnv("ai.openai_api_key", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_API_KEY: %w", err)
	}
	if err := v.BindEnv("ai.gemini_api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}

	return unmarshal(v)
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(fmt.Sprintf("built-in configuration is invalid: %v", err))
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.AI.Provider = strings.ToLower(config.AI.Provider)
	config.Parsers.PDF.Engine = strings.ToLower(config.Parsers.PDF.Engine)
	if config.AI.Provider == ProviderGemini && config.AI.Model == DefaultOpenAIModel {
		config.AI.Model = DefaultGeminiModel
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.file_name", DefaultOutputFile)

	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.model", DefaultOpenAIModel)
	v.SetDefault("ai.temperature", 0)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("ai.requests_per_minute", 0)
	v.SetDefault("ai.max_retries", 0)
	v.SetDefault("ai.openai_api_key", "")
	v.SetDefault("ai.gemini_api_key", "")

	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.fail_fast", false)
	v.SetDefault("batch.document_timeout_seconds", 120)

	v.SetDefault("extraction.require_all_fields", true)

	v.SetDefault("parsers.pdf.engine", EngineNative)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 32)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}
	if config.CSV.FileName == "" {
		return fmt.Errorf("csv.file_name must not be empty")
	}

	switch config.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid ai.provider: %s (must be '%s' or '%s')", config.AI.Provider, ProviderOpenAI, ProviderGemini)
	}
	if config.AI.Model == "" {
		return fmt.Errorf("ai.model must not be empty")
	}
	if config.AI.Temperature < 0 || config.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got: %v", config.AI.Temperature)
	}
	if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
		return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
	}
	if config.AI.RequestsPerMinute < 0 || config.AI.RequestsPerMinute > 1000 {
		return fmt.Errorf("ai.requests_per_minute must be between 0 and 1000, got: %d", config.AI.RequestsPerMinute)
	}
	if config.AI.MaxRetries < 0 || config.AI.MaxRetries > 10 {
		return fmt.Errorf("ai.max_retries must be between 0 and 10, got: %d", config.AI.MaxRetries)
	}

	if config.Batch.Workers < 1 || config.Batch.Workers > 64 {
		return fmt.Errorf("batch.workers must be between 1 and 64, got: %d", config.Batch.Workers)
	}
	if config.Batch.DocumentTimeoutSeconds < 0 {
		return fmt.Errorf("batch.document_timeout_seconds must not be negative, got: %d", config.Batch.DocumentTimeoutSeconds)
	}

	switch config.Parsers.PDF.Engine {
	case EngineNative, EnginePdftotext:
	default:
		return fmt.Errorf("invalid parsers.pdf.engine: %s (must be '%s' or '%s')", config.Parsers.PDF.Engine, EngineNative, EnginePdftotext)
	}

	if config.Server.MaxUploadMB < 1 || config.Server.MaxUploadMB > 1024 {
		return fmt.Errorf("server.max_upload_mb must be between 1 and 1024, got: %d", config.Server.MaxUploadMB)
	}

	return nil
}

// ConfigureLoggingFromConfig configures logging based on the Config struct
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
