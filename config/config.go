package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingIntelXKey is returned when no Intelligence X key was configured.
var ErrMissingIntelXKey = errors.New("intelx api key not configured (set INTELX_KEY)")

// Config holds all configuration for a single run
type Config struct {
	IntelX    IntelXConfig    `mapstructure:"intelx"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Run       RunConfig       `mapstructure:"run"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// IntelXConfig contains the breach-intel search API settings
type IntelXConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Buckets        []string      `mapstructure:"buckets"`
	MaxResults     int           `mapstructure:"max_results"`
	Sort           int           `mapstructure:"sort"`
	SearchTimeout  time.Duration `mapstructure:"search_timeout"` // upstream search budget, sent in seconds
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ListTimeout    time.Duration `mapstructure:"list_timeout"`
}

// Validate checks the search API settings.
func (c IntelXConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingIntelXKey
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("intelx.base_url required")
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("intelx.buckets must not be empty")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("intelx.max_results must be > 0")
	}
	return nil
}

// Normalize trims values and drops empty buckets.
func (c IntelXConfig) Normalize() IntelXConfig {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	buckets := make([]string, 0, len(c.Buckets))
	for _, b := range c.Buckets {
		if b = strings.TrimSpace(b); b != "" {
			buckets = append(buckets, b)
		}
	}
	c.Buckets = buckets
	return c
}

// PreviewConfig controls the preview/view fallback
type PreviewConfig struct {
	MinLength   int           `mapstructure:"min_length"` // preview bodies must be longer than this
	Timeout     time.Duration `mapstructure:"timeout"`
	ViewTimeout time.Duration `mapstructure:"view_timeout"`
	HTMLToText  bool          `mapstructure:"html_to_text"`
}

// LLMConfig contains the OpenAI-compatible completion endpoint settings
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether AI analysis can run.
func (c LLMConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// JSON extraction strategies for model output.
const (
	ExtractGreedy   = "greedy"
	ExtractBalanced = "balanced"
)

// AnalysisConfig controls how content is turned into findings
type AnalysisConfig struct {
	MaxChars       int    `mapstructure:"max_chars"`
	JSONExtraction string `mapstructure:"json_extraction"`
	ValidateSchema bool   `mapstructure:"validate_schema"`
}

func (c AnalysisConfig) Validate() error {
	switch c.JSONExtraction {
	case ExtractGreedy, ExtractBalanced:
	default:
		return fmt.Errorf("analysis.json_extraction must be %q or %q, got %q", ExtractGreedy, ExtractBalanced, c.JSONExtraction)
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("analysis.max_chars must be > 0")
	}
	return nil
}

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// RunConfig contains driver settings
type RunConfig struct {
	Limit  int    `mapstructure:"limit"`
	Output string `mapstructure:"output"`
	Color  string `mapstructure:"color"` // auto, always, never
}

func (c RunConfig) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("run.limit cannot be negative")
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("run.output must be one of text, json, yaml; got %q", c.Output)
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("run.color must be one of auto, always, never; got %q", c.Color)
	}
	return nil
}

// TelemetryConfig contains tracing and metrics settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Format)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.IntelX.Validate(); err != nil {
		return err
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if err := c.Run.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("intelx.api_key", "")
	v.SetDefault("intelx.base_url", "https://2.intelx.io")
	v.SetDefault("intelx.user_agent", "leaksight/2.0")
	v.SetDefault("intelx.buckets", []string{"leaks.private.general", "leaks.public.general"})
	v.SetDefault("intelx.max_results", 20)
	v.SetDefault("intelx.sort", 4) // date, descending
	v.SetDefault("intelx.search_timeout", 5*time.Second)
	v.SetDefault("intelx.request_timeout", 10*time.Second)
	v.SetDefault("intelx.list_timeout", 15*time.Second)

	v.SetDefault("preview.min_length", 10)
	v.SetDefault("preview.timeout", 10*time.Second)
	v.SetDefault("preview.view_timeout", 15*time.Second)
	v.SetDefault("preview.html_to_text", false)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("analysis.max_chars", 3000)
	v.SetDefault("analysis.json_extraction", ExtractGreedy)
	v.SetDefault("analysis.validate_schema", false)

	v.SetDefault("run.limit", 5)
	v.SetDefault("run.output", OutputText)
	v.SetDefault("run.color", "auto")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "leaksight")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.metrics_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig builds the run configuration from defaults, an optional config
// file and the environment. Missing credentials are reported as errors.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("leaksight")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("LEAKSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// unprefixed names kept for existing shell setups
	_ = v.BindEnv("intelx.api_key", "LEAKSIGHT_INTELX_API_KEY", "INTELX_KEY")
	_ = v.BindEnv("llm.api_key", "LEAKSIGHT_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "LEAKSIGHT_LLM_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("llm.model", "LEAKSIGHT_LLM_MODEL", "LLM_MODEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.IntelX = cfg.IntelX.Normalize()
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
