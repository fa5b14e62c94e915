// Package config loads finassist settings from the environment, an optional
// .env file, and an optional YAML file. Environment variables win over the
// YAML file; defaults fill whatever neither provides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingKey is returned when a required key has no value.
var ErrMissingKey = errors.New("config: missing required key")

// Config holds every runtime setting.
type Config struct {
	AlphaVantageAPIKey  string `mapstructure:"alpha_vantage_api_key"`
	AlphaVantageBaseURL string `mapstructure:"alpha_vantage_base_url"`

	OpenAIAPIKey  string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL string  `mapstructure:"openai_base_url"`
	OpenAIModel   string  `mapstructure:"openai_model"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float32 `mapstructure:"temperature"`

	HTTPAddr          string        `mapstructure:"http_addr"`
	HTTPClientTimeout time.Duration `mapstructure:"http_client_timeout"`
	GinMode           string        `mapstructure:"gin_mode"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogOutput string `mapstructure:"log_output"`

	TracingExporter string `mapstructure:"tracing_exporter"`
}

var defaults = map[string]any{
	"alpha_vantage_api_key":  "",
	"alpha_vantage_base_url": "",
	"openai_api_key":         "",
	"openai_base_url":        "",
	"openai_model":           "gpt-3.5-turbo",
	"max_tokens":             1000,
	"temperature":            0.7,
	"http_addr":              ":8000",
	"http_client_timeout":    "30s",
	"gin_mode":               "release",
	"log_level":              "info",
	"log_format":             "console",
	"log_output":             "stderr",
	"tracing_exporter":       "",
}

// Load reads configuration. envFile is loaded into the process environment
// first and ignored when it does not exist; configFile, when non-empty, must
// be a readable YAML file. Missing required keys produce an error wrapping
// ErrMissingKey that names the key.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Unmarshal only sees env values for keys viper already knows; the
	// defaults above register all of them.
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first missing required key.
func (c *Config) Validate() error {
	switch {
	case c.AlphaVantageAPIKey == "":
		return fmt.Errorf("%w: ALPHA_VANTAGE_API_KEY", ErrMissingKey)
	case c.OpenAIAPIKey == "":
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingKey)
	}

	return nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
