package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// LLMConfig holds language-model provider settings.
type LLMConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	QueryGeneratorModel string        `mapstructure:"query_generator_model"`
	ReasoningModel      string        `mapstructure:"reasoning_model"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// SearchConfig holds search-provider settings.
type SearchConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	SearchDepth string        `mapstructure:"search_depth"`
	MaxResults  int           `mapstructure:"max_results"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResearchConfig holds workflow tunables.
type ResearchConfig struct {
	DefaultEffort         string `mapstructure:"default_effort"`
	MaxContentLength      int    `mapstructure:"max_content_length"`
	MinContentLength      int    `mapstructure:"min_content_length"`
	MaxConcurrentBranches int    `mapstructure:"max_concurrent_branches"`
	StreamBufferSize      int    `mapstructure:"stream_buffer_size"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Research ResearchConfig `mapstructure:"research"`
}

// Load reads the yaml config from CONFIG_PATH (default config/prosearch.yaml)
// with PROSEARCH_* env overrides. A missing file is not an error; defaults
// apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/prosearch.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		// No file: env + defaults only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 2112)

	v.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.query_generator_model", "deepseek-chat")
	v.SetDefault("llm.reasoning_model", "deepseek-chat")
	v.SetDefault("llm.timeout", 2*time.Minute)

	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.search_depth", "basic")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("search.burst", 5)
	v.SetDefault("search.timeout", 30*time.Second)

	v.SetDefault("research.default_effort", "medium")
	v.SetDefault("research.max_content_length", 4000)
	v.SetDefault("research.min_content_length", 20)
	v.SetDefault("research.max_concurrent_branches", 8)
	v.SetDefault("research.stream_buffer_size", 256)
}

// Effort maps the recognized effort levels to workflow limits.
// Unknown levels fall back to medium.
func Effort(level string) (initialQueries, maxLoops int) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return 1, 1
	case "high":
		return 5, 10
	default:
		return 3, 3
	}
}
