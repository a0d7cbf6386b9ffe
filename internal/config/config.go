// Package config handles configuration loading for MarketBrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"  yaml:"analysis"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
}

// LLMConfig holds settings for the local generation process.
type LLMConfig struct {
	OllamaURL   string  `mapstructure:"ollama_url"  yaml:"ollama_url"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p"       yaml:"top_p"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ProvidersConfig holds market data provider settings.
type ProvidersConfig struct {
	AlphaVantageKey string `mapstructure:"alpha_vantage_key" yaml:"alpha_vantage_key"`
}

// AnalysisConfig holds analysis engine settings.
type AnalysisConfig struct {
	NewsLimit   int `mapstructure:"news_limit"    yaml:"news_limit"`
	CacheTTLSec int `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketbrief/config.yaml (home directory)
//  3. /etc/marketbrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETBRIEF_<SECTION>_<KEY>, e.g., MARKETBRIEF_LLM_MODEL
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketbrief"))
	v.AddConfigPath("/etc/marketbrief")

	v.SetEnvPrefix("MARKETBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults: lightweight local model via Ollama
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.2:1b")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.timeout_sec", 30)

	// Analysis defaults
	v.SetDefault("analysis.news_limit", 5)
	v.SetDefault("analysis.cache_ttl_sec", 300) // 5 minutes

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("MARKETBRIEF_PROVIDERS_ALPHA_VANTAGE_KEY"); key != "" {
		cfg.Providers.AlphaVantageKey = key
	}
	// Widely used name from the provider's own docs.
	if key := os.Getenv("ALPHA_VANTAGE_API_KEY"); key != "" && cfg.Providers.AlphaVantageKey == "" {
		cfg.Providers.AlphaVantageKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
