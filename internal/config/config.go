package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the medfaq service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Generative GenerativeConfig `yaml:"generative"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	History    HistoryConfig    `yaml:"history"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings. An empty APIKey is
// not an error: it forces the orchestrator into fallback-only mode.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// VectorConfig holds vector backend connection settings. Empty Addrs is
// not an error: it forces the orchestrator into fallback-only mode.
type VectorConfig struct {
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	IndexName  string   `yaml:"index_name"`
	TimeoutSec int      `yaml:"timeout_sec"`
}

// GenerativeConfig holds answer synthesis settings. Falls back to the
// embedding credential and endpoint when its own are empty.
type GenerativeConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RateLimitConfig holds fixed-window admission settings.
type RateLimitConfig struct {
	WindowSec int `yaml:"window_sec"`
	Capacity  int `yaml:"capacity"`
}

// HistoryConfig holds bounded history log settings.
type HistoryConfig struct {
	MaxItems int `yaml:"max_items"`
}

// CorpusConfig points at the knowledge document.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// VectorReady reports whether both external credentials are present.
// This deterministically selects the orchestrator's initial mode.
func (c *Config) VectorReady() bool {
	return c.Embedding.APIKey != "" && len(c.Vector.Addrs) > 0
}

// ApplyDefaults fills empty fields with default values and drops blank
// vector addrs left behind by unset ${VAR} substitutions.
func (c *Config) ApplyDefaults() {
	addrs := c.Vector.Addrs[:0]
	for _, a := range c.Vector.Addrs {
		if strings.TrimSpace(a) != "" {
			addrs = append(addrs, a)
		}
	}
	c.Vector.Addrs = addrs
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "medfaq-chunks"
	}
	if c.Vector.TimeoutSec <= 0 {
		c.Vector.TimeoutSec = 5
	}
	if c.Generative.APIKey == "" {
		c.Generative.APIKey = c.Embedding.APIKey
	}
	if c.Generative.BaseURL == "" {
		c.Generative.BaseURL = c.Embedding.BaseURL
	}
	if c.Generative.Model == "" {
		c.Generative.Model = "gpt-4o-mini"
	}
	if c.Generative.TimeoutSec <= 0 {
		c.Generative.TimeoutSec = 15
	}
	if c.RateLimit.WindowSec <= 0 {
		c.RateLimit.WindowSec = 60
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 100
	}
	if c.History.MaxItems <= 0 {
		c.History.MaxItems = 10
	}
	if c.Corpus.Path == "" {
		c.Corpus.Path = "data/corpus.md"
	}
}

// Validate checks the configuration for correctness. Missing external
// credentials are deliberately not an error; they select degraded mode
// at startup instead of crashing it.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
