package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultTimeout       = 3 * time.Minute
	DefaultMaxConcurrent = 7
)

type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	NATS     NATSConfig     `yaml:"nats"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type PipelineConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// NATSConfig controls run event publishing. With URL set the client connects
// to an external server; otherwise an embedded server is started.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// StoreConfig locates the run ledger. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Gemini: GeminiConfig{
			Model:       DefaultModel,
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Pipeline: PipelineConfig{
			Timeout:       DefaultTimeout,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SCENEGEN_CONFIG")
	if path == "" {
		path = "config/scenegen.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("SCENEGEN_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("SCENEGEN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCENEGEN_TIMEOUT: %w", err)
		}
		cfg.Pipeline.Timeout = d
	}
	if v := os.Getenv("SCENEGEN_NATS_URL"); v != "" {
		cfg.NATS.URL = v
		cfg.NATS.Enabled = true
	}
	if v := os.Getenv("SCENEGEN_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SCENEGEN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SCENEGEN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func (c *Config) normalize() {
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultModel
	}
	if c.Pipeline.Timeout <= 0 {
		c.Pipeline.Timeout = DefaultTimeout
	}
	if c.Pipeline.MaxConcurrent < 1 || c.Pipeline.MaxConcurrent > DefaultMaxConcurrent {
		c.Pipeline.MaxConcurrent = DefaultMaxConcurrent
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate checks what a generation run needs.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("gemini api key is required (gemini.api_key or GEMINI_API_KEY)"))
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, fmt.Errorf("gemini.temperature %v out of range [0,2]", c.Gemini.Temperature))
	}
	if c.Gemini.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("gemini.max_tokens must not be negative"))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
