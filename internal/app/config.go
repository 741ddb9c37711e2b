package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	HistoryWindow      int     `yaml:"history_window"`
	RequestTimeoutSec  int     `yaml:"request_timeout_seconds"`
	IncludeCodeContext bool    `yaml:"include_code_context"`
	HistoryRoot        string  `yaml:"history_root"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.openai.com/v1/chat/completions",
		Model:              "gpt-4o-mini",
		Temperature:        0.2,
		MaxTokens:          2048,
		HistoryWindow:      4,
		RequestTimeoutSec:  120,
		IncludeCodeContext: true,
	}
}

// RequestTimeout is the per-submission deadline derived from config.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("CODECHAT_API_KEY")
	}
	if env := os.Getenv("CODECHAT_BASE_URL"); env != "" {
		cfg.BaseURL = env
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 4
	}
	if cfg.HistoryWindow > 32 {
		cfg.HistoryWindow = 32
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 120
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "codechat", "config.yml")
}
