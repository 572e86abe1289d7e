package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config holds all fable configuration. Values load in three layers:
// defaults, then the TOML file, then environment overrides.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Narrator NarratorConfig `toml:"narrator"`
	Memory   MemoryConfig   `toml:"memory"`
}

type ServerConfig struct {
	Bind string `toml:"bind" env:"FABLE_BIND"`
	Port int    `toml:"port" env:"FABLE_PORT"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"FABLE_DB_PATH"`
}

type NarratorConfig struct {
	Provider  string `toml:"provider" env:"FABLE_NARRATOR_PROVIDER"` // "openai", "mock"
	Model     string `toml:"model" env:"FABLE_NARRATOR_MODEL"`
	APIKey    string `toml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL   string `toml:"base_url" env:"FABLE_NARRATOR_BASE_URL"`
	MaxTokens int    `toml:"max_tokens" env:"FABLE_NARRATOR_MAX_TOKENS"`
}

type MemoryConfig struct {
	TokenBudget int `toml:"token_budget" env:"FABLE_TOKEN_BUDGET"`
	CleanupDays int `toml:"cleanup_days" env:"FABLE_CLEANUP_DAYS"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8787,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Narrator: NarratorConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			BaseURL:   "https://api.openai.com",
			MaxTokens: 400,
		},
		Memory: MemoryConfig{
			TokenBudget: 1500,
			CleanupDays: 30,
		},
	}
}

// DefaultConfigPath returns ~/.fable/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".fable", "config.toml"), nil
}

// Load reads configuration: defaults, overlaid with the TOML file at path
// (if it exists), overlaid with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
