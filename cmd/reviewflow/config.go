package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/agentflow-go/flow/model"
	"github.com/dshills/agentflow-go/flow/model/anthropic"
	"github.com/dshills/agentflow-go/flow/model/google"
	"github.com/dshills/agentflow-go/flow/model/openai"
	"github.com/dshills/agentflow-go/flow/store"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the reviewflow process configuration, populated from
// the environment with optional YAML file overrides.
type Config struct {
	// GitHubToken authenticates against GitHub. Empty means an
	// anonymous client with much lower rate limits.
	GitHubToken string `env:"GITHUB_TOKEN" yaml:"github_token"`

	// Repository is the target repository in owner/repo form.
	Repository string `env:"REPOSITORY" yaml:"repository"`

	// PRNumber is the pull request to review.
	PRNumber int `env:"PR_NUMBER" yaml:"pr_number"`

	// Provider selects the language model backend: openai, anthropic,
	// or google.
	Provider string `env:"LLM_PROVIDER,default=openai" yaml:"provider"`

	// Model names the provider model. Empty uses the provider default.
	Model string `env:"MODEL" yaml:"model"`

	OpenAIKey    string `env:"OPENAI_API_KEY" yaml:"openai_api_key"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY" yaml:"anthropic_api_key"`
	GoogleKey    string `env:"GOOGLE_API_KEY" yaml:"google_api_key"`

	// MaxTurns bounds the review run's decision loop.
	MaxTurns int `env:"MAX_TURNS,default=20" yaml:"max_turns"`

	// Store selects the run journal: "memory", "sqlite:<path>", or
	// "mysql:<dsn>".
	Store string `env:"STORE,default=memory" yaml:"store"`

	// MetricsAddr, when set, serves Prometheus metrics on that
	// address (e.g. ":9090").
	MetricsAddr string `env:"METRICS_ADDR" yaml:"metrics_addr"`

	// LogJSON switches event logging from text to JSON lines.
	LogJSON bool `env:"LOG_JSON,default=false" yaml:"log_json"`
}

// loadConfig reads a .env file if present, processes the environment,
// and applies overrides from the optional YAML file.
func loadConfig(ctx context.Context, yamlPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}

	if yamlPath != "" {
		if err := applyYAML(&cfg, yamlPath); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyYAML overrides cfg fields with any values set in the YAML file.
func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var overrides Config
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if overrides.GitHubToken != "" {
		cfg.GitHubToken = overrides.GitHubToken
	}
	if overrides.Repository != "" {
		cfg.Repository = overrides.Repository
	}
	if overrides.PRNumber != 0 {
		cfg.PRNumber = overrides.PRNumber
	}
	if overrides.Provider != "" {
		cfg.Provider = overrides.Provider
	}
	if overrides.Model != "" {
		cfg.Model = overrides.Model
	}
	if overrides.OpenAIKey != "" {
		cfg.OpenAIKey = overrides.OpenAIKey
	}
	if overrides.AnthropicKey != "" {
		cfg.AnthropicKey = overrides.AnthropicKey
	}
	if overrides.GoogleKey != "" {
		cfg.GoogleKey = overrides.GoogleKey
	}
	if overrides.MaxTurns != 0 {
		cfg.MaxTurns = overrides.MaxTurns
	}
	if overrides.Store != "" {
		cfg.Store = overrides.Store
	}
	if overrides.MetricsAddr != "" {
		cfg.MetricsAddr = overrides.MetricsAddr
	}
	if overrides.LogJSON {
		cfg.LogJSON = true
	}
	return nil
}

func (c Config) validate() error {
	if c.Repository == "" {
		return fmt.Errorf("REPOSITORY is required (owner/repo)")
	}
	if !strings.Contains(c.Repository, "/") {
		return fmt.Errorf("REPOSITORY must be in owner/repo form, got %q", c.Repository)
	}
	if c.PRNumber <= 0 {
		return fmt.Errorf("PR_NUMBER is required and must be positive, got %d", c.PRNumber)
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be positive, got %d", c.MaxTurns)
	}
	switch c.Provider {
	case "openai", "anthropic", "google":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai, anthropic, or google, got %q", c.Provider)
	}
	if _, err := c.apiKey(); err != nil {
		return err
	}
	return nil
}

// apiKey returns the API key for the configured provider.
func (c Config) apiKey() (string, error) {
	var key, envName string
	switch c.Provider {
	case "openai":
		key, envName = c.OpenAIKey, "OPENAI_API_KEY"
	case "anthropic":
		key, envName = c.AnthropicKey, "ANTHROPIC_API_KEY"
	case "google":
		key, envName = c.GoogleKey, "GOOGLE_API_KEY"
	}
	if key == "" {
		return "", fmt.Errorf("%s is required for provider %q", envName, c.Provider)
	}
	return key, nil
}

// chatModel builds the ChatModel for the configured provider.
func (c Config) chatModel() (model.ChatModel, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}
	switch c.Provider {
	case "anthropic":
		return anthropic.NewChatModel(key, c.Model), nil
	case "google":
		return google.NewChatModel(key, c.Model), nil
	default:
		return openai.NewChatModel(key, c.Model), nil
	}
}

// openStore opens the configured run journal.
func (c Config) openStore() (store.Store, error) {
	switch {
	case c.Store == "" || c.Store == "memory":
		return store.NewMemStore(), nil
	case strings.HasPrefix(c.Store, "sqlite:"):
		return store.NewSQLiteStore(strings.TrimPrefix(c.Store, "sqlite:"))
	case strings.HasPrefix(c.Store, "mysql:"):
		return store.NewMySQLStore(strings.TrimPrefix(c.Store, "mysql:"))
	default:
		return nil, fmt.Errorf("STORE must be memory, sqlite:<path>, or mysql:<dsn>, got %q", c.Store)
	}
}
