// Package config loads surveyor's YAML configuration and the batch
// definition files consumed by runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all surveyor configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Storage  StorageConfig  `yaml:"storage"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig configures the remote query provider.
type ProviderConfig struct {
	Name    string `yaml:"name"` // sonar, gemini; empty detects from env
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	// ColdTimeout applies to the first query per schema; providers are
	// slower while they prepare a new output grammar.
	ColdTimeout string `yaml:"cold_timeout"`
	WarmTimeout string `yaml:"warm_timeout"`
	MaxRetries  int    `yaml:"max_retries"`
}

// StorageConfig configures the answer cache backend.
type StorageConfig struct {
	Kind string `yaml:"kind"` // memory, sqlite
	Path string `yaml:"path"`
}

// WorkflowConfig configures batch dispatch.
type WorkflowConfig struct {
	Workers      int `yaml:"workers"`
	MaxQuestions int `yaml:"max_questions"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			ColdTimeout: "60s",
			WarmTimeout: "30s",
			MaxRetries:  3,
		},
		Storage: StorageConfig{
			Kind: "sqlite",
			Path: filepath.Join(".surveyor", "answers.db"),
		},
		Workflow: WorkflowConfig{
			Workers: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the workspace-relative config file location.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".surveyor", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. A provider
// named via SURVEYOR_PROVIDER (or the file) keeps its name and only picks
// up its own key; with no provider named, the key present decides, sonar
// first.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("SURVEYOR_PROVIDER"); name != "" {
		c.Provider.Name = name
	}
	if c.Provider.Name == "" {
		if os.Getenv("PERPLEXITY_API_KEY") != "" {
			c.Provider.Name = "sonar"
		} else if os.Getenv("GEMINI_API_KEY") != "" {
			c.Provider.Name = "gemini"
		}
	}
	switch strings.ToLower(c.Provider.Name) {
	case "sonar", "perplexity":
		if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
			c.Provider.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Provider.APIKey = key
		}
	}

	if path := os.Getenv("SURVEYOR_DB"); path != "" {
		c.Storage.Path = path
	}
	if raw := os.Getenv("SURVEYOR_WORKERS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Workflow.Workers = n
		}
	}
}

// GetColdTimeout returns the first-schema-use query timeout as a duration.
func (c *Config) GetColdTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.ColdTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetWarmTimeout returns the steady-state query timeout as a duration.
func (c *Config) GetWarmTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.WarmTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidProviders lists all supported query providers.
var ValidProviders = []string{"sonar", "perplexity", "gemini"}

// ValidStorageKinds lists all supported storage backends.
var ValidStorageKinds = []string{"memory", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Provider.Name != "" {
		valid := false
		for _, p := range ValidProviders {
			if strings.EqualFold(c.Provider.Name, p) {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider.Name, ValidProviders)
		}
	}

	if c.Storage.Kind != "" {
		valid := false
		for _, k := range ValidStorageKinds {
			if c.Storage.Kind == k {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid storage kind: %s (valid: %v)", c.Storage.Kind, ValidStorageKinds)
		}
	}

	if c.Workflow.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workflow.Workers)
	}
	if c.Workflow.MaxQuestions < 0 {
		return fmt.Errorf("max_questions must not be negative: %d", c.Workflow.MaxQuestions)
	}
	return nil
}
