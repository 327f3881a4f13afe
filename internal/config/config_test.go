package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearSurveyorEnv blanks every variable applyEnvOverrides reads, so a
// developer's shell cannot leak into assertions.
func clearSurveyorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SURVEYOR_PROVIDER", "")
	t.Setenv("PERPLEXITY_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SURVEYOR_DB", "")
	t.Setenv("SURVEYOR_WORKERS", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.Provider.Name, "provider is detected, not defaulted")
	assert.Equal(t, "60s", cfg.Provider.ColdTimeout)
	assert.Equal(t, "30s", cfg.Provider.WarmTimeout)
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.Equal(t, filepath.Join(".surveyor", "answers.db"), cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Workflow.Workers)
	assert.False(t, cfg.Logging.Debug)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	clearSurveyorEnv(t)

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file merges over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
provider:
  name: gemini
  model: gemini-2.5-flash
  cold_timeout: 90s
storage:
  kind: memory
workflow:
  workers: 5
logging:
  debug: true
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gemini", cfg.Provider.Name)
		assert.Equal(t, "gemini-2.5-flash", cfg.Provider.Model)
		assert.Equal(t, "90s", cfg.Provider.ColdTimeout)
		assert.Equal(t, "30s", cfg.Provider.WarmTimeout, "unset keys keep defaults")
		assert.Equal(t, 3, cfg.Provider.MaxRetries)
		assert.Equal(t, "memory", cfg.Storage.Kind)
		assert.Equal(t, 5, cfg.Workflow.Workers)
		assert.True(t, cfg.Logging.Debug)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})
}

func TestSaveRoundTrip(t *testing.T) {
	clearSurveyorEnv(t)

	cfg := DefaultConfig()
	cfg.Provider.Name = "sonar"
	cfg.Provider.Model = "sonar-pro"
	cfg.Storage.Path = "/tmp/answers.db"
	cfg.Workflow.MaxQuestions = 100
	cfg.Logging.Categories = map[string]bool{"api": true, "storage": false}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path), "Save creates parent directories")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDurationGetters(t *testing.T) {
	t.Run("valid durations parse", func(t *testing.T) {
		cfg := &Config{Provider: ProviderConfig{ColdTimeout: "90s", WarmTimeout: "15s"}}
		assert.Equal(t, 90*time.Second, cfg.GetColdTimeout())
		assert.Equal(t, 15*time.Second, cfg.GetWarmTimeout())
	})

	t.Run("garbage falls back", func(t *testing.T) {
		cfg := &Config{Provider: ProviderConfig{ColdTimeout: "soon", WarmTimeout: ""}}
		assert.Equal(t, 60*time.Second, cfg.GetColdTimeout())
		assert.Equal(t, 30*time.Second, cfg.GetWarmTimeout())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"known providers pass", func(c *Config) { c.Provider.Name = "Gemini" }, ""},
		{"unknown provider", func(c *Config) { c.Provider.Name = "oracle" }, "invalid provider"},
		{"unknown storage kind", func(c *Config) { c.Storage.Kind = "postgres" }, "invalid storage kind"},
		{"negative workers", func(c *Config) { c.Workflow.Workers = -1 }, "workers"},
		{"negative max questions", func(c *Config) { c.Workflow.MaxQuestions = -5 }, "max_questions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
