package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "PORT", "ALLOWED_ORIGINS", "UPLOAD_DIR", "LLM_BASE_URL", "LLM_MODEL",
		"LLM_API_KEY", "LLM_PROVIDER", "GEMINI_API_KEY", "VISION_BASE_URL", "MOCK_MODE",
		"DIAGNOSIS_MODE", "REMOTE_DIAGNOSE_URL", "BRAINGEMMA_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "BrainGemma API", cfg.Name)
	assert.Equal(t, ModeMock, cfg.Diagnosis.Mode)
	assert.Empty(t, cfg.Diagnosis.RemoteURL)
	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "medgemma-1.5-4b-it", cfg.LLM.Model)
	assert.Equal(t, "lm-studio", cfg.LLM.APIKey)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSize())
	assert.Equal(t, 2400*time.Millisecond, cfg.GetMockDelay())
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "braingemma.yaml")

	cfg := DefaultConfig()
	cfg.Diagnosis.Mode = ModePipeline
	cfg.LLM.Model = "medgemma-27b"
	cfg.Upload.MaxFileSizeMB = 10
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModePipeline, loaded.Diagnosis.Mode)
	assert.Equal(t, "medgemma-27b", loaded.LLM.Model)
	assert.Equal(t, 10, loaded.Upload.MaxFileSizeMB)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "braingemma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: production\nserver:\n  port: 9000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "medgemma-1.5-4b-it", cfg.LLM.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown mode", func(c *Config) { c.Diagnosis.Mode = "oracle" }, false},
		{"pipeline unknown provider", func(c *Config) {
			c.Diagnosis.Mode = ModePipeline
			c.LLM.Provider = "zai"
		}, false},
		{"pipeline gemini without key", func(c *Config) {
			c.Diagnosis.Mode = ModePipeline
			c.LLM.Provider = ProviderGemini
			c.LLM.APIKey = ""
		}, false},
		{"remote without url", func(c *Config) {
			c.Diagnosis.Mode = ModeRemote
			c.Diagnosis.RemoteURL = ""
		}, false},
		{"remote with default url", func(c *Config) { c.Diagnosis.Mode = ModeRemote }, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, false},
		{"zero size limit", func(c *Config) { c.Upload.MaxFileSizeMB = 0 }, false},
		{"empty upload dir", func(c *Config) { c.Upload.Dir = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	cfg.Diagnosis.MockDelay = "-1s"
	assert.Equal(t, 5*time.Minute, cfg.GetLLMTimeout())
	assert.Equal(t, 2400*time.Millisecond, cfg.GetMockDelay())

	cfg.Diagnosis.MockDelay = "0s"
	assert.Equal(t, time.Duration(0), cfg.GetMockDelay())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"vision": false}}
	assert.False(t, lc.IsCategoryEnabled("vision"))
	assert.True(t, lc.IsCategoryEnabled("api"))

	var empty LoggingConfig
	assert.True(t, empty.IsCategoryEnabled("anything"))
	assert.Equal(t, "info", DefaultConfig().Logging.Options().Level)
}
