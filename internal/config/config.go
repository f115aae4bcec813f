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

// Config holds all BrainGemma configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`
	Env  string `yaml:"env"` // development | production

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// External vision classifier
	Vision VisionConfig `yaml:"vision"`

	// Which diagnoser answers /diagnose
	Diagnosis DiagnosisConfig `yaml:"diagnosis"`

	// Upload validation and storage
	Upload UploadConfig `yaml:"upload"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins"` // only enforced in production
	ReadTimeout     string   `yaml:"read_timeout"`
	WriteTimeout    string   `yaml:"write_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// VisionConfig configures the external classification service.
type VisionConfig struct {
	BaseURL string `yaml:"base_url"` // empty disables the classifier
	Timeout string `yaml:"timeout"`
}

// Diagnosis modes.
const (
	ModeMock     = "mock"
	ModePipeline = "pipeline"
	ModeRemote   = "remote"
)

// DiagnosisConfig selects and tunes the diagnoser.
type DiagnosisConfig struct {
	Mode          string `yaml:"mode"`       // mock, pipeline, remote
	MockDelay     string `yaml:"mock_delay"` // simulated inference time
	RemoteURL     string `yaml:"remote_url"` // base URL of an external /api/v1/diagnose
	RemoteTimeout string `yaml:"remote_timeout"`
	DefaultQuery  string `yaml:"default_query"`
}

// UploadConfig configures upload validation and storage.
type UploadConfig struct {
	Dir               string   `yaml:"dir"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DefaultAllowedExtensions are the scan formats accepted for upload.
var DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".dcm", ".nii", ".gz", ".bmp", ".tiff", ".tif"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "BrainGemma API",
		Env:  "development",

		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			AllowedOrigins:  []string{"https://your-frontend-domain.com"},
			ReadTimeout:     "60s",
			WriteTimeout:    "10m",
			ShutdownTimeout: "10s",
		},

		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			APIKey:      "lm-studio",
			Model:       "medgemma-1.5-4b-it",
			BaseURL:     "http://localhost:1234/v1",
			Timeout:     "5m",
			MaxTokens:   4096,
			Temperature: 0.1,
		},

		Vision: VisionConfig{
			Timeout: "60s",
		},

		Diagnosis: DiagnosisConfig{
			Mode:          ModeMock,
			MockDelay:     "2400ms",
			RemoteTimeout: "5m",
			DefaultQuery:  "Analyze this brain scan and provide a diagnostic report.",
		},

		Upload: UploadConfig{
			Dir:               "uploads",
			MaxFileSizeMB:     50,
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if env := os.Getenv("ENV"); env != "" {
		c.Env = env
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		c.Upload.Dir = dir
	}

	// LLM
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		switchesToGemini := c.LLM.Provider != ProviderGemini
		if p := os.Getenv("LLM_PROVIDER"); p != "" && p != ProviderGemini {
			switchesToGemini = false
		}
		if switchesToGemini && os.Getenv("LLM_MODEL") == "" {
			c.LLM.Model = DefaultGeminiModel
		}
		c.LLM.Provider = ProviderGemini
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if url := os.Getenv("VISION_BASE_URL"); url != "" {
		c.Vision.BaseURL = url
	}

	// Diagnosis mode: MOCK_MODE stays on unless explicitly "false".
	if mock := os.Getenv("MOCK_MODE"); mock != "" {
		if strings.EqualFold(mock, "false") {
			if c.Diagnosis.Mode == ModeMock {
				c.Diagnosis.Mode = ModePipeline
			}
		} else {
			c.Diagnosis.Mode = ModeMock
		}
	}
	if url := os.Getenv("REMOTE_DIAGNOSE_URL"); url != "" {
		c.Diagnosis.RemoteURL = url
	}
	if mode := os.Getenv("DIAGNOSIS_MODE"); mode != "" {
		c.Diagnosis.Mode = mode
	}

	if level := os.Getenv("BRAINGEMMA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxFileSize returns the upload size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Upload.MaxFileSizeMB) * 1024 * 1024
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 5*time.Minute)
}

// GetVisionTimeout returns the classifier timeout as a duration.
func (c *Config) GetVisionTimeout() time.Duration {
	return parseDuration(c.Vision.Timeout, 60*time.Second)
}

// GetMockDelay returns the simulated inference delay.
func (c *Config) GetMockDelay() time.Duration {
	return parseDuration(c.Diagnosis.MockDelay, 2400*time.Millisecond)
}

// GetRemoteTimeout returns the passthrough timeout.
func (c *Config) GetRemoteTimeout() time.Duration {
	return parseDuration(c.Diagnosis.RemoteTimeout, 5*time.Minute)
}

// GetReadTimeout returns the server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 60*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Minute)
}

// GetShutdownTimeout returns the graceful shutdown budget.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// ValidModes lists all supported diagnosis modes.
var ValidModes = []string{ModeMock, ModePipeline, ModeRemote}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidModes, c.Diagnosis.Mode) {
		return fmt.Errorf("invalid diagnosis mode: %s (valid: %v)", c.Diagnosis.Mode, ValidModes)
	}
	if c.Diagnosis.Mode == ModePipeline {
		if !contains(ValidProviders, c.LLM.Provider) {
			return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
		}
		if c.LLM.Provider == ProviderGemini && c.LLM.APIKey == "" {
			return fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
		}
	}
	if c.Diagnosis.Mode == ModeRemote && c.Diagnosis.RemoteURL == "" {
		return fmt.Errorf("remote mode requires diagnosis.remote_url")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir must be set")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
