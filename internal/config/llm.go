package config

// LLM providers.
const (
	ProviderOpenAI   = "openai"   // any OpenAI-compatible server
	ProviderLMStudio = "lmstudio" // LM Studio, OpenAI-compatible
	ProviderGemini   = "gemini"
)

// DefaultGeminiModel is used when the provider switches to gemini without a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderOpenAI, ProviderLMStudio, ProviderGemini}

// LLMConfig configures the synthesis model.
// The default targets MedGemma served by LM Studio.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}
