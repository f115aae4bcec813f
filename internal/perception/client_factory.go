package perception

import (
	"fmt"
	"strings"
	"time"

	"braingemma/internal/config"
)

// NewClient creates an LLM client from the llm config section.
// timeout is the resolved per-request budget (config.GetLLMTimeout).
func NewClient(cfg config.LLMConfig, timeout time.Duration) (LLMClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI, config.ProviderLMStudio, "":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			oc.Timeout = timeout
		}
		oc.Temperature = cfg.Temperature
		return NewOpenAIClientWithConfig(oc), nil

	case config.ProviderGemini:
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			gc.Timeout = timeout
		}
		gc.Temperature = cfg.Temperature
		return NewGeminiClientWithConfig(gc)

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %v)", cfg.Provider, config.ValidProviders)
	}
}
