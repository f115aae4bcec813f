package perception

import (
	"testing"
	"time"

	"braingemma/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_OpenAICompatible(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderLMStudio, "LMSTUDIO"} {
		t.Run(provider, func(t *testing.T) {
			cfg := config.DefaultConfig().LLM
			cfg.Provider = provider
			cfg.Model = "custom-model"
			cfg.BaseURL = "http://llm.internal:1234/v1/"

			client, err := NewClient(cfg, 30*time.Second)
			require.NoError(t, err)

			oc, ok := client.(*OpenAIClient)
			require.True(t, ok, "expected *OpenAIClient, got %T", client)
			assert.Equal(t, "custom-model", oc.GetModel())
			assert.Equal(t, "http://llm.internal:1234/v1", oc.baseURL)
			assert.Equal(t, 30*time.Second, oc.httpClient.Timeout)
		})
	}
}

func TestNewClient_Gemini(t *testing.T) {
	cfg := config.LLMConfig{Provider: config.ProviderGemini, APIKey: "test-key", Model: "gemini-2.5-pro"}

	client, err := NewClient(cfg, time.Minute)
	require.NoError(t, err)

	gc, ok := client.(*GeminiClient)
	require.True(t, ok, "expected *GeminiClient, got %T", client)
	assert.Equal(t, "gemini-2.5-pro", gc.GetModel())
	assert.Equal(t, time.Minute, gc.timeout)
}

func TestNewClient_GeminiRequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: config.ProviderGemini}, 0)
	assert.Error(t, err)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
