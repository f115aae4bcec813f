package perception

import (
	"time"

	"braingemma/internal/types"
)

// LLMClient defines the interface for LLM providers.
// This is an alias to types.LLMClient for use within the perception package.
type LLMClient = types.LLMClient

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition = types.ToolDefinition

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall = types.ToolCall

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse = types.LLMToolResponse

// Image is an inline image attached to a prompt.
type Image = types.Image

const defaultSystemPrompt = "You are MedBot, a medical imaging assistant. Respond in English. Be concise."

// OpenAIConfig holds configuration for an OpenAI-compatible client
// (OpenAI, LM Studio, vLLM, Ollama's /v1 endpoint).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// GeminiConfig holds configuration for Gemini client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string // empty uses the public Gemini API endpoint
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// OpenAIContentPart is one element of a multimodal message.
type OpenAIContentPart struct {
	Type     string          `json:"type"` // "text" or "image_url"
	Text     string          `json:"text,omitempty"`
	ImageURL *OpenAIImageURL `json:"image_url,omitempty"`
}

// OpenAIImageURL carries an image as a URL or data URL.
type OpenAIImageURL struct {
	URL string `json:"url"`
}

// OpenAIMessage represents a message. Content is a string or []OpenAIContentPart.
type OpenAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// OpenAITool is a function tool offered to the model.
type OpenAITool struct {
	Type     string             `json:"type"` // "function"
	Function OpenAIToolFunction `json:"function"`
}

// OpenAIToolFunction describes a callable function.
type OpenAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// OpenAIToolCall is a function call requested by the model.
type OpenAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"` // JSON-encoded
	} `json:"function"`
}

// OpenAIRequest represents the OpenAI API request.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Tools       []OpenAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

// OpenAIResponse represents the API response.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
