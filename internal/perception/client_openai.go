package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"braingemma/internal/logging"
)

// slowCompletion is the completion time above which a warning is logged.
const slowCompletion = 90 * time.Second

// OpenAIClient implements LLMClient for OpenAI-compatible chat completions.
// MedGemma served by LM Studio is the default target.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// DefaultOpenAIConfig returns defaults for a local LM Studio server.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "http://localhost:1234/v1",
		Model:       "medgemma-1.5-4b-it",
		Timeout:     5 * time.Minute, // local vision models are slow on CPU
		MaxTokens:   4096,
		Temperature: 0.1,
	}
}

// NewOpenAIClientWithConfig creates a new client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	return &OpenAIClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.send(ctx, "CompleteWithSystem", c.newRequest(systemPrompt, userPrompt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteWithImage sends text plus an inline image as a data URL part.
func (c *OpenAIClient) CompleteWithImage(ctx context.Context, systemPrompt, userPrompt string, image *Image) (string, error) {
	if image == nil {
		return c.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	}

	reqBody := c.newRequest(systemPrompt, "")
	reqBody.Messages[1].Content = []OpenAIContentPart{
		{Type: "text", Text: userPrompt},
		{Type: "image_url", ImageURL: &OpenAIImageURL{URL: DataURL(image)}},
	}

	resp, err := c.send(ctx, "CompleteWithImage", reqBody)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteWithTools sends a prompt with function tools and returns any tool calls.
func (c *OpenAIClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error) {
	reqBody := c.newRequest(systemPrompt, userPrompt)
	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	if len(reqBody.Tools) > 0 {
		reqBody.ToolChoice = "auto"
	}

	resp, err := c.send(ctx, "CompleteWithTools", reqBody)
	if err != nil {
		return nil, err
	}

	choice := resp.Choices[0]
	out := &LLMToolResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: choice.FinishReason,
	}
	out.Usage.InputTokens = resp.Usage.PromptTokens
	out.Usage.OutputTokens = resp.Usage.CompletionTokens
	out.Usage.TotalTokens = resp.Usage.TotalTokens

	for _, tc := range choice.Message.ToolCalls {
		input := map[string]interface{}{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				logging.PerceptionError("[OpenAI] tool call %s has malformed arguments: %v", tc.Function.Name, err)
				continue
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out, nil
}

func (c *OpenAIClient) newRequest(systemPrompt, userPrompt string) OpenAIRequest {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	return OpenAIRequest{
		Model: c.model,
		Messages: []OpenAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
}

// send performs one chat completion request. There are no retries.
func (c *OpenAIClient) send(ctx context.Context, op string, reqBody OpenAIRequest) (*OpenAIResponse, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryPerception, "[OpenAI] "+op)
	logging.PerceptionDebug("[OpenAI] %s: model=%s messages=%d tools=%d", op, c.model, len(reqBody.Messages), len(reqBody.Tools))

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.PerceptionError("[OpenAI] %s: request failed after %v: %v", op, timer.Stop(), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.PerceptionError("[OpenAI] %s: status %d", op, resp.StatusCode)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var openaiResp OpenAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if openaiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", openaiResp.Error.Message)
	}
	if len(openaiResp.Choices) == 0 {
		logging.PerceptionError("[OpenAI] %s: no completion returned", op)
		return nil, fmt.Errorf("no completion returned")
	}

	elapsed := timer.StopWithThreshold(slowCompletion)
	logging.Perception("[OpenAI] %s: completed in %v response_len=%d", op, elapsed, len(openaiResp.Choices[0].Message.Content))
	return &openaiResp, nil
}

// DataURL encodes an image as a base64 data URL.
func DataURL(image *Image) string {
	mime := image.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string {
	return c.model
}
