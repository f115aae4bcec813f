package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"braingemma/internal/config"
	"braingemma/internal/logging"

	"google.golang.org/genai"
)

// GeminiClient implements LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	client          *genai.Client
	model           string
	timeout         time.Duration
	maxOutputTokens int32
	temperature     float32
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           config.DefaultGeminiModel,
		Timeout:         5 * time.Minute,
		MaxOutputTokens: 4096,
		Temperature:     0.1,
	}
}

// NewGeminiClientWithConfig creates a new Gemini client with custom config.
func NewGeminiClientWithConfig(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiConfig("").Model
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:          client,
		model:           model,
		timeout:         cfg.Timeout,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
		temperature:     float32(cfg.Temperature),
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.generate(ctx, "CompleteWithSystem", systemPrompt, []*genai.Part{genai.NewPartFromText(userPrompt)}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// CompleteWithImage sends text plus inline image bytes.
func (c *GeminiClient) CompleteWithImage(ctx context.Context, systemPrompt, userPrompt string, image *Image) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(userPrompt)}
	if image != nil {
		mime := image.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(image.Data, mime))
	}
	resp, err := c.generate(ctx, "CompleteWithImage", systemPrompt, parts, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// CompleteWithTools sends a prompt with function declarations.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error) {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	var genTools []*genai.Tool
	if len(decls) > 0 {
		genTools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.generate(ctx, "CompleteWithTools", systemPrompt, []*genai.Part{genai.NewPartFromText(userPrompt)}, genTools)
	if err != nil {
		return nil, err
	}

	out := &LLMToolResponse{Text: strings.TrimSpace(resp.Text())}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	for i, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: fc.Name, Input: fc.Args})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_calls"
	}
	return out, nil
}

func (c *GeminiClient) generate(ctx context.Context, op, systemPrompt string, parts []*genai.Part, tools []*genai.Tool) (*genai.GenerateContentResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxOutputTokens,
		Tools:             tools,
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	timer := logging.StartTimer(logging.CategoryPerception, "[Gemini] "+op)
	logging.PerceptionDebug("[Gemini] %s: model=%s parts=%d tools=%d", op, c.model, len(parts), len(tools))
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		logging.PerceptionError("[Gemini] %s: request failed after %v: %v", op, timer.Stop(), err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	logging.Perception("[Gemini] %s: completed in %v", op, timer.StopWithThreshold(slowCompletion))
	return resp, nil
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
