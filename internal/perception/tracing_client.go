package perception

import (
	"context"
	"sync"
	"time"

	"braingemma/internal/logging"

	"github.com/google/uuid"
)

// Trace captures one LLM interaction. Prompts are kept only as lengths
// since they may carry clinical context.
type Trace struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Operation  string    `json:"operation"`
	Model      string    `json:"model,omitempty"`
	PromptLen  int       `json:"prompt_len"`
	HasImage   bool      `json:"has_image"`
	ToolCalls  int       `json:"tool_calls"`
	Response   string    `json:"response"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TraceStore receives completed traces.
type TraceStore interface {
	StoreTrace(trace *Trace) error
}

// MemoryTraceStore keeps the most recent traces in a ring.
type MemoryTraceStore struct {
	mu     sync.Mutex
	traces []Trace
	limit  int
}

// NewMemoryTraceStore creates a store that retains at most limit traces.
func NewMemoryTraceStore(limit int) *MemoryTraceStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryTraceStore{limit: limit}
}

// StoreTrace appends a trace, dropping the oldest when full.
func (s *MemoryTraceStore) StoreTrace(trace *Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, *trace)
	if over := len(s.traces) - s.limit; over > 0 {
		s.traces = append([]Trace(nil), s.traces[over:]...)
	}
	return nil
}

// Recent returns up to n traces, newest first.
func (s *MemoryTraceStore) Recent(n int) []Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.traces) {
		n = len(s.traces)
	}
	out := make([]Trace, 0, n)
	for i := len(s.traces) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.traces[i])
	}
	return out
}

// maxTracedResponse bounds how much of each response a trace keeps.
const maxTracedResponse = 2000

// TracingLLMClient wraps any LLMClient, logs every call and records a Trace.
type TracingLLMClient struct {
	underlying LLMClient
	store      TraceStore
}

// NewTracingLLMClient creates a tracing wrapper around an existing LLM client.
// store may be nil, in which case calls are only logged.
func NewTracingLLMClient(underlying LLMClient, store TraceStore) *TracingLLMClient {
	return &TracingLLMClient{underlying: underlying, store: store}
}

// Complete implements LLMClient.Complete with tracing.
func (tc *TracingLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return tc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.CompleteWithSystem with tracing.
func (tc *TracingLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	resp, err := tc.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	tc.record(ctx, "complete", start, len(userPrompt), false, 0, resp, err)
	return resp, err
}

// CompleteWithImage implements LLMClient.CompleteWithImage with tracing.
func (tc *TracingLLMClient) CompleteWithImage(ctx context.Context, systemPrompt, userPrompt string, image *Image) (string, error) {
	start := time.Now()
	resp, err := tc.underlying.CompleteWithImage(ctx, systemPrompt, userPrompt, image)
	tc.record(ctx, "complete_with_image", start, len(userPrompt), image != nil, 0, resp, err)
	return resp, err
}

// CompleteWithTools implements LLMClient.CompleteWithTools with tracing.
func (tc *TracingLLMClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error) {
	start := time.Now()
	resp, err := tc.underlying.CompleteWithTools(ctx, systemPrompt, userPrompt, tools)
	var text string
	var calls int
	if resp != nil {
		text = resp.Text
		calls = len(resp.ToolCalls)
	}
	tc.record(ctx, "complete_with_tools", start, len(userPrompt), false, calls, text, err)
	return resp, err
}

type modelGetter interface {
	GetModel() string
}

func (tc *TracingLLMClient) record(ctx context.Context, op string, start time.Time, promptLen int, hasImage bool, toolCalls int, response string, err error) {
	duration := time.Since(start)
	log := logging.FromContext(ctx, logging.CategoryPerception)
	if err != nil {
		log.Warn("LLM %s failed: duration=%v error=%v", op, duration, err)
	} else {
		log.Info("LLM %s completed: duration=%v response_len=%d tool_calls=%d", op, duration, len(response), toolCalls)
	}

	if tc.store == nil {
		return
	}
	if len(response) > maxTracedResponse {
		response = response[:maxTracedResponse]
	}
	trace := &Trace{
		ID:         uuid.NewString(),
		RequestID:  logging.RequestIDFromContext(ctx),
		Operation:  op,
		PromptLen:  promptLen,
		HasImage:   hasImage,
		ToolCalls:  toolCalls,
		Response:   response,
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
		Timestamp:  time.Now(),
	}
	if mg, ok := tc.underlying.(modelGetter); ok {
		trace.Model = mg.GetModel()
	}
	if err != nil {
		trace.Error = err.Error()
	}
	if storeErr := tc.store.StoreTrace(trace); storeErr != nil {
		logging.PerceptionDebug("failed to store trace: %v", storeErr)
	}
}

// GetUnderlying returns the wrapped LLM client.
func (tc *TracingLLMClient) GetUnderlying() LLMClient {
	return tc.underlying
}
