// Package agent runs the two-phase diagnostic reasoning loop: the vision
// classifier scores the scan, then the LLM synthesises a JSON report.
package agent

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"braingemma/internal/logging"
	"braingemma/internal/perception"
	"braingemma/internal/types"
	"braingemma/internal/vision"
)

// SystemPrompt instructs the model to answer with the report JSON schema.
const SystemPrompt = `You are MedBot, an advanced, highly capable medical-grade AI assistant passing the USMLE and specializing in neuro-oncology.
You have access to a vision tool (` + "`analyze_brain_scan`" + `) to classify brain tumors from MRI scans.

CRITICAL INSTRUCTIONS:
1. ALWAYS use the ` + "`analyze_brain_scan`" + ` tool if an image path is provided.
2. The vision tool provides the primary diagnosis and a probability distribution across categories.
3. Map the tool's probability distribution to the ` + "`differential_diagnosis`" + ` JSON list.
4. For the "location" field: Look at the brain scan image provided directly. Identify the specific anatomical region where the pathology is visually present. Use precise neuroimaging terminology (e.g. "Left Temporal Lobe", "Parasagittal", "Sellar region", "Fourth Ventricle"). Do NOT use generic class-level references.
5. The vision tool DOES NOT predict tumor grade. You MUST use your neuro-oncology knowledge to provide the most typical WHO grade for the predicted tumor type. Prefix with "Typical: ".
6. Provide actionable, prioritized recommendations.
7. Add a triage urgency level: URGENT / SOON / ROUTINE.
8. Respond ONLY with valid JSON exactly matching the structure below. No explanations outside the JSON block.

JSON SCHEMA:
{
  "primary_diagnosis": "string",
  "confidence": "string (e.g., '98.6%')",
  "grade": "string (e.g., 'Typical: WHO Grade II')",
  "location": "string (specific anatomical region from visual inspection of the scan)",
  "differential_diagnosis": [
    {"condition": "string", "probability": "string"}
  ],
  "recommendations": ["string", "string"],
  "triage_urgency": "URGENT | SOON | ROUTINE"
}
`

// Fallback texts returned when the model produces nothing.
const (
	EmptySynthesis = "Error: MedGemma returned empty synthesis."
	EmptyResponse  = "Error: No response generated by MedGemma."
)

// ToolAnalyzeBrainScan is the name of the classifier tool offered to the model.
const ToolAnalyzeBrainScan = "analyze_brain_scan"

// maxToolRounds caps tool execution in the conversational path.
const maxToolRounds = 1

// AnalyzeBrainScanTool describes the classifier to the model.
var AnalyzeBrainScanTool = types.ToolDefinition{
	Name: ToolAnalyzeBrainScan,
	Description: "Useful when you need to analyze a brain scan image to detect tumors like glioma, meningioma, or pituitary. " +
		"Accepts the absolute path to the local image file.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"image_path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to the local image file.",
			},
		},
		"required": []string{"image_path"},
	},
}

// Agent couples an LLM with the vision classifier.
type Agent struct {
	llm          types.LLMClient
	classifier   vision.Classifier
	defaultQuery string
}

// New creates an agent. defaultQuery is the request text used when a
// diagnosis carries no clinical context.
func New(llm types.LLMClient, classifier vision.Classifier, defaultQuery string) *Agent {
	if classifier == nil {
		classifier = vision.Unavailable{}
	}
	return &Agent{llm: llm, classifier: classifier, defaultQuery: defaultQuery}
}

// Classifier returns the classifier the agent uses.
func (a *Agent) Classifier() vision.Classifier {
	return a.classifier
}

// Run answers query, analysing the scan at imagePath when one is given.
// The returned text has thought spans removed.
func (a *Agent) Run(ctx context.Context, query, imagePath string) (string, error) {
	if imagePath != "" {
		return a.runWithImage(ctx, query, imagePath)
	}
	return a.runConversation(ctx, query)
}

func (a *Agent) runWithImage(ctx context.Context, query, imagePath string) (string, error) {
	log := logging.FromContext(ctx, logging.CategoryDiagnose)

	log.Info("phase 1: running vision classifier on %s", filepath.Base(imagePath))
	toolResult := a.analyze(ctx, imagePath)
	log.Debug("phase 1 result: %s", truncate(toolResult, 80))

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	image := &types.Image{MIMEType: GuessMIMEType(imagePath), Data: data}

	var prompt strings.Builder
	if q := strings.TrimSpace(query); q != "" && q != a.defaultQuery {
		fmt.Fprintf(&prompt, "Clinical context: %s\n\n", q)
	}
	fmt.Fprintf(&prompt, "The vision classification tool returned the following result:\n\n%s\n\n", toolResult)
	prompt.WriteString("Visually inspect the attached brain scan image and produce your structured JSON report.")

	log.Info("phase 2: calling LLM for JSON synthesis")
	raw, err := a.llm.CompleteWithImage(ctx, SystemPrompt, prompt.String(), image)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		raw = EmptySynthesis
	}
	log.Debug("phase 2 raw: %s", truncate(raw, 120))
	return perception.CleanResponse(raw), nil
}

func (a *Agent) runConversation(ctx context.Context, query string) (string, error) {
	log := logging.FromContext(ctx, logging.CategoryDiagnose)
	final := EmptyResponse

	resp, err := a.llm.CompleteWithTools(ctx, SystemPrompt, query, []types.ToolDefinition{AnalyzeBrainScanTool})
	if err != nil {
		return "", err
	}
	if resp.Text != "" {
		final = resp.Text
	}

	transcript := query
	for round := 0; round < maxToolRounds && len(resp.ToolCalls) > 0; round++ {
		var results strings.Builder
		for _, call := range resp.ToolCalls {
			log.Info("executing tool %s", call.Name)
			fmt.Fprintf(&results, "[%s] %s\n", call.Name, a.executeTool(ctx, call))
		}
		transcript = fmt.Sprintf("%s\n\nTool results:\n%s\nUse these results to answer.", transcript, results.String())

		text, err := a.llm.CompleteWithSystem(ctx, SystemPrompt, transcript)
		if err != nil {
			return "", err
		}
		resp = &types.LLMToolResponse{Text: text}
		if text != "" {
			final = text
		}
	}
	return perception.CleanResponse(final), nil
}

func (a *Agent) executeTool(ctx context.Context, call types.ToolCall) string {
	if call.Name != ToolAnalyzeBrainScan {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
	path, _ := call.Input["image_path"].(string)
	if path == "" {
		return "Error: image_path is required"
	}
	return a.analyze(ctx, path)
}

// analyze runs the classifier; failures become text for the model.
func (a *Agent) analyze(ctx context.Context, imagePath string) string {
	pred, err := a.classifier.Classify(ctx, imagePath)
	if err != nil {
		logging.VisionWarn("classifier failed for %s: %v", filepath.Base(imagePath), err)
		return fmt.Sprintf("Error analyzing scan at %s: %v", imagePath, err)
	}
	return pred.Summary()
}

// GuessMIMEType maps a file extension to a MIME type, defaulting to JPEG.
func GuessMIMEType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "image/jpeg"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
