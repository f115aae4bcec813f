package ui

import (
	"strings"
	"testing"

	"braingemma/internal/types"
	"braingemma/internal/upload"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("BRAINGEMMA_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when BRAINGEMMA_DARK_MODE=1")
	}

	t.Setenv("BRAINGEMMA_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when BRAINGEMMA_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black COLORFGBG background")
	}

	t.Setenv("BRAINGEMMA_DARK_MODE", "0")
	if DetectTheme().IsDark {
		t.Fatalf("BRAINGEMMA_DARK_MODE=0 should win over COLORFGBG")
	}
}

func TestFileList(t *testing.T) {
	s := NewStyles(LightTheme())
	if got := FileList(s, nil, -1); !strings.Contains(got, "(none)") {
		t.Fatalf("empty list = %q", got)
	}

	files := []upload.File{
		{Name: "axial.png", Data: make([]byte, 2048)},
		{Name: "sagittal.dcm", Data: make([]byte, 3*1000*1000)},
	}
	got := FileList(s, files, 1)
	for _, want := range []string{"axial.png", "2.0 kB", "sagittal.dcm", "3.0 MB", "› sagittal.dcm"} {
		if !strings.Contains(got, want) {
			t.Errorf("FileList missing %q in:\n%s", want, got)
		}
	}
}

func TestTriageBadge(t *testing.T) {
	s := NewStyles(DarkTheme())
	if got := s.TriageBadge(""); got != "" {
		t.Fatalf("empty triage rendered %q", got)
	}
	if got := s.TriageBadge("URGENT"); !strings.Contains(got, "URGENT") {
		t.Fatalf("badge = %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	s := NewStyles(LightTheme())
	if RenderReport(s, nil, 80) != "" {
		t.Fatal("nil report should render empty")
	}

	resp := &types.DiagnoseResponse{
		Diagnosis:       "Glioblastoma Multiforme",
		TumorType:       "Glioma",
		Grade:           "WHO Grade IV",
		Confidence:      94,
		Location:        "Right frontal lobe",
		ModalitiesUsed:  []string{"CT", "MRI"},
		Triage:          "URGENT",
		Findings:        "Ring-enhancing lesion with central necrosis.",
		Recommendations: []string{"Neurosurgical consultation"},
		Differential:    []types.DifferentialItem{{Label: "Glioblastoma", Probability: 94}},
		InferenceMS:     2400,
	}
	got := RenderReport(s, resp, 80)
	for _, want := range []string{"Glioma — WHO Grade IV", "URGENT", "2400ms", "CT, MRI", "1. Neurosurgical consultation", "Glioblastoma"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderReport missing %q", want)
		}
	}
}

func TestRenderHealth(t *testing.T) {
	got := RenderHealth(NewStyles(LightTheme()), &types.HealthStatus{
		Status: "ok", Mode: "mock", Classifier: "unavailable", LLM: "medgemma-1.5-4b-it", LLMBaseURL: "http://localhost:1234/v1",
	})
	for _, want := range []string{"ok", "mock", "unavailable", "not ready", "medgemma-1.5-4b-it @ http://localhost:1234/v1"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderHealth missing %q", want)
		}
	}
}
