// Package types holds the data shapes shared across BrainGemma packages:
// the diagnostic report returned to clients and the LLM client contract.
package types

// Modality is an imaging modality accepted for upload.
type Modality string

const (
	ModalityCT  Modality = "CT"
	ModalityMRI Modality = "MRI"
)

// Triage is the urgency level attached to a report.
type Triage string

const (
	TriageUrgent  Triage = "URGENT"
	TriageSoon    Triage = "SOON"
	TriageRoutine Triage = "ROUTINE"
)

// ValidTriage reports whether s is one of the known triage levels.
func ValidTriage(s string) bool {
	switch Triage(s) {
	case TriageUrgent, TriageSoon, TriageRoutine:
		return true
	}
	return false
}

// NoTumorDiagnosis is the display name used when no lesion was found.
const NoTumorDiagnosis = "No Tumor Detected"

// DifferentialItem is one entry of the differential diagnosis list.
type DifferentialItem struct {
	Label       string `json:"label"`
	Probability int    `json:"probability"`
}

// DiagnoseResponse is the structured diagnostic report.
// Field names match the JSON contract consumed by the browser client.
type DiagnoseResponse struct {
	Diagnosis       string             `json:"diagnosis"`
	TumorType       string             `json:"tumor_type"`
	Grade           string             `json:"grade"`
	Confidence      int                `json:"confidence"`
	Location        string             `json:"location"`
	ModalitiesUsed  []string           `json:"modalities_used"`
	Triage          string             `json:"triage,omitempty"`
	Findings        string             `json:"findings"`
	Recommendations []string           `json:"recommendations"`
	Differential    []DifferentialItem `json:"differential"`
	InferenceMS     int                `json:"inference_ms"`
}

// Clone returns a deep copy of the report.
func (r *DiagnoseResponse) Clone() *DiagnoseResponse {
	if r == nil {
		return nil
	}
	c := *r
	c.ModalitiesUsed = cloneSlice(r.ModalitiesUsed)
	c.Recommendations = cloneSlice(r.Recommendations)
	c.Differential = cloneSlice(r.Differential)
	return &c
}

// cloneSlice copies s, keeping nil and empty distinct so JSON stays [] vs null.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// ChatResponse is returned by the chat endpoint.
type ChatResponse struct {
	Status         string `json:"status"`
	Response       string `json:"response"`
	ImageProcessed bool   `json:"image_processed"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status       string `json:"status"`
	ModelsLoaded bool   `json:"models_loaded"`
	Classifier   string `json:"classifier"`
	LLM          string `json:"llm"`
	LLMBaseURL   string `json:"llm_base_url"`
	Mode         string `json:"mode"`
}
