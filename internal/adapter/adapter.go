// Package adapter turns the raw text produced by the synthesis model into a
// DiagnoseResponse. It tolerates prose around the JSON, percentage strings,
// raw classifier class names and missing fields, and never fails.
package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"braingemma/internal/types"
)

var diagnosisNames = map[string]string{
	"glioma":            "High-Grade Glioma",
	"meningioma":        "Meningioma",
	"pituitary":         "Pituitary Adenoma",
	"notumor":           types.NoTumorDiagnosis,
	"no tumor":          types.NoTumorDiagnosis,
	"no tumor detected": types.NoTumorDiagnosis,
}

var tumorTypeNames = map[string]string{
	"glioma":            "Glioblastoma Multiforme (GBM)",
	"meningioma":        "Typical Meningioma",
	"pituitary":         "Pituitary Adenoma",
	"notumor":           "—",
	"no tumor":          "—",
	"no tumor detected": "—",
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceSpan   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Fallback values for fields the model left out.
const (
	defaultRecommendation = "Clinical correlation advised. Consult a specialist."
	gradePrefix           = "Typical: "
)

// NormalizeDiagnosis maps classifier class names to display names.
// Unknown names are title-cased.
func NormalizeDiagnosis(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := diagnosisNames[key]; ok {
		return name
	}
	return titleCase(strings.TrimSpace(raw))
}

// NormalizeTumorType maps classifier class names to tumour type names.
// Unknown names are returned trimmed.
func NormalizeTumorType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := tumorTypeNames[key]; ok {
		return name
	}
	return strings.TrimSpace(raw)
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127
		switch {
		case isLetter && !prevLetter:
			b.WriteString(strings.ToUpper(string(r)))
		case isLetter:
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}

// ParsePercent converts "94.2%", 94.2 or "94" to 94. Anything unparsable,
// non-finite or beyond ±1e9 is 0.
func ParsePercent(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return truncPercent(n)
	case int:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return truncPercent(f)
	case nil:
		return 0
	case bool:
		if n {
			return 1
		}
		return 0
	}
	text := strings.TrimSpace(strings.ReplaceAll(fmt.Sprint(v), "%", ""))
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return truncPercent(f)
}

const maxPercentMagnitude = 1e9

func truncPercent(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxPercentMagnitude {
		return 0
	}
	return int(f)
}

// ExtractJSON finds a JSON object in text: the whole text, then a fenced
// code block, then the widest {...} span. It returns an empty map when
// nothing parses.
func ExtractJSON(text string) map[string]interface{} {
	if obj, ok := decodeObject(text); ok {
		return obj
	}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if obj, ok := decodeObject(m[1]); ok {
			return obj
		}
	}
	if m := braceSpan.FindString(text); m != "" {
		if obj, ok := decodeObject(m); ok {
			return obj
		}
	}
	return map[string]interface{}{}
}

func decodeObject(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Adapt parses the model output into a report. It never fails: missing or
// malformed fields fall back to defaults.
func Adapt(raw string, modalities []string, inferenceMS int) *types.DiagnoseResponse {
	data := ExtractJSON(raw)

	rawDiag := stringField(data, "Unknown", "primary_diagnosis")
	diagnosis := NormalizeDiagnosis(rawDiag)
	confidence := ParsePercent(data["confidence"])

	grade := strings.TrimSpace(strings.ReplaceAll(stringField(data, "N/A", "grade"), gradePrefix, ""))

	triage := strings.ToUpper(strings.TrimSpace(stringField(data, string(types.TriageRoutine), "triage_urgency", "triage")))
	if !types.ValidTriage(triage) {
		triage = string(types.TriageRoutine)
	}

	findings := stringField(data, "", "findings", "clinical_findings")
	if findings == "" {
		findings = fmt.Sprintf(
			"AI vision analysis identified %s with %d%% confidence. "+
				"Refer to clinical context and imaging for detailed findings.",
			strings.ToLower(diagnosis), confidence)
	}

	resp := &types.DiagnoseResponse{
		Diagnosis:       diagnosis,
		TumorType:       NormalizeTumorType(rawDiag),
		Grade:           grade,
		Confidence:      confidence,
		Location:        stringField(data, "N/A", "location"),
		ModalitiesUsed:  modalities,
		Triage:          triage,
		Findings:        findings,
		Recommendations: recommendations(data["recommendations"]),
		Differential:    differential(data),
		InferenceMS:     inferenceMS,
	}
	if len(resp.ModalitiesUsed) == 0 {
		resp.ModalitiesUsed = []string{string(types.ModalityMRI)}
	}
	if len(resp.Differential) == 0 {
		resp.Differential = []types.DifferentialItem{{Label: diagnosis, Probability: confidence}}
	}
	return resp
}

// stringField returns the first present key as a string. Present but
// non-string values are formatted; absent keys yield def.
func stringField(data map[string]interface{}, def string, keys ...string) string {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}

func recommendations(v interface{}) []string {
	var recs []string
	switch r := v.(type) {
	case string:
		if strings.TrimSpace(r) != "" {
			recs = []string{r}
		}
	case []interface{}:
		for _, item := range r {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				recs = append(recs, s)
			} else if item != nil && !ok {
				recs = append(recs, fmt.Sprint(item))
			}
		}
	}
	if len(recs) == 0 {
		recs = []string{defaultRecommendation}
	}
	return recs
}

func differential(data map[string]interface{}) []types.DifferentialItem {
	raw, ok := data["differential_diagnosis"]
	if !ok {
		raw = data["differential"]
	}
	list, _ := raw.([]interface{})

	var out []types.DifferentialItem
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		label := stringField(obj, "Unknown", "condition", "label")
		var prob interface{}
		if p, ok := obj["probability"]; ok {
			prob = p
		} else {
			prob = obj["prob"]
		}
		out = append(out, types.DifferentialItem{Label: label, Probability: ParsePercent(prob)})
	}
	return out
}
