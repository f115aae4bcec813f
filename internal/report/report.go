// Package report renders diagnostic reports for export and for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"braingemma/internal/types"
)

// Disclaimer closes every exported report.
const Disclaimer = "⚠  THIS IS NOT FOR CLINICAL USE — Research/Hackathon Demo"

// GeneratedLayout formats the export timestamp.
const GeneratedLayout = "1/2/2006, 3:04:05 PM"

// IsNoTumor reports whether the report found no lesion.
func IsNoTumor(resp *types.DiagnoseResponse) bool {
	return resp != nil && resp.Diagnosis == types.NoTumorDiagnosis
}

// Banner is the one-line status summary shown above a report.
func Banner(resp *types.DiagnoseResponse) string {
	if IsNoTumor(resp) {
		return "No tumor detected — full findings below"
	}
	return resp.TumorType + " — " + resp.Grade
}

// Filename names an exported report.
func Filename(now time.Time) string {
	return fmt.Sprintf("braingemma-report-%d.txt", now.UnixMilli())
}

// Export renders resp as the plain-text report offered for download.
func Export(resp *types.DiagnoseResponse, generatedAt time.Time) string {
	triage := resp.Triage
	if triage == "" {
		triage = "N/A"
	}

	lines := []string{
		"╔═══════════════════════════════════════════╗",
		"║       BRAINGEMMA DIAGNOSTIC REPORT        ║",
		"╚═══════════════════════════════════════════╝",
		"Generated : " + generatedAt.Format(GeneratedLayout),
		"Triage    : " + triage,
		"",
		"DIAGNOSIS    : " + resp.Diagnosis,
		"TUMOR TYPE   : " + resp.TumorType,
		"GRADE        : " + resp.Grade,
		fmt.Sprintf("CONFIDENCE   : %d%%", resp.Confidence),
		"LOCATION     : " + resp.Location,
		"MODALITIES   : " + strings.Join(resp.ModalitiesUsed, ", "),
		"",
		"─── CLINICAL FINDINGS ───────────────────────",
		resp.Findings,
		"",
		"─── RECOMMENDATIONS ─────────────────────────",
	}
	for i, r := range resp.Recommendations {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, r))
	}
	lines = append(lines, "", "─── DIFFERENTIAL DIAGNOSIS ──────────────────")
	for _, d := range resp.Differential {
		lines = append(lines, fmt.Sprintf("  %s: %d%%", d.Label, d.Probability))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Inference Time : %dms", resp.InferenceMS),
		"",
		Disclaimer,
	)
	return strings.Join(lines, "\n")
}

// Markdown renders resp for terminal display.
func Markdown(resp *types.DiagnoseResponse) string {
	var b strings.Builder
	b.WriteString("# BrainGemma Diagnostic Report\n\n")
	fmt.Fprintf(&b, "> %s", Banner(resp))
	if resp.Triage != "" {
		fmt.Fprintf(&b, " · **%s**", resp.Triage)
	}
	if resp.InferenceMS > 0 {
		fmt.Fprintf(&b, " · %dms", resp.InferenceMS)
	}
	b.WriteString("\n\n")

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| **Primary diagnosis** | %s |\n", escapeCell(resp.Diagnosis))
	fmt.Fprintf(&b, "| **Tumor type** | %s |\n", escapeCell(resp.TumorType))
	fmt.Fprintf(&b, "| **Confidence** | %d%% |\n", resp.Confidence)
	fmt.Fprintf(&b, "| **Grade** | %s |\n", escapeCell(resp.Grade))
	fmt.Fprintf(&b, "| **Location** | %s |\n", escapeCell(resp.Location))
	fmt.Fprintf(&b, "| **Modalities** | %s |\n\n", escapeCell(strings.Join(resp.ModalitiesUsed, ", ")))

	b.WriteString("## Clinical findings\n\n")
	b.WriteString(resp.Findings)
	b.WriteString("\n\n## Recommendations\n\n")
	for i, r := range resp.Recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\n## Differential diagnosis\n\n")
	for _, d := range resp.Differential {
		fmt.Fprintf(&b, "- `%s` %s %d%%\n", Bar(d.Probability, 20), d.Label, d.Probability)
	}
	b.WriteString("\n---\n\n")
	b.WriteString("*" + Disclaimer + "*\n")
	return b.String()
}

// Bar draws a fixed-width meter for a percentage.
func Bar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
