// Package ui provides the terminal styling for the BrainGemma CLI and TUI.
// Palette follows the browser front-end: deep navy with a teal accent.
package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"braingemma/internal/report"
	"braingemma/internal/types"
	"braingemma/internal/upload"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	// Light Mode Colors
	LightBackground = lipgloss.Color("#f4f6f8")
	LightForeground = lipgloss.Color("#0b0f14")
	LightPrimary    = lipgloss.Color("#0f766e") // Deep teal
	LightAccent     = lipgloss.Color("#0d9488")
	LightMuted      = lipgloss.Color("#6b7785")
	LightBorder     = lipgloss.Color("#d0d7de")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#0b0f14")
	DarkForeground = lipgloss.Color("#e6edf3")
	DarkPrimary    = lipgloss.Color("#2dd4bf") // Teal
	DarkAccent     = lipgloss.Color("#5eead4")
	DarkMuted      = lipgloss.Color("#8b98a5")
	DarkBorder     = lipgloss.Color("#1f2a36")
	DarkCard       = lipgloss.Color("#121922")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#f87171") // URGENT
	Warning     = lipgloss.Color("#fbbf24") // SOON
	Success     = lipgloss.Color("#34d399") // ROUTINE
	Info        = lipgloss.Color("#60a5fa")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme picks dark mode from BRAINGEMMA_DARK_MODE or a dark COLORFGBG
// background, light otherwise.
func DetectTheme() Theme {
	switch os.Getenv("BRAINGEMMA_DARK_MODE") {
	case "1", "true":
		return DarkTheme()
	case "0", "false":
		return LightTheme()
	}

	// COLORFGBG is "foreground;background"; ANSI 0-6 and 8 are dark.
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	Title    lipgloss.Style
	Label    lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Selected lipgloss.Style

	Prompt        lipgloss.Style
	AgentResponse lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Card    lipgloss.Style
	Spinner lipgloss.Style
	Meter   lipgloss.Style
	Divider lipgloss.Style
	Badge   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(theme.Background).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		// Mono-caps section labels, as on the web page.
		Label: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Selected: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		AgentResponse: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Card: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Meter: lipgloss.NewStyle().
			Foreground(theme.Primary),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Logo returns the BrainGemma wordmark
func Logo(s Styles) string {
	return s.Header.Render("BRAINGEMMA") + " " + s.Muted.Render("brain tumor screening · research demo")
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	return s.Divider.Render(strings.Repeat("─", width))
}

// TriageBadge colors a triage level. Empty triage renders nothing.
func (s Styles) TriageBadge(triage string) string {
	if triage == "" {
		return ""
	}
	color := Info
	switch types.Triage(triage) {
	case types.TriageUrgent:
		color = Destructive
	case types.TriageSoon:
		color = Warning
	case types.TriageRoutine:
		color = Success
	}
	return s.Badge.Foreground(color).Render(triage)
}

// FileList renders selected scans with human-readable sizes. cursor marks
// the highlighted row; pass -1 for none.
func FileList(s Styles, files []upload.File, cursor int) string {
	if len(files) == 0 {
		return s.Muted.Render("  (none)")
	}
	lines := make([]string, len(files))
	for i, f := range files {
		row := fmt.Sprintf("%s  %s", f.Name, humanize.Bytes(uint64(f.Size())))
		if i == cursor {
			lines[i] = s.Selected.Render("› " + row)
		} else {
			lines[i] = s.Body.Render("  " + row)
		}
	}
	return strings.Join(lines, "\n")
}

// RenderReport draws a compact report summary for the terminal.
func RenderReport(s Styles, resp *types.DiagnoseResponse, width int) string {
	if resp == nil {
		return ""
	}
	if width < 40 {
		width = 40
	}

	banner := s.Bold.Render(report.Banner(resp))
	if badge := s.TriageBadge(resp.Triage); badge != "" {
		banner += " " + badge
	}
	if resp.InferenceMS > 0 {
		banner += " " + s.Muted.Render(fmt.Sprintf("%dms", resp.InferenceMS))
	}

	field := func(label, value string) string {
		return s.Label.Render(fmt.Sprintf("%-11s", label)) + " " + s.Body.Render(value)
	}
	rows := []string{
		banner,
		"",
		field("DIAGNOSIS", resp.Diagnosis),
		field("CONFIDENCE", fmt.Sprintf("%d%% %s", resp.Confidence, s.Meter.Render(report.Bar(resp.Confidence, 20)))),
		field("GRADE", resp.Grade),
		field("LOCATION", resp.Location),
		field("MODALITIES", strings.Join(resp.ModalitiesUsed, ", ")),
		"",
		s.Label.Render("FINDINGS"),
		lipgloss.NewStyle().Width(width - 4).Render(resp.Findings),
		"",
		s.Label.Render("RECOMMENDATIONS"),
	}
	for i, r := range resp.Recommendations {
		rows = append(rows, fmt.Sprintf("  %d. %s", i+1, r))
	}
	rows = append(rows, "", s.Label.Render("DIFFERENTIAL"))
	for _, d := range resp.Differential {
		rows = append(rows, fmt.Sprintf("  %s %3d%%  %s", s.Meter.Render(report.Bar(d.Probability, 16)), d.Probability, d.Label))
	}
	return s.Card.Width(width).Render(strings.Join(rows, "\n"))
}

// RenderHealth formats a health response.
func RenderHealth(s Styles, h *types.HealthStatus) string {
	ready := s.Warning.Render("not ready")
	if h.ModelsLoaded {
		ready = s.Success.Render("ready")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("status    "), s.Success.Render(h.Status))
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("mode      "), h.Mode)
	fmt.Fprintf(&b, "%s %s (%s)\n", s.Label.Render("classifier"), h.Classifier, ready)
	fmt.Fprintf(&b, "%s %s @ %s\n", s.Label.Render("llm       "), h.LLM, h.LLMBaseURL)
	return b.String()
}
