package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"braingemma/cmd/braingemma/ui"
	"braingemma/internal/diagnosis"
	"braingemma/internal/report"
	"braingemma/internal/session"
	"braingemma/internal/types"
	"braingemma/internal/upload"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal front-end",
	Long: `Interactive session: add scans, set clinical context, run the diagnoser
and export the report. Type "help" at the prompt for commands.`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	d, err := diagnosis.New(cfg, diagnosis.Deps{})
	if err != nil {
		return err
	}
	m := newTUIModel(cmd.Context(), session.New(), d, ui.DefaultStyles())
	defer m.cancel()
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

const tuiHelp = `commands:
  ct <path>        add a CT scan         mri <path>      add an MRI scan
  rm ct|mri <n>    remove scan n         context <text>  set clinical context
  run              run the diagnosis     export [path]   write the text report
  reset            new diagnosis         quit            exit`

// diagnosisDoneMsg carries the result of a background run.
type diagnosisDoneMsg struct {
	resp *types.DiagnoseResponse
	err  error
}

type tuiModel struct {
	ctx    context.Context
	cancel context.CancelFunc

	state     *session.State
	diagnoser diagnosis.Diagnoser
	policy    upload.Policy
	styles    ui.Styles

	input   textinput.Model
	spinner spinner.Model

	status   string
	err      error
	showHelp bool
	width    int
}

func newTUIModel(parent context.Context, state *session.State, d diagnosis.Diagnoser, styles ui.Styles) *tuiModel {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	ti := textinput.New()
	ti.Placeholder = `mri scan.png · context "58M, headaches" · run · help`
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.Body

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	policy := upload.Policy{}
	if cfg != nil {
		policy = diagnosis.PolicyFor(cfg)
	}

	return &tuiModel{
		ctx:       ctx,
		cancel:    cancel,
		state:     state,
		diagnoser: d,
		policy:    policy,
		styles:    styles,
		input:     ti,
		spinner:   sp,
		width:     80,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			return m, m.execute(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case diagnosisDoneMsg:
		switch {
		case errors.Is(msg.err, session.ErrReset):
			// Finished after a reset; the new session owns the status line.
		case msg.err != nil:
			m.err = msg.err
			m.status = ""
		default:
			m.err = nil
			m.status = fmt.Sprintf("diagnosis complete: %s", msg.resp.Diagnosis)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute runs one prompt command.
func (m *tuiModel) execute(line string) tea.Cmd {
	if line == "" {
		return nil
	}
	m.err = nil
	m.showHelp = false
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "ct", "mri":
		if rest == "" {
			m.err = fmt.Errorf("usage: %s <path>", verb)
			return nil
		}
		f, err := upload.ReadFile(rest)
		if err == nil && len(m.policy.AllowedExtensions) > 0 {
			err = m.policy.Validate(f)
		}
		if err != nil {
			m.err = err
			return nil
		}
		if strings.EqualFold(verb, "ct") {
			m.state.AddCT(f)
		} else {
			m.state.AddMRI(f)
		}
		m.status = m.state.Ready()

	case "rm":
		kind, idx, _ := strings.Cut(rest, " ")
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 1 {
			m.err = errors.New("usage: rm ct|mri <n>")
			return nil
		}
		switch strings.ToLower(kind) {
		case "ct":
			m.state.RemoveCT(n - 1)
		case "mri":
			m.state.RemoveMRI(n - 1)
		default:
			m.err = errors.New("usage: rm ct|mri <n>")
			return nil
		}
		m.status = m.state.Ready()

	case "context":
		m.state.SetContext(strings.Trim(rest, `"`))
		m.status = "clinical context set"

	case "run":
		if m.state.Loading() {
			m.err = types.ErrBusy
			return nil
		}
		m.status = "analyzing…"
		state, d, ctx := m.state, m.diagnoser, m.ctx
		return func() tea.Msg {
			resp, err := state.Run(ctx, d)
			return diagnosisDoneMsg{resp: resp, err: err}
		}

	case "export":
		resp := m.state.Results()
		if resp == nil {
			m.err = errors.New("nothing to export: run a diagnosis first")
			return nil
		}
		now := time.Now()
		path := rest
		if path == "" {
			path = report.Filename(now)
		}
		if err := os.WriteFile(path, []byte(report.Export(resp, now)), 0o644); err != nil {
			m.err = fmt.Errorf("failed to write %s: %w", path, err)
			return nil
		}
		m.status = "report written to " + path

	case "reset", "new":
		m.state.Reset()
		m.status = "new diagnosis"

	case "help", "?":
		m.showHelp = true

	case "quit", "exit", "q":
		m.cancel()
		return tea.Quit

	default:
		m.err = fmt.Errorf("unknown command %q (type help)", verb)
	}
	return nil
}

func (m *tuiModel) View() string {
	s := m.styles
	snap := m.state.Snapshot()
	width := m.width - 4
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(ui.Logo(s) + "\n\n")
	b.WriteString(s.Label.Render("CT") + "\n" + ui.FileList(s, snap.CT, -1) + "\n")
	b.WriteString(s.Label.Render("MRI") + "\n" + ui.FileList(s, snap.MRI, -1) + "\n")
	if snap.Context != "" {
		b.WriteString(s.Label.Render("CONTEXT") + " " + s.Body.Render(snap.Context) + "\n")
	}
	b.WriteString(s.RenderDivider(width) + "\n")

	if snap.Results != nil {
		b.WriteString(ui.RenderReport(s, snap.Results, width) + "\n")
	}
	if m.showHelp {
		b.WriteString(s.Muted.Render(tuiHelp) + "\n")
	}

	switch {
	case snap.Loading:
		b.WriteString(m.spinner.View() + " " + s.Muted.Render("Analyzing…") + "\n")
	case m.err != nil:
		b.WriteString(s.Error.Render("✗ "+m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(s.Success.Render("✓ "+m.status) + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(s.Footer.Render("enter: run command · esc: quit"))
	return b.String()
}
