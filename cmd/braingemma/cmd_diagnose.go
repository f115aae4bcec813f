package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"braingemma/internal/diagnosis"
	"braingemma/internal/report"
	"braingemma/internal/session"
	"braingemma/internal/types"
	"braingemma/internal/upload"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// Output formats for diagnose and export.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	ctPaths      []string
	mriPaths     []string
	clinicalNote string
	outputFormat string
	outputPath   string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Diagnose CT and/or MRI scans from disk",
	Long: `Runs the configured diagnoser over local scans and prints the report.

Example:
  braingemma diagnose --mri scan1.png --mri scan2.png --context "58M, 3 weeks of headaches"`,
	RunE: runDiagnose,
}

var exportCmd = &cobra.Command{
	Use:   "export [report.json]",
	Short: "Render a saved JSON report as the downloadable text report",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	diagnoseCmd.Flags().StringSliceVar(&ctPaths, "ct", nil, "CT scan file (repeatable)")
	diagnoseCmd.Flags().StringSliceVar(&mriPaths, "mri", nil, "MRI scan file (repeatable)")
	diagnoseCmd.Flags().StringVar(&clinicalNote, "context", "", "Clinical context (age, symptoms, history)")
	diagnoseCmd.Flags().StringVarP(&outputFormat, "format", "f", formatText, "Output format: text, json, markdown")
	diagnoseCmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write the report to a file instead of stdout")

	exportCmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output file (default: braingemma-report-<ms>.txt)")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	d, err := diagnosis.New(cfg, diagnosis.Deps{})
	if err != nil {
		return err
	}

	state := session.New()
	ct, err := readScans(ctPaths)
	if err != nil {
		return err
	}
	mri, err := readScans(mriPaths)
	if err != nil {
		return err
	}
	state.AddCT(ct...)
	state.AddMRI(mri...)
	state.SetContext(clinicalNote)
	if state.HasFiles() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s (mode=%s)\n", state.Ready(), d.Mode())
	}

	resp, err := state.Run(ctx, d)
	if err != nil {
		return err
	}

	out, err := renderReport(resp, outputFormat, time.Now(), outputPath == "")
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), outputPath, out)
}

func runExport(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	var resp types.DiagnoseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("invalid report JSON: %w", err)
	}
	if strings.TrimSpace(resp.Diagnosis) == "" {
		return fmt.Errorf("report has no diagnosis")
	}

	now := time.Now()
	path := outputPath
	if path == "" {
		path = report.Filename(now)
	}
	if err := writeOutput(cmd.OutOrStdout(), path, report.Export(&resp, now)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	return nil
}

func readScans(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// renderReport formats resp. Markdown is styled for a terminal when tty is set.
func renderReport(resp *types.DiagnoseResponse, format string, now time.Time, tty bool) (string, error) {
	switch strings.ToLower(format) {
	case formatText, "":
		return report.Export(resp, now), nil
	case formatJSON:
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode report: %w", err)
		}
		return string(data) + "\n", nil
	case formatMarkdown:
		md := report.Markdown(resp)
		style := glamour.WithStylePath("notty")
		if tty {
			style = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
		if err != nil {
			return md, nil
		}
		rendered, err := r.Render(md)
		if err != nil {
			return md, nil
		}
		return rendered, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: text, json, markdown)", format)
	}
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
