package main

import (
	"fmt"
	"os"

	"braingemma/internal/config"
	"braingemma/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "braingemma",
	Short: "BrainGemma - brain tumor screening from CT and MRI scans",
	Long: `BrainGemma accepts CT and MRI brain scans plus optional clinical context
and returns a structured diagnostic report: primary diagnosis, confidence,
grade, location, findings, recommendations and a differential.

Reports come from one of three diagnosers selected by diagnosis.mode:
  - mock:     canned reports after a simulated delay
  - pipeline: vision classifier + MedGemma synthesis
  - remote:   passthrough to another BrainGemma service

Research demo. Not a medical device.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		opts := loaded.Logging.Options()
		// The TUI owns the terminal; keep logs off it unless redirected.
		if cmd.Name() == "tui" && len(opts.OutputPaths) == 0 {
			opts.OutputPaths = []string{os.DevNull}
		}
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "braingemma.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
