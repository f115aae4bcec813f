package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"braingemma/cmd/braingemma/ui"
	"braingemma/internal/diagnosis"
	"braingemma/internal/types"
	"braingemma/internal/upload"

	"github.com/spf13/cobra"
)

var (
	chatImage  string
	healthAddr string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the MedGemma agent a question, optionally about a scan",
	Long: `Sends one message to the agent. With --image the scan is classified first
and MedGemma synthesizes a report from the classifier output and the image.
Without an image the agent may call the analyze_brain_scan tool itself.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query a running server's health endpoint",
	RunE:  runHealth,
}

func init() {
	chatCmd.Flags().StringVarP(&chatImage, "image", "i", "", "Scan to analyze")
	healthCmd.Flags().StringVar(&healthAddr, "addr", "", "Server base URL (default: http://localhost:<port>)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if chatImage != "" {
		f, err := upload.ReadFile(chatImage)
		if err != nil {
			return err
		}
		if err := diagnosis.PolicyFor(cfg).Validate(f); err != nil {
			return err
		}
	}

	a, err := diagnosis.NewAgent(cfg, diagnosis.Deps{})
	if err != nil {
		return err
	}
	answer, err := a.Run(ctx, strings.Join(args, " "), chatImage)
	if err != nil {
		return fmt.Errorf("MedGemma Agent Logic Failed: %w", err)
	}

	styles := ui.DefaultStyles()
	fmt.Fprintln(cmd.OutOrStdout(), styles.AgentResponse.Render(answer))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	base := healthAddr
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	var status types.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderHealth(ui.DefaultStyles(), &status))
	return nil
}
