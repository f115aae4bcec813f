package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"braingemma/internal/config"
	"braingemma/internal/diagnosis"
	"braingemma/internal/logging"
	"braingemma/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchConfig bool
	servePort   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and browser front-end",
	Long: `Serves the diagnosis, chat, health and export API plus the browser page.

With --watch the config file is reloaded on change and the diagnoser and
chat agent are swapped without restarting the listener.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch", false, "Reload the config file when it changes")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	srv, err := server.New(cfg, diagnosis.Deps{})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if watchConfig {
		w := config.NewWatcher(configPath, func(next *config.Config) {
			if err := srv.Reload(next); err != nil {
				logging.BootError("reload failed: %v", err)
			}
		})
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}

// signalContext cancels on SIGINT/SIGTERM for one-shot commands.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
