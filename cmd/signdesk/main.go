package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/app"
	"github.com/dharsanguruparan/SignDesk/internal/config"
	"github.com/dharsanguruparan/SignDesk/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "signdesk: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signdesk",
		Short: "SignDesk document and e-signature backend",
		Long: `SignDesk CLI runs the API server and intake worker, inspects and edits documents
directly against the configured store, and drives the local development stack.`,
		SilenceUsage: true,
	}
	config.BindFlags(cmd.PersistentFlags())
	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newDocsCmd(),
		newFieldsCmd(),
		newExportCmd(),
		newTemplatesCmd(),
		newStackCmd(),
	)
	return cmd
}

// setup loads configuration from the command's flags and builds a logger.
// quiet raises the level to warn for one-shot commands.
func setup(cmd *cobra.Command, quiet bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if quiet && (level == "debug" || level == "info") {
		level = "warn"
	}
	logger, err := logging.New(cfg.Environment, level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withApp runs fn against a freshly opened App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, logger, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer logger.Sync()
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return app.RunServer(cmd.Context(), cfg, logger)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the asynq file-intake worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return app.RunWorker(cmd.Context(), cfg, logger)
		},
	}
}
