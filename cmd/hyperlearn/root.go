package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hyperlearn/internal/app"
	"hyperlearn/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hyperlearn",
	Short: "Local interactive coding tutorials with a sandboxed runner",
	Long: `HyperLearn keeps accounts, tutorials and progress in a local store and runs
tutorial code in an isolated interpreter realm, printing its console output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = app.NewLogger(level)
		if err != nil {
			return err
		}
		logger.SetOutput(os.Stderr)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// openApp bootstraps the application for one command. reg may be nil.
func openApp(ctx context.Context, reg prometheus.Registerer) (*app.App, error) {
	a, err := app.Bootstrap(ctx, cfg, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return a, nil
}

// withApp runs fn against a freshly bootstrapped application and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
