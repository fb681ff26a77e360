package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	apphttp "hyperlearn/internal/http"
	"hyperlearn/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API on a loopback address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg := prometheus.NewRegistry()
		a, err := openApp(ctx, reg)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		handler := apphttp.NewHandler(a, apphttp.Config{
			RunRate:  cfg.Runner.RateLimit,
			RunBurst: cfg.Runner.Burst,
			Metrics:  metrics.Handler(reg),
			Logger:   logger,
		})
		return apphttp.Serve(ctx, addr, apphttp.NewRouter(handler), logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
