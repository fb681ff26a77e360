package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"hyperlearn/internal/app"
	"hyperlearn/internal/config"
	apphttp "hyperlearn/internal/http"
	"hyperlearn/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		logrus.Fatalf("setup logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	application, err := app.Bootstrap(ctx, cfg, logger, reg)
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	defer application.Close()

	handler := apphttp.NewHandler(application, apphttp.Config{
		RunRate:  cfg.Runner.RateLimit,
		RunBurst: cfg.Runner.Burst,
		Metrics:  metrics.Handler(reg),
		Logger:   logger,
	})

	if err := apphttp.Serve(ctx, cfg.Server.Addr, apphttp.NewRouter(handler), logger); err != nil {
		logger.Errorf("serve: %v", err)
	}
	logger.Info("bye")
}
