package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/webmonitor/internal/adapter/chromedp_page"
	"github.com/user/webmonitor/internal/probe"
	"github.com/user/webmonitor/internal/tracker"
	"github.com/user/webmonitor/internal/usecase"
	"github.com/user/webmonitor/pkg/config"
	"github.com/user/webmonitor/pkg/metrics"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

func main() {
	targetsPath := flag.String("targets", "targets.yaml", "path to the probe targets file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}
	targets, err := probe.Load(*targetsPath)
	if err != nil {
		logger.Fatal("could not load targets", zap.String("path", *targetsPath), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := chromedp_page.NewBrowser(cfg.PageLoadTimeout(), logger.Named("browser"))
	defer browser.Close()

	newSender := func(pageURL string) usecase.BeaconSender {
		return tracker.NewHTTPSender(cfg.IngestEndpoint,
			tracker.WithOrigin(pageURL),
			tracker.WithSenderLogger(logger.Named("sender")),
		)
	}
	reg := prometheus.NewRegistry()
	prober := usecase.NewProber(browser, newSender, metrics.New(reg), logger, usecase.ProbeConfig{
		Workers:        cfg.ProbeWorkers,
		Duration:       cfg.ProbeDuration(),
		BeaconInterval: cfg.BeaconInterval(),
	})

	logger.Info("probing targets",
		zap.Int("targets", len(targets.Targets)),
		zap.String("endpoint", cfg.IngestEndpoint),
	)
	runErr := prober.RunAll(ctx, targets.Targets)
	pushMetrics(cfg.PushgatewayURL, reg, logger)
	if runErr != nil {
		logger.Error("probe run finished with failures", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("probe run finished")
}

func pushMetrics(url string, reg *prometheus.Registry, logger *zap.Logger) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, url, metrics.ProbeJob, reg); err != nil {
		logger.Error("could not push probe metrics", zap.Error(err))
		return
	}
	logger.Info("probe metrics pushed", zap.String("pushgateway", url))
}
