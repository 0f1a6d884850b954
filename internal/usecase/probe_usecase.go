package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/user/webmonitor/internal/probe"
	"github.com/user/webmonitor/internal/repository"
	"github.com/user/webmonitor/internal/tracker"
	"github.com/user/webmonitor/pkg/metrics"
	"go.uber.org/zap"
)

const senderDrainTimeout = 10 * time.Second

// BeaconSender is a tracker sender that can drain its in-flight requests.
type BeaconSender interface {
	tracker.Sender
	Close(ctx context.Context) error
}

// SenderFactory builds the sender for one probed page.
type SenderFactory func(pageURL string) BeaconSender

// Prober runs the tracker agent inside real pages.
type Prober interface {
	// Probe monitors a single target for the configured duration.
	Probe(ctx context.Context, target probe.Target) error
	// RunAll probes every target using a bounded worker pool and returns the
	// joined failures.
	RunAll(ctx context.Context, targets []probe.Target) error
}

type ProbeConfig struct {
	Workers        int
	Duration       time.Duration
	BeaconInterval time.Duration
}

type probeUseCase struct {
	pages     repository.PageRepository
	newSender SenderFactory
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       ProbeConfig
}

// NewProber creates a new Prober use case.
func NewProber(pages repository.PageRepository, newSender SenderFactory, m *metrics.Metrics, logger *zap.Logger, cfg ProbeConfig) Prober {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BeaconInterval <= 0 {
		cfg.BeaconInterval = tracker.DefaultBeaconInterval
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &probeUseCase{
		pages:     pages,
		newSender: newSender,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
}

// tokenOverride serves a configured site token in place of the page's own.
type tokenOverride struct {
	tracker.Host
	token string
}

func (h tokenOverride) ScriptAttribute(name string) (string, bool) {
	if name == tracker.SiteTokenAttribute {
		return h.token, true
	}
	return h.Host.ScriptAttribute(name)
}

func (uc *probeUseCase) Probe(ctx context.Context, target probe.Target) (err error) {
	domain := "unknown"
	if u, perr := url.Parse(target.URL); perr == nil {
		domain = u.Hostname()
	}
	logger := uc.logger.With(zap.String("url", target.URL))
	start := time.Now()
	defer func() {
		uc.metrics.ProbeDuration.WithLabelValues(domain).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "failure"
		}
		uc.metrics.ProbeRuns.WithLabelValues(status).Inc()
	}()

	page, err := uc.pages.Open(ctx, target.URL)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", target.URL, err)
	}
	defer page.Close()

	var host tracker.Host = page
	if target.SiteID != "" {
		host = tokenOverride{Host: page, token: target.SiteID}
	}

	sender := uc.newSender(target.URL)
	agent := tracker.New(host, sender,
		tracker.WithLogger(logger),
		tracker.WithInterval(uc.cfg.BeaconInterval),
	)
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker on %s: %w", target.URL, err)
	}
	page.Ready()

	timer := time.NewTimer(uc.cfg.Duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	agent.Flush()
	agent.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), senderDrainTimeout)
	defer cancel()
	if err := sender.Close(drainCtx); err != nil {
		logger.Warn("beacons still in flight at shutdown", zap.Error(err))
	}
	logger.Info("probe finished", zap.String("site_id", agent.SiteID()), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (uc *probeUseCase) RunAll(ctx context.Context, targets []probe.Target) error {
	tasks := make(chan probe.Target, uc.cfg.Workers*2)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < uc.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if err := uc.Probe(ctx, t); err != nil {
					uc.logger.Error("probe failed", zap.String("url", t.URL), zap.Error(err))
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

submit:
	for _, t := range targets {
		select {
		case tasks <- t:
		case <-ctx.Done():
			break submit
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
