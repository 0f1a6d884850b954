// Package tracker is the telemetry agent embedded in a monitored page. It
// records load time, uncaught errors, console output, badly sized images and
// resource timing into one owned Buffer and beacons the whole buffer to the
// ingestion endpoint.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/webmonitor/pkg/beacon"
)

// ErrNoSiteToken is returned by Start when the embedding tag has no site token.
var ErrNoSiteToken = errors.New("tracker: no site ID found on embedding tag")

// Agent is the per-page composition root.
type Agent struct {
	host   Host
	sender Sender
	logger *zap.Logger
	now    func() time.Time

	interval   time.Duration
	resetEvery int

	siteID string
	buf    *Buffer
	env    *env

	console   *ConsoleInterceptor
	uninstall func()
	scheduler *Scheduler

	startOnce sync.Once
	startErr  error
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   atomic.Bool
}

type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

func WithInterval(d time.Duration) Option {
	return func(a *Agent) { a.interval = d }
}

func WithResetEvery(n int) Option {
	return func(a *Agent) { a.resetEvery = n }
}

func New(host Host, sender Sender, opts ...Option) *Agent {
	a := &Agent{
		host:       host,
		sender:     sender,
		logger:     zap.NewNop(),
		now:        time.Now,
		interval:   DefaultBeaconInterval,
		resetEvery: DefaultResetEvery,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start reads the site token, installs the detectors and starts the beacon
// scheduler. It runs once; later calls return the first result. Start never
// panics into the caller.
func (a *Agent) Start(ctx context.Context) error {
	a.startOnce.Do(func() {
		a.startErr = a.start(ctx)
	})
	return a.startErr
}

func (a *Agent) start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tracker init failed", zap.Any("panic", r))
			err = errors.New("tracker: init failed")
		}
	}()

	token, ok := a.host.ScriptAttribute(SiteTokenAttribute)
	if !ok || token == "" {
		a.logger.Error("WebMonitor: No site ID found", zap.String("page", a.host.URL()))
		return ErrNoSiteToken
	}
	a.siteID = token
	a.buf = NewBuffer(a.host.URL())
	a.env = &env{buf: a.buf, flush: a.Flush, now: a.now, logger: a.logger}

	load := &LoadTimeRecorder{env: a.env}
	capturer := &ErrorCapturer{env: a.env}
	a.console = newConsoleInterceptor(a.env)
	images := &ImageChecker{env: a.env}

	a.env.safe("loadtime", func() { load.Install(a.host) })
	a.env.safe("errors", func() { capturer.Install(a.host) })
	a.env.safe("console", func() { a.uninstall = a.console.Install(a.host.Console()) })
	a.env.safe("images", func() { images.Install(a.host) })

	a.scheduler = NewScheduler(a.interval, a.resetEvery, a.Flush, a.buf.Reset)
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		a.scheduler.Run(runCtx)
	}()

	a.logger.Info("tracker started",
		zap.String("site_id", a.siteID),
		zap.String("page", a.host.URL()),
		zap.Duration("interval", a.scheduler.interval),
	)
	return nil
}

// Flush hands the entire current buffer to the sender without waiting.
// It does nothing after Stop.
func (a *Agent) Flush() {
	if a.buf == nil || a.stopped.Load() {
		return
	}
	a.env.safe("beacon", func() {
		a.sender.Send(beacon.Batch{
			SiteID:    a.siteID,
			Timestamp: a.now().UnixMilli(),
			Data:      a.buf.Data(),
		})
	})
}

// Stop halts the scheduler and restores the host console. Captures that
// still arrive from the host are buffered but no longer sent.
func (a *Agent) Stop() {
	if a.cancel == nil {
		return
	}
	a.stopped.Store(true)
	a.cancel()
	<-a.done
	if a.uninstall != nil {
		a.uninstall()
	}
}

func (a *Agent) SiteID() string { return a.siteID }

// Buffer exposes the agent's buffer; nil before a successful Start.
func (a *Agent) Buffer() *Buffer { return a.buf }
