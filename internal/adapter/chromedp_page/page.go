package chromedp_page

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/user/webmonitor/internal/tracker"
	"github.com/user/webmonitor/pkg/beacon"
	"go.uber.org/zap"
)

const (
	eventQueueSize    = 256
	imagePollInterval = 500 * time.Millisecond
)

const (
	navigationTimingJS = `(() => {
		const n = performance.getEntriesByType('navigation')[0];
		return n ? {startTime: n.startTime, loadEventEnd: n.loadEventEnd} : null;
	})()`
	resourceTimingJS = `performance.getEntriesByType('resource').map(r => ({
		name: r.name, initiatorType: r.initiatorType, duration: r.duration, transferSize: r.transferSize || 0
	}))`
	imagesJS = `Array.from(document.images).map(img => ({
		src: img.currentSrc || img.src, complete: img.complete,
		naturalWidth: img.naturalWidth, naturalHeight: img.naturalHeight,
		width: img.width, height: img.height
	}))`
)

// page is a loaded browser tab exposed as a tracker host. CDP events are
// queued by the listener and dispatched from a separate goroutine because
// handlers must not block the listener. Console and exception events seen
// before Ready are held and replayed in order once the agent is installed.
type page struct {
	ctx    context.Context
	close  func()
	url    string
	attrs  map[string]string
	logger *zap.Logger

	console *tracker.Console
	events  chan func()

	mu          sync.Mutex
	ready       bool
	held        []func()
	loaded      bool
	onLoad      []func()
	onError     []func(tracker.ErrorEvent)
	onRejection []func(tracker.RejectionEvent)
	images      []*image
	polling     bool

	closeOnce sync.Once
}

func newPage(ctx context.Context, closeFn func(), url string, logger *zap.Logger) *page {
	p := &page{
		ctx:    ctx,
		close:  closeFn,
		url:    url,
		logger: logger,
		events: make(chan func(), eventQueueSize),
	}
	p.console = tracker.NewConsole(func(level tracker.Level, args ...any) {
		logger.Debug("page console", zap.String("level", string(level)), zap.String("message", tracker.FormatArgs(args...)))
	})
	go p.pump()
	return p
}

func (p *page) pump() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.events:
			fn()
		}
	}
}

func (p *page) enqueue(fn func()) {
	select {
	case p.events <- fn:
	default:
		p.logger.Warn("page event queue full, dropping event")
	}
}

func (p *page) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		level, ok := consoleLevel(ev.Type)
		if !ok {
			return
		}
		args := make([]any, 0, len(ev.Args))
		for _, a := range ev.Args {
			args = append(args, remoteValue(a))
		}
		p.deliver(func() { p.console.Emit(level, args...) })
	case *runtime.EventExceptionThrown:
		errEv, rejEv := exceptionEvent(ev.ExceptionDetails)
		p.deliver(func() { p.dispatchException(errEv, rejEv) })
	}
}

// deliver dispatches a page event, or holds it until Ready.
func (p *page) deliver(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		p.enqueue(fn)
		return
	}
	if len(p.held) >= eventQueueSize {
		p.logger.Warn("too many page events before tracker start, dropping event")
		return
	}
	p.held = append(p.held, fn)
}

// Ready replays the held page events. Later events are dispatched directly.
func (p *page) Ready() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return
	}
	p.ready = true
	for _, fn := range p.held {
		p.enqueue(fn)
	}
	p.held = nil
}

func (p *page) dispatchException(errEv *tracker.ErrorEvent, rejEv *tracker.RejectionEvent) {
	p.mu.Lock()
	onError := append([]func(tracker.ErrorEvent){}, p.onError...)
	onRejection := append([]func(tracker.RejectionEvent){}, p.onRejection...)
	p.mu.Unlock()

	if errEv != nil {
		for _, fn := range onError {
			fn(*errEv)
		}
	}
	if rejEv != nil {
		for _, fn := range onRejection {
			fn(*rejEv)
		}
	}
}

func (p *page) markLoaded() {
	p.mu.Lock()
	p.loaded = true
	pending := p.onLoad
	p.onLoad = nil
	p.mu.Unlock()
	for _, fn := range pending {
		p.enqueue(fn)
	}
}

func (p *page) evaluate(expr string, res any) error {
	return chromedp.Run(p.ctx, chromedp.Evaluate(expr, res))
}

func (p *page) URL() string { return p.url }

func (p *page) ScriptAttribute(name string) (string, bool) {
	v, ok := p.attrs[name]
	return v, ok
}

func (p *page) OnLoad(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		p.enqueue(fn)
		return
	}
	p.onLoad = append(p.onLoad, fn)
}

func (p *page) NavigationTiming() (tracker.NavigationTiming, bool) {
	var nav *struct {
		StartTime    float64 `json:"startTime"`
		LoadEventEnd float64 `json:"loadEventEnd"`
	}
	if err := p.evaluate(navigationTimingJS, &nav); err != nil || nav == nil {
		return tracker.NavigationTiming{}, false
	}
	return tracker.NavigationTiming{StartTime: nav.StartTime, LoadEventEnd: nav.LoadEventEnd}, true
}

func (p *page) ResourceTimings() []tracker.ResourceTiming {
	var entries []struct {
		Name          string  `json:"name"`
		InitiatorType string  `json:"initiatorType"`
		Duration      float64 `json:"duration"`
		TransferSize  int64   `json:"transferSize"`
	}
	if err := p.evaluate(resourceTimingJS, &entries); err != nil {
		p.logger.Debug("resource timing unavailable", zap.Error(err))
		return nil
	}
	out := make([]tracker.ResourceTiming, 0, len(entries))
	for _, e := range entries {
		out = append(out, tracker.ResourceTiming(e))
	}
	return out
}

func (p *page) OnError(fn func(tracker.ErrorEvent)) {
	p.mu.Lock()
	p.onError = append(p.onError, fn)
	p.mu.Unlock()
}

func (p *page) OnUnhandledRejection(fn func(tracker.RejectionEvent)) {
	p.mu.Lock()
	p.onRejection = append(p.onRejection, fn)
	p.mu.Unlock()
}

func (p *page) Console() *tracker.Console { return p.console }

type imageSnapshot struct {
	Src           string  `json:"src"`
	Complete      bool    `json:"complete"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
}

func (p *page) snapshotImages() ([]imageSnapshot, error) {
	var snaps []imageSnapshot
	err := p.evaluate(imagesJS, &snaps)
	return snaps, err
}

func (p *page) Images() []tracker.Image {
	snaps, err := p.snapshotImages()
	if err != nil {
		p.logger.Debug("image snapshot unavailable", zap.Error(err))
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images = p.images[:0]
	out := make([]tracker.Image, 0, len(snaps))
	for i, s := range snaps {
		img := &image{page: p, index: i, snap: s}
		p.images = append(p.images, img)
		out = append(out, img)
	}
	return out
}

// pollImages refreshes image snapshots until every image with a pending
// load handler has completed or the tab is gone.
func (p *page) pollImages() {
	ticker := time.NewTicker(imagePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
		snaps, err := p.snapshotImages()
		if err != nil {
			continue
		}
		p.mu.Lock()
		waiting := 0
		for _, img := range p.images {
			if img.index < len(snaps) && img.settle(snaps[img.index]) {
				continue
			}
			if img.hasPending() {
				waiting++
			}
		}
		if waiting == 0 {
			p.polling = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

func (p *page) Close() error {
	p.closeOnce.Do(p.close)
	return nil
}

// image is a snapshot of one <img> element, refreshed by the page poller.
type image struct {
	page  *page
	index int

	mu     sync.Mutex
	snap   imageSnapshot
	onLoad []func()
}

func (i *image) Src() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snap.Src
}

func (i *image) Complete() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snap.Complete
}

func (i *image) NaturalSize() beacon.Size {
	i.mu.Lock()
	defer i.mu.Unlock()
	return beacon.Size{Width: i.snap.NaturalWidth, Height: i.snap.NaturalHeight}
}

func (i *image) DisplaySize() beacon.Size {
	i.mu.Lock()
	defer i.mu.Unlock()
	return beacon.Size{Width: i.snap.Width, Height: i.snap.Height}
}

func (i *image) OnLoad(fn func()) {
	i.mu.Lock()
	i.onLoad = append(i.onLoad, fn)
	i.mu.Unlock()

	p := i.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.polling {
		p.polling = true
		go p.pollImages()
	}
}

func (i *image) hasPending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.onLoad) > 0
}

// settle stores s and, once the image is complete, hands pending load
// handlers to the dispatcher. It reports whether the image is complete.
func (i *image) settle(s imageSnapshot) bool {
	i.mu.Lock()
	if s.Src != i.snap.Src {
		// The element list changed under us; keep the old snapshot.
		i.mu.Unlock()
		return false
	}
	i.snap = s
	pending := i.onLoad
	if s.Complete {
		i.onLoad = nil
	}
	i.mu.Unlock()

	if !s.Complete {
		return false
	}
	for _, fn := range pending {
		i.page.enqueue(fn)
	}
	return true
}
