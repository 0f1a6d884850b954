package tracker

import (
	"sync"
	"time"

	"github.com/user/webmonitor/pkg/beacon"
)

type fakeImage struct {
	src      string
	complete bool
	natural  beacon.Size
	display  beacon.Size
	onLoad   []func()
}

func (i *fakeImage) Src() string              { return i.src }
func (i *fakeImage) Complete() bool           { return i.complete }
func (i *fakeImage) NaturalSize() beacon.Size { return i.natural }
func (i *fakeImage) DisplaySize() beacon.Size { return i.display }
func (i *fakeImage) OnLoad(fn func())         { i.onLoad = append(i.onLoad, fn) }

func (i *fakeImage) finishLoading() {
	i.complete = true
	for _, fn := range i.onLoad {
		fn()
	}
}

type fakeHost struct {
	url       string
	attrs     map[string]string
	nav       *NavigationTiming
	resources []ResourceTiming
	images    []Image
	console   *Console

	mu          sync.Mutex
	onLoad      []func()
	onError     []func(ErrorEvent)
	onRejection []func(RejectionEvent)
	printed     []string
}

func newFakeHost(token string) *fakeHost {
	h := &fakeHost{
		url:   "https://x.test/page",
		attrs: map[string]string{},
	}
	if token != "" {
		h.attrs[SiteTokenAttribute] = token
	}
	h.console = NewConsole(func(level Level, args ...any) {
		h.mu.Lock()
		h.printed = append(h.printed, string(level)+":"+FormatArgs(args...))
		h.mu.Unlock()
	})
	return h
}

func (h *fakeHost) URL() string { return h.url }

func (h *fakeHost) ScriptAttribute(name string) (string, bool) {
	v, ok := h.attrs[name]
	return v, ok
}

func (h *fakeHost) OnLoad(fn func()) { h.onLoad = append(h.onLoad, fn) }

func (h *fakeHost) NavigationTiming() (NavigationTiming, bool) {
	if h.nav == nil {
		return NavigationTiming{}, false
	}
	return *h.nav, true
}

func (h *fakeHost) ResourceTimings() []ResourceTiming { return h.resources }

func (h *fakeHost) OnError(fn func(ErrorEvent)) { h.onError = append(h.onError, fn) }

func (h *fakeHost) OnUnhandledRejection(fn func(RejectionEvent)) {
	h.onRejection = append(h.onRejection, fn)
}

func (h *fakeHost) Console() *Console { return h.console }
func (h *fakeHost) Images() []Image   { return h.images }

func (h *fakeHost) fireLoad() {
	for _, fn := range h.onLoad {
		fn()
	}
}

func (h *fakeHost) fireError(ev ErrorEvent) {
	for _, fn := range h.onError {
		fn(ev)
	}
}

func (h *fakeHost) fireRejection(ev RejectionEvent) {
	for _, fn := range h.onRejection {
		fn(ev)
	}
}

func (h *fakeHost) printedLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.printed...)
}

// recordingSender keeps every batch it is handed.
type recordingSender struct {
	mu      sync.Mutex
	batches []beacon.Batch
}

func (s *recordingSender) Send(b beacon.Batch) {
	s.mu.Lock()
	s.batches = append(s.batches, b)
	s.mu.Unlock()
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSender) last() beacon.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[len(s.batches)-1]
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func testEnv() (*env, *int) {
	flushes := 0
	e := &env{
		buf:    NewBuffer("https://x.test/page"),
		now:    fixedClock(),
		logger: nopLogger(),
	}
	e.flush = func() { flushes++ }
	return e, &flushes
}
