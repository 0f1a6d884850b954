package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/webmonitor/pkg/beacon"
)

// Sender is a best-effort asynchronous transport. Send must return without
// waiting for the network and must tolerate the process exiting right after.
type Sender interface {
	Send(batch beacon.Batch)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(beacon.Batch)

func (f SenderFunc) Send(b beacon.Batch) { f(b) }

const defaultSendTimeout = 10 * time.Second

// HTTPSender posts each batch as JSON from its own goroutine. Cookies set by
// the ingestion endpoint are kept for the sender's lifetime, like a browser
// session.
type HTTPSender struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *zap.Logger
	origin   string

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // closed when inflight drops to zero
}

type HTTPSenderOption func(*HTTPSender)

func WithHTTPClient(c *http.Client) HTTPSenderOption {
	return func(s *HTTPSender) { s.client = c }
}

func WithSendTimeout(d time.Duration) HTTPSenderOption {
	return func(s *HTTPSender) { s.timeout = d }
}

func WithSenderLogger(l *zap.Logger) HTTPSenderOption {
	return func(s *HTTPSender) { s.logger = l }
}

// WithOrigin sets the Origin and Referer headers a browser would send from
// the monitored page.
func WithOrigin(pageURL string) HTTPSenderOption {
	return func(s *HTTPSender) { s.origin = pageURL }
}

func NewHTTPSender(endpoint string, opts ...HTTPSenderOption) *HTTPSender {
	jar, _ := cookiejar.New(nil)
	s := &HTTPSender{
		endpoint: endpoint,
		client:   &http.Client{Jar: jar},
		timeout:  defaultSendTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSender) Send(batch beacon.Batch) {
	body, err := json.Marshal(batch)
	if err != nil {
		s.logger.Warn("beacon encode failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	s.mu.Unlock()

	go func() {
		defer s.done()
		s.post(body)
	}()
}

func (s *HTTPSender) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

func (s *HTTPSender) post(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("beacon request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.origin != "" {
		req.Header.Set("Referer", s.origin)
		if o := originOf(s.origin); o != "" {
			req.Header.Set("Origin", o)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("beacon delivery failed", zap.String("endpoint", s.endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	s.logger.Debug("beacon delivered", zap.Int("status", resp.StatusCode))
}

// Close waits for the deliveries in flight when it was called, or until
// ctx is done. Send stays usable during and after Close.
func (s *HTTPSender) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func originOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
