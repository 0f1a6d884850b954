package chromedp_page

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/user/webmonitor/internal/repository"
	"go.uber.org/zap"
)

const userAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 WebMonitorProbe`

// Browser opens pages in one headless Chrome process, one tab per page.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewBrowser creates the allocator. Chrome itself starts with the first Open.
func NewBrowser(pageLoadTimeout time.Duration, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  pageLoadTimeout,
		logger:   logger,
	}
}

// Open loads url in a new tab and returns it once the load event fired. The
// tab lives until the returned page is closed or ctx is done.
func (b *Browser) Open(ctx context.Context, url string) (repository.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	stop := context.AfterFunc(ctx, cancelTab)

	p := newPage(tabCtx, func() {
		stop()
		cancelTab()
	}, url, b.logger.With(zap.String("url", url)))
	chromedp.ListenTarget(tabCtx, p.onEvent)

	loadCtx, cancelLoad := context.WithTimeout(tabCtx, b.timeout)
	defer cancelLoad()

	var html string
	err := chromedp.Run(loadCtx,
		runtime.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	if attrs, ok := SiteTokenFromHTML(html); ok {
		p.attrs = attrs
	}
	p.markLoaded()
	b.logger.Debug("Page loaded", zap.String("url", url), zap.Bool("has_token", p.attrs != nil))
	return p, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}

var _ repository.PageRepository = (*Browser)(nil)
