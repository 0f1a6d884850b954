package tracker

import (
	"math"
	"net/url"

	"github.com/user/webmonitor/pkg/beacon"
	"github.com/user/webmonitor/pkg/utils"
)

const (
	maxScale = 2.0
	minScale = 0.5
)

// NeedsResize reports whether an image served at naturalWidth and rendered
// at displayWidth is more than twice too large or more than twice too small.
// Exactly 2 and 0.5 are accepted; a 0/0 image is never flagged.
func NeedsResize(naturalWidth, displayWidth float64) bool {
	scale := math.Abs(naturalWidth / displayWidth)
	return scale > maxScale || scale < minScale
}

// ImageChecker compares intrinsic and rendered image sizes.
type ImageChecker struct {
	env  *env
	base *url.URL
}

func (c *ImageChecker) Install(h Host) {
	if u, err := url.Parse(h.URL()); err == nil {
		c.base = u
	}
	observer, visible := h.(VisibilityObserver)
	for _, img := range h.Images() {
		if visible {
			observer.ObserveVisible(img, func() {
				c.env.safe("images", func() { c.watch(img) })
			})
			continue
		}
		c.watch(img)
	}
}

func (c *ImageChecker) watch(img Image) {
	if img.Complete() {
		c.check(img)
		return
	}
	img.OnLoad(func() {
		c.env.safe("images", func() { c.check(img) })
	})
}

func (c *ImageChecker) check(img Image) {
	natural := img.NaturalSize()
	display := img.DisplaySize()
	if !NeedsResize(natural.Width, display.Width) {
		return
	}
	c.env.buf.AddImageIssue(beacon.ImageIssue{
		URL:          c.resolve(img.Src()),
		OriginalSize: natural,
		DisplaySize:  display,
	})
	c.env.flush()
}

func (c *ImageChecker) resolve(src string) string {
	if c.base == nil {
		return src
	}
	abs, err := utils.ToAbsoluteURL(c.base, src)
	if err != nil {
		return src
	}
	return abs
}
