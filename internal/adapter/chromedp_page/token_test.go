package chromedp_page

import "testing"

func TestSiteTokenFromHTML(t *testing.T) {
	html := `<html><head>
		<script src="/vendor.js"></script>
		<script src="https://monitor.test/tracker.js" data-site-id="wm_123" async></script>
		<script data-site-id="wm_second"></script>
	</head><body></body></html>`

	attrs, ok := SiteTokenFromHTML(html)
	if !ok {
		t.Fatal("token not found")
	}
	if attrs["data-site-id"] != "wm_123" {
		t.Errorf("token = %q, want first tag's", attrs["data-site-id"])
	}
	if attrs["src"] != "https://monitor.test/tracker.js" {
		t.Errorf("src = %q", attrs["src"])
	}
	if _, ok := attrs["async"]; !ok {
		t.Error("boolean attribute missing")
	}
}

func TestSiteTokenFromHTMLWithoutSnippet(t *testing.T) {
	if _, ok := SiteTokenFromHTML(`<html><body><div data-site-id="x"></div></body></html>`); ok {
		t.Fatal("only script tags may carry the token")
	}
}
