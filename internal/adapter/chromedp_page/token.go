package chromedp_page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/webmonitor/internal/tracker"
)

// SiteTokenFromHTML finds the first script tag carrying the site token
// attribute and returns all of that tag's attributes.
func SiteTokenFromHTML(htmlContent string) (map[string]string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, false
	}
	sel := doc.Find("script[" + tracker.SiteTokenAttribute + "]").First()
	if sel.Length() == 0 {
		return nil, false
	}
	attrs := make(map[string]string)
	for _, a := range sel.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return attrs, true
}
