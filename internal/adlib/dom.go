package adlib

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	adLinkSelector = `a[href*="/ads/library/"]`
	// nameSelector picks the first labeled element inside the anchor's
	// enclosing div; it usually carries the advertiser's page name.
	nameSelector = `[data-testid], [aria-label], h3, span`
)

// ExtractAdLinks scans rendered HTML for ad-detail anchors and returns one
// record per anchor with page_name and ad_snapshot_url. Relative hrefs are
// resolved against base.
func ExtractAdLinks(html, base string) (Batch, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	baseURL, _ := url.Parse(base)

	batch := Batch{}
	doc.Find(adLinkSelector).Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name := collapse(a.Text())

		if parent := a.Closest("div"); parent.Length() > 0 {
			if label := collapse(parent.Find(nameSelector).First().Text()); label != "" {
				name = label
			}
		}

		batch = append(batch, AdRecord{
			FieldPageName:    name,
			FieldSnapshotURL: resolve(baseURL, href),
		})
	})
	return batch, nil
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
