package adlib

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BulkEndpoint is the async search endpoint that serves JSON pages.
	BulkEndpoint = "https://www.facebook.com/ads/library/async/search_ads/"
	// PublicEndpoint is the human-facing Ads Library search page.
	PublicEndpoint = "https://www.facebook.com/ads/library/"

	// UserAgent is shared by the HTTP client and the headless browser.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// Accept mimics the header the Ads Library UI sends with its XHRs.
	Accept = "application/json, text/javascript, */*; q=0.01"

	DefaultPageLimit  = 500
	DefaultRetryLimit = 3
)

// SearchSpec describes one traversal. It is not modified after NewSearchSpec.
type SearchSpec struct {
	Term       string
	Countries  []string
	PageLimit  int
	RetryLimit int
}

// NewSearchSpec normalizes the country list (trimmed, upper-cased, de-duplicated
// in input order) and fills in defaults for non-positive limits.
func NewSearchSpec(term string, countries []string, pageLimit, retryLimit int) (SearchSpec, error) {
	seen := make(map[string]bool, len(countries))
	var codes []string
	for _, c := range countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		if len(c) != 2 {
			return SearchSpec{}, fmt.Errorf("invalid country code: %q", c)
		}
		seen[c] = true
		codes = append(codes, c)
	}
	if len(codes) == 0 {
		return SearchSpec{}, fmt.Errorf("country cannot be empty")
	}

	if term == "" {
		term = "."
	}
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}

	return SearchSpec{
		Term:       term,
		Countries:  codes,
		PageLimit:  pageLimit,
		RetryLimit: retryLimit,
	}, nil
}

func (s SearchSpec) country() string {
	return strings.Join(s.Countries, ",")
}

// BulkURL renders the first cursor for the paginated fetcher.
func (s SearchSpec) BulkURL() string {
	var sb strings.Builder
	sb.WriteString(BulkEndpoint)
	sb.WriteString("?q=" + url.QueryEscape(s.Term))
	sb.WriteString("&active_status=all")
	sb.WriteString("&ad_type=all")
	sb.WriteString("&country=" + s.country())
	sb.WriteString("&limit=" + strconv.Itoa(s.PageLimit))
	return sb.String()
}

// PublicURL renders the search page a person would open in a browser. It is
// also sent as the Referer of every bulk request.
func (s SearchSpec) PublicURL() string {
	var sb strings.Builder
	sb.WriteString(PublicEndpoint)
	sb.WriteString("?active_status=active")
	sb.WriteString("&ad_type=all")
	sb.WriteString("&country=" + s.country())
	sb.WriteString("&is_targeted_country=false")
	sb.WriteString("&media_type=all")
	sb.WriteString("&q=" + url.QueryEscape(s.Term))
	sb.WriteString("&search_type=keyword_unordered")
	return sb.String()
}

// Headers returns the fixed header set for bulk requests. A spec without
// countries (a bare resume) has no public page to refer from.
func (s SearchSpec) Headers() map[string]string {
	h := map[string]string{
		"User-Agent": UserAgent,
		"Accept":     Accept,
	}
	if len(s.Countries) > 0 {
		h["Referer"] = s.PublicURL()
	}
	return h
}
