package adlib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrBrowserUnavailable is returned when no headless browser can be driven.
var ErrBrowserUnavailable = errors.New("headless browser unavailable")

const (
	DefaultMaxWait     = 20 * time.Second
	DefaultScrolls     = 6
	DefaultScrollPause = time.Second
	DefaultSettlePause = 2 * time.Second

	scrollScript = `() => window.scrollBy(0, document.body.scrollHeight)`
)

// InterceptedResponse is one network response seen by the page.
type InterceptedResponse struct {
	URL          string
	Status       int
	ContentType  string
	ResourceType string // lower-case CDP resource type: "xhr", "fetch", "document", ...
	ReadBody     func() ([]byte, error)
}

// Page is a browser tab that records the responses it receives from the
// moment it is opened.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	Eval(ctx context.Context, script string) error
	// Responses returns every response observed so far, in observation order.
	Responses() []InterceptedResponse
	HTML(ctx context.Context) (string, error)
	// Close releases the page and the browser behind it.
	Close() error
}

// Driver provides pages. Check must fail fast when no browser is installed.
type Driver interface {
	Check() error
	Open(ctx context.Context, userAgent string) (Page, error)
}

// PublicOptions tunes the browser-interception fetcher.
type PublicOptions struct {
	Scrolls     int
	ScrollPause time.Duration
	SettlePause time.Duration
	Logger      *log.Logger
}

// PublicFetcher harvests ad data by loading the public search page in a
// headless browser and decoding the JSON responses the page receives.
type PublicFetcher struct {
	spec   SearchSpec
	driver Driver
	opts   PublicOptions
	logger *log.Logger
}

// NewPublicFetcher creates a PublicFetcher driving pages from d.
func NewPublicFetcher(spec SearchSpec, d Driver, opts PublicOptions) *PublicFetcher {
	if opts.Scrolls <= 0 {
		opts.Scrolls = DefaultScrolls
	}
	if opts.ScrollPause <= 0 {
		opts.ScrollPause = DefaultScrollPause
	}
	if opts.SettlePause <= 0 {
		opts.SettlePause = DefaultSettlePause
	}
	return &PublicFetcher{
		spec:   spec,
		driver: d,
		opts:   opts,
		logger: loggerOrDiscard(opts.Logger),
	}
}

// Fetch checks that a browser can be driven and returns the stream. The
// browser is launched when the stream is first ranged over and closed when
// the range ends, early or not.
func (p *PublicFetcher) Fetch(ctx context.Context, maxWait time.Duration) (*Stream, error) {
	if p.driver == nil {
		return nil, ErrBrowserUnavailable
	}
	if err := p.driver.Check(); err != nil {
		if errors.Is(err, ErrBrowserUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return newStream(func(yield func(Batch) bool) EndReason {
		return p.run(ctx, maxWait, yield)
	}), nil
}

func (p *PublicFetcher) run(ctx context.Context, maxWait time.Duration, yield func(Batch) bool) EndReason {
	page, err := p.driver.Open(ctx, UserAgent)
	if err != nil {
		p.logger.Error("failed to open browser page", "err", err)
		return ReasonBrowserFailed
	}
	defer func() {
		if err := page.Close(); err != nil {
			p.logger.Debug("failed to close browser", "err", err)
		}
	}()

	target := p.spec.PublicURL()
	p.logger.Info("navigating", "url", target)
	if err := page.Navigate(ctx, target, maxWait); err != nil {
		p.logger.Error("failed to navigate", "url", target, "err", err)
		if ctx.Err() != nil {
			return ReasonCanceled
		}
		return ReasonNavigationFailed
	}

	if err := page.WaitNetworkIdle(ctx, maxWait); err != nil {
		p.logger.Debug("network did not go idle", "err", err)
	}

	for i := 0; i < p.opts.Scrolls; i++ {
		if err := page.Eval(ctx, scrollScript); err != nil {
			p.logger.Debug("scroll failed", "err", err)
		}
		if err := sleep(ctx, p.opts.ScrollPause); err != nil {
			return ReasonCanceled
		}
	}
	if err := sleep(ctx, p.opts.SettlePause); err != nil {
		return ReasonCanceled
	}

	responses := page.Responses()
	var candidates []Batch
	for _, r := range responses {
		if batch, ok := p.candidate(r); ok {
			candidates = append(candidates, batch)
		}
	}
	p.logger.Info("responses observed", "total", len(responses), "json_batches", len(candidates))

	for _, batch := range candidates {
		if !yield(batch) {
			return ReasonStopped
		}
	}
	if len(candidates) > 0 {
		return ReasonEndOfData
	}

	html, err := page.HTML(ctx)
	if err != nil {
		p.logger.Warn("failed to read rendered page", "err", err)
		return ReasonEndOfData
	}
	batch, err := ExtractAdLinks(html, target)
	if err != nil {
		p.logger.Warn("failed to scan rendered page", "err", err)
		return ReasonEndOfData
	}
	p.logger.Info("dom fallback", "links", len(batch))
	if len(batch) > 0 && !yield(batch) {
		return ReasonStopped
	}
	return ReasonEndOfData
}

// candidate decides whether a response contributes a batch. Nothing about a
// single response may abort the session, so panics are contained too.
func (p *PublicFetcher) candidate(r InterceptedResponse) (batch Batch, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Debug("response inspection panicked", "url", r.URL, "panic", rec)
			batch, ok = nil, false
		}
	}()

	isJSON := strings.Contains(strings.ToLower(r.ContentType), "json")
	rt := strings.ToLower(r.ResourceType)
	isXHR := rt == "xhr" || rt == "fetch"
	if !isJSON && !isXHR {
		return nil, false
	}
	if r.ReadBody == nil {
		return nil, false
	}

	body, err := r.ReadBody()
	if err != nil {
		p.logger.Debug("no body", "url", r.URL, "err", err)
		return nil, false
	}
	return classify(body)
}

// classify accepts {"data": [...]} objects and non-empty arrays.
func classify(body []byte) (Batch, bool) {
	v, err := decodeJSON(body)
	if err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		items, ok := t["data"].([]any)
		if !ok {
			return nil, false
		}
		return toBatch(items), true
	case []any:
		batch := toBatch(t)
		if len(batch) == 0 {
			return nil, false
		}
		return batch, true
	}
	return nil, false
}
