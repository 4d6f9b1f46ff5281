package public

import (
	"context"

	"adlib/internal/adlib"
	"adlib/internal/browser"
	"adlib/internal/source"
)

func init() {
	source.Register(&PublicSource{})
}

// PublicSource loads the public search page in a headless browser.
type PublicSource struct {
	// Driver overrides the rod driver; used by tests.
	Driver adlib.Driver
}

func (s *PublicSource) Name() string { return "public" }

func (s *PublicSource) Stream(ctx context.Context, opts source.Options) (*adlib.Stream, error) {
	d := s.Driver
	if d == nil {
		d = browser.NewDriver(browser.Config{
			ProxyURL: opts.ProxyURL,
			Headless: !opts.ShowUI,
			Bin:      opts.BrowserBin,
		})
	}
	f := adlib.NewPublicFetcher(opts.Spec, d, adlib.PublicOptions{Logger: opts.Logger})
	return f.Fetch(ctx, opts.MaxWait)
}
