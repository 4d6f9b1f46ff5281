package bulk

import (
	"context"

	"adlib/internal/adlib"
	"adlib/internal/source"
)

func init() {
	source.Register(&BulkSource{})
}

// BulkSource pages through the async search endpoint.
type BulkSource struct{}

func (s *BulkSource) Name() string { return "bulk" }

func (s *BulkSource) Stream(ctx context.Context, opts source.Options) (*adlib.Stream, error) {
	f := adlib.NewFetcher(opts.Spec, opts.FetcherOptions())
	return f.Fetch(ctx), nil
}
