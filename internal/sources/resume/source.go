package resume

import (
	"context"
	"fmt"

	"adlib/internal/adlib"
	"adlib/internal/source"
)

func init() {
	source.Register(&ResumeSource{})
}

// ResumeSource continues a bulk traversal from a saved cursor URL.
type ResumeSource struct{}

func (s *ResumeSource) Name() string { return "resume" }

func (s *ResumeSource) Stream(ctx context.Context, opts source.Options) (*adlib.Stream, error) {
	if opts.ResumeURL == "" {
		return nil, fmt.Errorf("a resume URL is required for the resume source")
	}
	f := adlib.NewFetcher(opts.Spec, opts.FetcherOptions())
	return f.Resume(ctx, opts.ResumeURL, opts.AfterDate), nil
}
