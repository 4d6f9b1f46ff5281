package source

import (
	"context"
	"time"

	"adlib/internal/adlib"

	"github.com/charmbracelet/log"
)

// Source is one retrieval strategy. Stream returns an error only when the
// strategy cannot start at all; failures during traversal end the stream.
type Source interface {
	Name() string
	Stream(ctx context.Context, opts Options) (*adlib.Stream, error)
}

type Options struct {
	Spec adlib.SearchSpec

	Timeout     time.Duration // per HTTP request
	MinInterval time.Duration
	MaxWait     time.Duration // browser navigation and idle wait
	ProxyURL    string
	ShowUI      bool
	BrowserBin  string

	ResumeURL string
	AfterDate string

	Logger *log.Logger
}

// FetcherOptions maps Options onto the paginated fetcher's options.
func (o Options) FetcherOptions() adlib.Options {
	return adlib.Options{
		Timeout:     o.Timeout,
		MinInterval: o.MinInterval,
		ProxyURL:    o.ProxyURL,
		Logger:      o.Logger,
	}
}
