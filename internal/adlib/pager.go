package adlib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultBackoffBase = time.Second
)

// Options configures the paginated fetcher.
type Options struct {
	Timeout time.Duration // per request
	// BackoffBase scales the retry delay: the pause after attempt n is
	// BackoffBase * 2^n.
	BackoffBase time.Duration
	// MinInterval is the minimum spacing between requests. Zero disables pacing.
	MinInterval time.Duration
	ProxyURL    string
	Logger      *log.Logger
}

// Fetcher follows the async endpoint's pagination cursor.
type Fetcher struct {
	spec       SearchSpec
	client     *resty.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	retryLimit int
	logger     *log.Logger
}

// NewFetcher creates a Fetcher. The spec may be the zero value when resuming
// from a saved cursor without search context.
func NewFetcher(spec SearchSpec, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeaders(spec.Headers())
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	retryLimit := spec.RetryLimit
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}

	return &Fetcher{
		spec:       spec,
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
		backoff:    opts.BackoffBase,
		retryLimit: retryLimit,
		logger:     loggerOrDiscard(opts.Logger),
	}
}

// Fetch traverses from the first bulk page of the spec.
func (f *Fetcher) Fetch(ctx context.Context) *Stream {
	return f.Pages(ctx, f.spec.BulkURL())
}

// Pages traverses from cursor, one request at a time. The stream never
// yields an empty batch and never surfaces request failures; they end it
// with a reason instead.
func (f *Fetcher) Pages(ctx context.Context, cursor string) *Stream {
	return newStream(func(yield func(Batch) bool) EndReason {
		consumed := make(map[string]bool)
		for pageNum := 1; cursor != ""; pageNum++ {
			if consumed[cursor] {
				f.logger.Warn("cursor repeated, stopping", "url", cursor)
				return ReasonEndOfData
			}
			consumed[cursor] = true

			body, reason, ok := f.get(ctx, cursor)
			if !ok {
				return reason
			}

			data, items, next, err := parsePage(body)
			if err != nil {
				f.logger.Error("failed to decode JSON", "url", cursor, "err", err, "snippet", snippet(body))
				return ReasonMalformed
			}
			if items == 0 {
				f.logger.Debug("no more data", "url", cursor, "page", pageNum)
				return ReasonEndOfData
			}

			f.logger.Debug("page fetched", "page", pageNum, "items", items, "records", len(data))
			if len(data) > 0 && !yield(data) {
				return ReasonStopped
			}
			cursor = next
		}
		return ReasonEndOfData
	})
}

// get performs the GET for one cursor with exponential backoff. The bool is
// false when the page could not be obtained; the reason says why.
func (f *Fetcher) get(ctx context.Context, cursor string) ([]byte, EndReason, bool) {
	for attempt := 1; attempt <= f.retryLimit; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, ReasonCanceled, false
		}

		res, err := f.client.R().SetContext(ctx).Get(cursor)
		switch {
		case ctx.Err() != nil:
			return nil, ReasonCanceled, false
		case err != nil:
			f.logger.Warn("request error", "attempt", attempt, "url", cursor, "err", err)
		case res.StatusCode() != http.StatusOK:
			f.logger.Warn("http error", "status", res.StatusCode(), "attempt", attempt, "url", cursor)
		default:
			return res.Body(), ReasonEndOfData, true
		}

		if attempt < f.retryLimit {
			if err := sleep(ctx, f.backoff<<attempt); err != nil {
				return nil, ReasonCanceled, false
			}
		}
	}

	f.logger.Error("giving up on page", "url", cursor, "attempts", f.retryLimit)
	return nil, ReasonRetriesExhausted, false
}

// parsePage extracts the "data" array and the "paging.next" cursor. items is
// the raw length of "data", which may exceed len(batch) when some elements
// are not objects. Valid JSON without data is the natural end of results.
func parsePage(body []byte) (batch Batch, items int, next string, err error) {
	v, err := decodeJSON(body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("invalid page body: %w", err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, 0, "", nil
	}
	data, _ := obj["data"].([]any)

	if paging, ok := obj["paging"].(map[string]any); ok {
		next, _ = paging["next"].(string)
	}
	return toBatch(data), len(data), next, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func loggerOrDiscard(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard)
}
