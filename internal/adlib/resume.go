package adlib

import (
	"context"
	"strings"
	"time"
)

// Resume continues a traversal from a saved cursor. When afterDate
// (YYYY-MM-DD) is set, each batch keeps only the records delivered on or
// after it and batches left empty are skipped. An afterDate that does not
// parse disables filtering rather than dropping data.
func (f *Fetcher) Resume(ctx context.Context, cursor, afterDate string) *Stream {
	inner := f.Pages(ctx, cursor)

	afterDate = strings.TrimSpace(afterDate)
	if afterDate == "" {
		return inner
	}
	cutoff, err := time.Parse(time.DateOnly, afterDate)
	if err != nil {
		f.logger.Warn("ignoring unparsable after-date", "after_date", afterDate, "err", err)
		return inner
	}

	return newStream(func(yield func(Batch) bool) EndReason {
		for batch := range inner.All() {
			kept := FilterSince(batch, cutoff)
			if len(kept) == 0 {
				f.logger.Debug("batch filtered out", "records", len(batch))
				continue
			}
			if !yield(kept) {
				break
			}
		}
		return inner.Reason()
	})
}

// FilterSince returns the records whose delivery start date is on or after
// cutoff. Records without a parsable date are dropped. Surviving records are
// shared with the input, not copied.
func FilterSince(batch Batch, cutoff time.Time) Batch {
	cutoff = dateOf(cutoff)
	kept := make(Batch, 0, len(batch))
	for _, r := range batch {
		start, ok := r.DeliveryStart()
		if ok && !start.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
