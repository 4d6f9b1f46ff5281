package export

import (
	"fmt"
	"io"

	"adlib/internal/adlib"
)

// Counter only counts; it prints the totals on Close.
type Counter struct {
	w     io.Writer
	stats Stats
}

func NewCounter(w io.Writer) *Counter {
	return &Counter{w: w}
}

func (c *Counter) WriteBatch(batch adlib.Batch) error {
	c.stats.Batches++
	c.stats.Records += len(batch)
	return nil
}

func (c *Counter) Close() error {
	_, err := fmt.Fprintf(c.w, "Total number of ads: %d (%d batches)\n", c.stats.Records, c.stats.Batches)
	return err
}
