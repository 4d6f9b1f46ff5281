package export

import (
	"encoding/csv"
	"io"

	"adlib/internal/adlib"
)

// CSV writes the selected fields, header first.
type CSV struct {
	w           *csv.Writer
	fields      []string
	wroteHeader bool
}

func NewCSV(w io.Writer, fields []string) *CSV {
	return &CSV{w: csv.NewWriter(w), fields: fields}
}

func (c *CSV) WriteBatch(batch adlib.Batch) error {
	if !c.wroteHeader {
		if err := c.w.Write(c.fields); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	row := make([]string, len(c.fields))
	for _, r := range batch {
		for i, f := range c.fields {
			row[i] = Value(r, f)
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close writes the header even when no batch arrived.
func (c *CSV) Close() error {
	if !c.wroteHeader {
		if err := c.w.Write(c.fields); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	c.w.Flush()
	return c.w.Error()
}
