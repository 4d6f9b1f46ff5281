package export

import (
	"fmt"
	"io"

	"adlib/internal/adlib"
)

// DefaultFields are used by the table format when no fields are given.
var DefaultFields = []string{
	adlib.FieldArchiveID,
	adlib.FieldPageName,
	adlib.FieldDeliveryStart,
	adlib.FieldSnapshotURL,
}

// Writer consumes batches in order. Close flushes buffered output.
type Writer interface {
	WriteBatch(batch adlib.Batch) error
	Close() error
}

// Stats summarizes what Drain consumed.
type Stats struct {
	Batches int
	Records int
}

// Validate reports whether New would accept format and fields.
func Validate(format string, fields []string) error {
	switch format {
	case "json", "table", "count":
		return nil
	case "csv":
		if len(fields) == 0 {
			return fmt.Errorf("the --fields parameter is required for csv output")
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// New returns the Writer for format.
func New(format string, w io.Writer, fields []string) (Writer, error) {
	if err := Validate(format, fields); err != nil {
		return nil, err
	}
	switch format {
	case "csv":
		return NewCSV(w, fields), nil
	case "table":
		if len(fields) == 0 {
			fields = DefaultFields
		}
		return NewTable(w, fields), nil
	case "count":
		return NewCounter(w), nil
	default:
		return NewJSONLines(w), nil
	}
}

// Drain feeds every batch of s into w and closes w. On a write error the
// stream is abandoned, which releases its resources.
func Drain(s *adlib.Stream, w Writer) (Stats, error) {
	var stats Stats
	for batch := range s.All() {
		if err := w.WriteBatch(batch); err != nil {
			return stats, fmt.Errorf("failed to write batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Records += len(batch)
	}
	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("failed to flush output: %w", err)
	}
	return stats, nil
}

// Value renders one field of r. ad_archive_id falls back to the id embedded
// in the snapshot URL.
func Value(r adlib.AdRecord, field string) string {
	if v := r.String(field); v != "" {
		return v
	}
	if field == adlib.FieldArchiveID {
		if id, ok := r.ArchiveID(); ok {
			return id
		}
	}
	return ""
}
