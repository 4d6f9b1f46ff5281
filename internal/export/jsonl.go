package export

import (
	"encoding/json"
	"io"

	"adlib/internal/adlib"
)

// JSONLines writes one JSON object per record.
type JSONLines struct {
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLines{enc: enc}
}

func (j *JSONLines) WriteBatch(batch adlib.Batch) error {
	for _, r := range batch {
		if err := j.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (j *JSONLines) Close() error { return nil }
