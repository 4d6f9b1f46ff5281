package adlib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Field names the core reads. Everything else in a record is passed through.
const (
	FieldSnapshotURL   = "ad_snapshot_url"
	FieldDeliveryStart = "ad_delivery_start_time"
	FieldArchiveID     = "ad_archive_id"
	FieldPageName      = "page_name"
)

var archiveIDRe = regexp.MustCompile(`/\?id=([0-9]+)`)

// deliveryLayouts are tried in order; the endpoint usually sends a bare date.
var deliveryLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

// AdRecord is one result item. Its schema belongs to the remote service.
type AdRecord map[string]any

// Batch is one page or one intercepted response, in source order.
type Batch []AdRecord

// String returns the field as a string. Non-string values are rendered as JSON.
func (r AdRecord) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ArchiveID extracts the numeric archive id embedded in the snapshot URL.
func (r AdRecord) ArchiveID() (string, bool) {
	m := archiveIDRe.FindStringSubmatch(r.String(FieldSnapshotURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DeliveryStart parses the delivery start time, truncated to its calendar date.
func (r AdRecord) DeliveryStart() (time.Time, bool) {
	raw := strings.TrimSpace(r.String(FieldDeliveryStart))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range deliveryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return dateOf(t), true
		}
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// hijackPrefix guards Facebook JSON responses against script inclusion.
const hijackPrefix = "for (;;);"

// decodeJSON decodes body keeping numbers as json.Number.
func decodeJSON(body []byte) (any, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte(hijackPrefix))

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// toBatch keeps the object elements of items in order.
func toBatch(items []any) Batch {
	batch := make(Batch, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			batch = append(batch, AdRecord(m))
		}
	}
	return batch
}
