package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is how createdAt / updatedAt are persisted.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Timestamp formats t as an ISO-8601 UTC timestamp with milliseconds.
func Timestamp(t time.Time) string { return t.UTC().Format(TimestampFormat) }

// NewID returns a random collision-resistant identifier.
func NewID() string { return uuid.NewString() }

// Record is a schemaless persisted document. Fields the typed entities do not
// know about survive every read-modify-write done through Merge.
type Record map[string]any

// ID returns the record key, or "" when absent.
func (r Record) ID() string { return r.String("id") }

// String returns a string field, formatting non-string scalars.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r overlaid with the JSON fields of v.
func (r Record) Merge(v any) (Record, error) {
	patch, err := ToRecord(v)
	if err != nil {
		return nil, err
	}
	out := r.Clone()
	for k, val := range patch {
		out[k] = val
	}
	return out, nil
}

// ToRecord encodes an entity as a Record.
func ToRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return rec, nil
}

// Decode converts a Record into an entity.
func Decode[T any](rec Record) (T, error) {
	var out T
	b, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode record %s: %w", rec.ID(), err)
	}
	return out, nil
}

// DecodeAll converts records into entities, failing on the first bad one.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
