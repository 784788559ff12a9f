package domain

import (
	"encoding/json"
	"io"
)

// Snapshot is the backup file: every collection's records at one instant.
type Snapshot struct {
	Timestamp string                  `json:"timestamp"`
	Data      map[Collection][]Record `json:"data"`
}

// ParseSnapshot decodes a backup file.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var raw struct {
		Timestamp string                     `json:"timestamp"`
		Data      map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &ErrInvalidSnapshot{Reason: "malformed json", Err: err}
	}
	if raw.Data == nil {
		return nil, &ErrInvalidSnapshot{Reason: "missing data object"}
	}

	snap := &Snapshot{Timestamp: raw.Timestamp, Data: make(map[Collection][]Record, len(raw.Data))}
	for name, body := range raw.Data {
		var recs []Record
		if err := json.Unmarshal(body, &recs); err != nil {
			return nil, &ErrInvalidSnapshot{Reason: "collection " + name + " is not a list of objects", Err: err}
		}
		snap.Data[Collection(name)] = recs
	}
	return snap, nil
}

// Encode writes s as indented JSON.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
