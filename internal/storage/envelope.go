package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Cache envelopes are the persisted snapshot of a synchronized collection.
// Wire shape, one per domain key:
//
//	{"<collection>": [ ... ], "timestamp": <epoch ms>}
//
// The timestamp is the last successful fetch instant; hydration compares it
// against the freshness window before trusting the items.

// EncodeEnvelope serializes a collection snapshot.
func EncodeEnvelope[T any](name string, items []T, ts time.Time) (string, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s envelope: %w", name, err)
	}
	raw, err := json.Marshal(map[string]json.RawMessage{
		name:        itemsJSON,
		"timestamp": json.RawMessage(fmt.Sprintf("%d", ts.UnixMilli())),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeEnvelope parses a persisted snapshot. An empty raw string decodes to
// a nil collection and zero timestamp (no envelope yet).
func DecodeEnvelope[T any](name, raw string) ([]T, time.Time, error) {
	if raw == "" {
		return nil, time.Time{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse %s envelope: %w", name, err)
	}

	var items []T
	if body, ok := fields[name]; ok {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse %s items: %w", name, err)
		}
	}

	var ms int64
	if tsRaw, ok := fields["timestamp"]; ok {
		if err := json.Unmarshal(tsRaw, &ms); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse %s timestamp: %w", name, err)
		}
	}
	if ms == 0 {
		return items, time.Time{}, nil
	}
	return items, time.UnixMilli(ms), nil
}
