package cache

import (
	"encoding/json"
	"time"
)

// Entry is the envelope stored in every tier.
type Entry struct {
	Data      any
	CreatedAt time.Time
	TTL       time.Duration
	Hits      int64
}

// NewEntry wraps data with a fresh creation time and zero hits.
func NewEntry(data any, ttl time.Duration) Entry {
	return Entry{Data: data, CreatedAt: time.Now(), TTL: ttl}
}

// Valid reports whether the entry is still inside its TTL window at now.
// A non-positive TTL never expires.
func (e Entry) Valid(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt) <= e.TTL
}

// Remaining returns how much of the TTL window is left at now.
func (e Entry) Remaining(now time.Time) time.Duration {
	if e.TTL <= 0 {
		return 0
	}
	left := e.TTL - now.Sub(e.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// wireEntry is the JSON form of an Entry kept in the shared tier. The TTL
// travels in milliseconds.
type wireEntry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	TTL       int64           `json:"ttl"`
	Hits      int64           `json:"hits"`
}

func encodeEntry(e Entry) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEntry{
		Data:      data,
		CreatedAt: e.CreatedAt,
		TTL:       e.TTL.Milliseconds(),
		Hits:      e.Hits,
	})
}

// decodeEntry returns an Entry whose Data is the undecoded json.RawMessage.
func decodeEntry(raw []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return Entry{}, err
	}
	if len(w.Data) == 0 || w.CreatedAt.IsZero() {
		return Entry{}, errMalformedEntry
	}
	return Entry{
		Data:      w.Data,
		CreatedAt: w.CreatedAt,
		TTL:       time.Duration(w.TTL) * time.Millisecond,
		Hits:      w.Hits,
	}, nil
}
