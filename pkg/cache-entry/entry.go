package cacheentry

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformed is returned when stored bytes are not a cache entry.
var ErrMalformed = errors.New("malformed cache entry")

// Entry is an immutable snapshot of an origin response.
type Entry struct {
	Content     string
	ContentType string
	// Creation time, stored with millisecond precision.
	Timestamp time.Time
}

type wireEntry struct {
	Content     *string `json:"content"`
	ContentType *string `json:"contentType"`
	Timestamp   *int64  `json:"timestamp"`
}

// New creates an entry for the given content, stamped with now.
func New(content []byte, contentType string, now time.Time) Entry {
	return Entry{
		Content:     string(content),
		ContentType: contentType,
		Timestamp:   now.Truncate(time.Millisecond),
	}
}

// Marshal encodes the entry as JSON with the timestamp as epoch milliseconds.
func Marshal(e Entry) ([]byte, error) {
	ms := e.Timestamp.UnixMilli()
	return json.Marshal(wireEntry{
		Content:     &e.Content,
		ContentType: &e.ContentType,
		Timestamp:   &ms,
	})
}

// Unmarshal decodes bytes produced by Marshal.
// Bytes that are not a JSON object carrying content and contentType
// result in ErrMalformed.
func Unmarshal(b []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(b, &w); err != nil {
		return Entry{}, errors.Join(ErrMalformed, err)
	}
	if w.Content == nil || w.ContentType == nil {
		return Entry{}, ErrMalformed
	}
	e := Entry{
		Content:     *w.Content,
		ContentType: *w.ContentType,
	}
	if w.Timestamp != nil {
		e.Timestamp = time.UnixMilli(*w.Timestamp)
	}
	return e, nil
}
