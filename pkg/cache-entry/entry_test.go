package cacheentry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryRoundTrip(t *testing.T) {
	e := New([]byte("<h1>hello</h1>"), "text/html; charset=utf-8", time.Now())
	b, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, e.Content, got.Content)
	assert.Equal(t, e.ContentType, got.ContentType)
	assert.True(t, e.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, e.Timestamp)
}

func TestEntryWireFormat(t *testing.T) {
	e := New([]byte("cached"), "text/plain", time.UnixMilli(1700000000123))
	b, err := Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"cached","contentType":"text/plain","timestamp":1700000000123}`, string(b))
}

func TestUnmarshalWithoutTimestamp(t *testing.T) {
	got, err := Unmarshal([]byte(`{"content":"cached","contentType":"text/plain"}`))
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Content)
	assert.True(t, got.Timestamp.IsZero())
}

func TestUnmarshalMalformed(t *testing.T) {
	for _, raw := range []string{
		"plain old body",
		"<html></html>",
		`"a json string"`,
		`{"content":"missing type"}`,
		`[1,2,3]`,
	} {
		_, err := Unmarshal([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, "value %q", raw)
	}
}
