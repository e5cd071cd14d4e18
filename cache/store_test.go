package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenProvider struct {
	err error
}

func (b brokenProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, b.err
}

func (b brokenProvider) Put(context.Context, string, []byte, int) error {
	return b.err
}

func (b brokenProvider) Close() error { return nil }

func TestStoreAbsorbsReadErrors(t *testing.T) {
	s := NewStore(brokenProvider{err: errors.New("connection refused")}, zerolog.Nop())
	value, ok := s.Get(context.Background(), "/foo")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestStoreReportsWriteErrors(t *testing.T) {
	down := errors.New("connection refused")
	s := NewStore(brokenProvider{err: down}, zerolog.Nop())
	res := s.Put(context.Background(), "/foo", []byte("v"), 60)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, down)
	var writeErr *WriteError
	require.ErrorAs(t, res.Err, &writeErr)
	assert.Equal(t, "/foo", writeErr.Key)
	assert.Equal(t, 60, res.TTL)
}

func TestStoreRejectsNonPositiveTTL(t *testing.T) {
	m := NewMemCache()
	s := NewStore(m, zerolog.Nop())
	res := s.Put(context.Background(), "/foo", []byte("v"), 0)
	assert.ErrorIs(t, res.Err, ErrInvalidTTL)
	assert.Equal(t, 0, m.Len())
}

func TestStoreTreatsEmptyValueAsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemCache(), zerolog.Nop())
	require.True(t, s.Put(ctx, "/empty", []byte{}, 60).OK())
	_, ok := s.Get(ctx, "/empty")
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemCache(), zerolog.Nop())
	res := s.Put(ctx, "/foo", []byte("value"), 300)
	require.True(t, res.OK())
	value, ok := s.Get(ctx, "/foo")
	assert.True(t, ok)
	assert.Equal(t, "value", string(value))
}
