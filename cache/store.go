package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrInvalidTTL is returned when an entry is written without a positive TTL.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// ReadError wraps a provider failure on Get.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("cache read %q: %v", e.Key, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a provider failure on Put.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("cache write %q: %v", e.Key, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// PutResult is the outcome of a best-effort cache write.
// Callers are free to ignore it.
type PutResult struct {
	Key string
	TTL int
	Err error
}

// OK reports whether the value was stored.
func (r PutResult) OK() bool { return r.Err == nil }

// Store is the cache adapter used by the proxy.
// Read failures are absorbed and reported as misses; write failures are
// returned as a PutResult.
type Store struct {
	provider CacheProvider
	log      zerolog.Logger
}

func NewStore(provider CacheProvider, logger zerolog.Logger) *Store {
	return &Store{
		provider: provider,
		log:      logger,
	}
}

// Get returns the stored value for key, or false if it is missing,
// expired, empty or could not be read.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(&ReadError{Key: key, Err: err}).Msg("Could not read from cache, treating as miss")
		return nil, false
	}
	if !ok || len(value) == 0 {
		return nil, false
	}
	return value, true
}

// Put stores value under key for ttlSeconds.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttlSeconds int) PutResult {
	res := PutResult{Key: key, TTL: ttlSeconds}
	if ttlSeconds <= 0 {
		res.Err = &WriteError{Key: key, Err: ErrInvalidTTL}
		return res
	}
	if err := s.provider.Put(ctx, key, value, ttlSeconds); err != nil {
		res.Err = &WriteError{Key: key, Err: err}
	}
	return res
}

// Close closes the underlying provider.
func (s *Store) Close() error {
	return s.provider.Close()
}
