package cache

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent serialized cache entries.
// It also keeps track of expiration times of cache entries.
// Providers do not interpret the stored values.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the cached value for the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	// If the cache entry has expired, the boolean should be false.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the given value in the cache under the given key.
	// The entry expires ttlSeconds from now; ttlSeconds must be positive.
	Put(ctx context.Context, key string, value []byte, ttlSeconds int) error
	// Close releases the underlying storage.
	Close() error
}

// now is the provider clock, replaced in tests.
var now = time.Now

// expiresAt returns the unix time in milliseconds ttlSeconds after t,
// saturating at the largest representable time instead of overflowing.
func expiresAt(t time.Time, ttlSeconds int) int64 {
	ms := t.UnixMilli()
	if int64(ttlSeconds) > (math.MaxInt64-ms)/1000 {
		return math.MaxInt64
	}
	return ms + int64(ttlSeconds)*1000
}

// expired reports whether an entry expiring at the given unix millisecond is gone.
func expired(expires int64) bool {
	return now().UnixMilli() >= expires
}

type memCacheEntry struct {
	expires int64
	bytes   []byte
}

// MemCache keeps entries in process memory.
// Expired entries are dropped lazily on access.
type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]memCacheEntry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]memCacheEntry),
	}
}

func (m MemCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	entry, ok := m.db[key]
	m.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if expired(entry.expires) {
		m.mutex.Lock()
		// only purge if nobody replaced the entry in the meantime
		if cur, ok := m.db[key]; ok && cur.expires == entry.expires {
			delete(m.db, key)
		}
		m.mutex.Unlock()
		return nil, false, nil
	}
	return entry.bytes, true, nil
}

func (m MemCache) Put(_ context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memCacheEntry{
		expires: expiresAt(now(), ttlSeconds),
		bytes:   stored,
	}
	return nil
}

func (m MemCache) Close() error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m MemCache) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db)
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) (SQLiteCache, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteCache{}, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteCache{}, err
		}
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache WHERE key = ?", key).Scan(&expires, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(expires) {
		return nil, false, nil
	}
	return bytes, true, nil
}

func (s SQLiteCache) Put(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO cache (key, expires, bytes) VALUES (?, ?, ?)",
		key, expiresAt(now(), ttlSeconds), value)
	return err
}

// PurgeExpired deletes all expired rows and returns how many were removed.
func (s SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE expires <= ?", now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s SQLiteCache) Close() error {
	return s.db.Close()
}
