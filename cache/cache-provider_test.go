package cache

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setClock pins the provider clock for the duration of the test.
func setClock(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	clock := at
	now = func() time.Time { return clock }
	t.Cleanup(func() { now = time.Now })
	return &clock
}

func openProviders(t *testing.T) map[string]CacheProvider {
	t.Helper()
	dir := t.TempDir()
	providers := map[string]CacheProvider{
		ProviderMemory: NewMemCache(),
	}

	sqlite, err := NewSQLiteCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	providers[ProviderSQLite] = sqlite

	boltCache, err := NewBoltCache(filepath.Join(dir, "cache.bbolt"))
	require.NoError(t, err)
	providers[ProviderBolt] = boltCache

	level, err := NewLevelDBCache(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)
	providers[ProviderLevelDB] = level

	if addr := os.Getenv("VALKEY_ADDR"); addr != "" {
		vk, err := NewValkeyCache(ValkeyConfig{Address: addr})
		require.NoError(t, err)
		providers[ProviderValkey] = vk
	}

	t.Cleanup(func() {
		for _, p := range providers {
			p.Close()
		}
	})
	return providers
}

func TestProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			key := "/round-trip/" + name
			require.NoError(t, p.Put(ctx, key, []byte(`{"content":"x"}`), 60))
			got, ok, err := p.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"content":"x"}`, string(got))
		})
	}
}

func TestProviderMissingKey(t *testing.T) {
	ctx := context.Background()
	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			got, ok, err := p.Get(ctx, "/never-written/"+name)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestProviderPutReplaces(t *testing.T) {
	ctx := context.Background()
	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			key := "/replace/" + name
			require.NoError(t, p.Put(ctx, key, []byte("first"), 60))
			require.NoError(t, p.Put(ctx, key, []byte("second"), 60))
			got, ok, err := p.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "second", string(got))
		})
	}
}

func TestProviderRejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Put(ctx, "/ttl/"+name, []byte("x"), 0), ErrInvalidTTL)
			assert.ErrorIs(t, p.Put(ctx, "/ttl/"+name, []byte("x"), -1), ErrInvalidTTL)
		})
	}
}

func TestProviderExpiry(t *testing.T) {
	ctx := context.Background()
	providers := openProviders(t)
	// valkey expires on its own clock
	delete(providers, ProviderValkey)
	clock := setClock(t, time.Unix(1_700_000_000, 0))

	for name, p := range providers {
		require.NoError(t, p.Put(ctx, "/expiring", []byte("v"), 10), name)
	}

	*clock = clock.Add(9 * time.Second)
	for name, p := range providers {
		_, ok, err := p.Get(ctx, "/expiring")
		require.NoError(t, err, name)
		assert.True(t, ok, "%s: entry gone before its ttl", name)
	}

	*clock = clock.Add(time.Second)
	for name, p := range providers {
		_, ok, err := p.Get(ctx, "/expiring")
		require.NoError(t, err, name)
		assert.False(t, ok, "%s: entry served after its ttl", name)
	}
}

func TestProviderSubSecondWriteKeepsFullTTL(t *testing.T) {
	ctx := context.Background()
	providers := openProviders(t)
	delete(providers, ProviderValkey)
	clock := setClock(t, time.Unix(1_700_000_000, 999*int64(time.Millisecond)))

	for name, p := range providers {
		require.NoError(t, p.Put(ctx, "/one-second", []byte("v"), 1), name)
	}

	*clock = clock.Add(2 * time.Millisecond)
	for name, p := range providers {
		_, ok, err := p.Get(ctx, "/one-second")
		require.NoError(t, err, name)
		assert.True(t, ok, "%s: entry gone before its ttl", name)
	}

	*clock = clock.Add(998 * time.Millisecond)
	for name, p := range providers {
		_, ok, err := p.Get(ctx, "/one-second")
		require.NoError(t, err, name)
		assert.False(t, ok, "%s: entry served after its ttl", name)
	}
}

func TestExpiresAt(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_500)
	assert.Equal(t, int64(1_700_000_010_500), expiresAt(at, 10))
	assert.Equal(t, int64(math.MaxInt64), expiresAt(at, math.MaxInt))
}

func TestProviderHugeTTLDoesNotOverflow(t *testing.T) {
	ctx := context.Background()
	providers := openProviders(t)
	delete(providers, ProviderValkey)
	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put(ctx, "/forever", []byte("v"), math.MaxInt))
			_, ok, err := p.Get(ctx, "/forever")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	providers := openProviders(t)
	clock := setClock(t, time.Unix(1_700_000_000, 0))

	for name, p := range providers {
		purger, ok := p.(Purger)
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put(ctx, "/short", []byte("v"), 5))
			require.NoError(t, p.Put(ctx, "/long", []byte("v"), 500))
			*clock = clock.Add(10 * time.Second)

			purged, err := purger.PurgeExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), purged)

			_, ok, err := p.Get(ctx, "/long")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemCacheDropsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := setClock(t, time.Unix(1_700_000_000, 0))
	m := NewMemCache()
	require.NoError(t, m.Put(ctx, "/a", []byte("v"), 1))
	assert.Equal(t, 1, m.Len())

	*clock = clock.Add(2 * time.Second)
	_, ok, err := m.Get(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestDecodeRecord(t *testing.T) {
	_, _, err := decodeRecord([]byte{1, 2, 3})
	assert.ErrorIs(t, err, errCorrupt)

	value, expires, err := decodeRecord(encodeRecord([]byte("abc"), 42))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))
	assert.Equal(t, int64(42), expires)
}

func TestOpenUnknownProvider(t *testing.T) {
	_, err := Open(Options{Provider: "floppy"})
	assert.Error(t, err)

	p, err := Open(Options{Provider: ProviderMemory})
	require.NoError(t, err)
	assert.IsType(t, MemCache{}, p)
}
