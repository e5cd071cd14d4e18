package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider names accepted by Open.
const (
	ProviderMemory  = "memory"
	ProviderSQLite  = "sqlite"
	ProviderBolt    = "bolt"
	ProviderLevelDB = "leveldb"
	ProviderValkey  = "valkey"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	// Path is the database file (sqlite, bolt) or directory (leveldb).
	Path   string
	Valkey ValkeyConfig
}

// Open creates the provider named by opts.Provider.
func Open(opts Options) (CacheProvider, error) {
	switch opts.Provider {
	case ProviderMemory:
		return NewMemCache(), nil
	case ProviderSQLite:
		return NewSQLiteCache(opts.Path)
	case ProviderBolt:
		return NewBoltCache(opts.Path)
	case ProviderLevelDB:
		return NewLevelDBCache(opts.Path)
	case ProviderValkey:
		return NewValkeyCache(opts.Valkey)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %q", opts.Provider)
	}
}

// Purger is implemented by providers that keep expired records on disk
// until they are explicitly purged.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweep purges expired records every interval until ctx is done.
// It returns immediately if the provider does not implement Purger.
func Sweep(ctx context.Context, provider CacheProvider, every time.Duration, log zerolog.Logger) {
	purger, ok := provider.(Purger)
	if !ok || every <= 0 {
		return
	}
	log.Info().Msgf("Starting expired entry sweep every %s", every)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			purged, err := purger.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Could not purge expired entries")
				continue
			}
			if purged > 0 {
				log.Debug().Int64("purged", purged).Msg("Purged expired entries")
			}
		}
	}
}
