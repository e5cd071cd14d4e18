package aicache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

type statsCollector struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	failures      atomic.Uint64
	storeFailures atomic.Uint64
	servedBytes   atomic.Uint64
	inFlight      atomic.Int64
}

// Stats is a point-in-time view of the proxy counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Failures      uint64
	StoreFailures uint64
	ServedBytes   uint64
	// InFlight is the number of requests currently resolving a miss.
	InFlight      int64
}

func (s *statsCollector) observe(cs CacheStatus, bytes int) {
	if cs.Status == CacheStatusHit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	if bytes > 0 {
		s.servedBytes.Add(uint64(bytes))
	}
}

func (s *statsCollector) snapshot() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Failures:      s.failures.Load(),
		StoreFailures: s.storeFailures.Load(),
		ServedBytes:   s.servedBytes.Load(),
		InFlight:      s.inFlight.Load(),
	}
}

// Stats returns the current counters.
func (a *AICache) Stats() Stats {
	return a.stats.snapshot()
}

// LogStats logs the counters every interval until ctx is done.
func (a *AICache) LogStats(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ss := a.Stats()
			a.log.Info().
				Uint64("hits", ss.Hits).
				Uint64("misses", ss.Misses).
				Uint64("failures", ss.Failures).
				Uint64("storeFailures", ss.StoreFailures).
				Int64("inFlight", ss.InFlight).
				Msgf("Served %s", humanize.Bytes(ss.ServedBytes))
		}
	}
}
