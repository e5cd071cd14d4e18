package aicache

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/always-cache/ai-cache/cache"
	"github.com/always-cache/ai-cache/classifier"
	cacheentry "github.com/always-cache/ai-cache/pkg/cache-entry"
	originfetcher "github.com/always-cache/ai-cache/pkg/origin-fetcher"
	ttlextractor "github.com/always-cache/ai-cache/pkg/ttl-extractor"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	// Storage for cache entries.
	Cache cache.CacheProvider
	// Base URL of the origin server. Request paths are appended to it.
	OriginURL string
	// HTTP client for origin requests. A client with a 30 second timeout is used if nil.
	OriginClient *http.Client
	// Completer that answers the cache duration prompt.
	Classifier classifier.Completer
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Collapse concurrent misses for the same path into a single
	// origin fetch and classification. Disabled by default, in which case
	// concurrent misses race and the last cache write wins.
	Coalesce bool
}

type AICache struct {
	store      *cache.Store
	fetcher    *originfetcher.Fetcher
	classifier *classifier.Adapter
	log        zerolog.Logger
	// writeLog is sampled so an unreachable store does not flood the log
	writeLog zerolog.Logger
	coalesce bool
	group    singleflight.Group
	stats    statsCollector
}

// CreateCache initializes the ai-cache instance.
func CreateCache(config Config) *AICache {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL).
		Logger()

	return &AICache{
		store:      cache.NewStore(config.Cache, logger),
		fetcher:    originfetcher.New(config.OriginURL, config.OriginClient),
		classifier: classifier.New(config.Classifier),
		log:        logger,
		writeLog:   logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Minute}),
		coalesce:   config.Coalesce,
	}
}

// Close closes the underlying cache provider.
func (a *AICache) Close() error {
	return a.store.Close()
}

// missResult is the outcome of the miss pipeline for one path.
type missResult struct {
	content     []byte
	contentType string
	ttl         int
	stored      bool
	// fromStore is set when another flight stored the entry first
	fromStore   bool
}

// ServeHTTP implements the http.Handler interface.
func (a *AICache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// a request runs to completion even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	key := r.URL.Path
	log := a.log.With().Str("key", key).Logger()

	var cacheStatus CacheStatus
	if raw, ok := a.store.Get(ctx, key); ok {
		cacheStatus.Hit()
		a.serveStored(w, r, raw, cacheStatus, log)
		return
	}

	cacheStatus.Forward(CacheStatusFwdUriMiss)
	a.stats.inFlight.Add(1)
	res, collapsed, err := a.resolveMiss(ctx, key, log)
	a.stats.inFlight.Add(-1)
	cacheStatus.Collapsed = collapsed
	if err != nil {
		a.stats.failures.Add(1)
		a.sendError(w, r, err, cacheStatus, log)
		return
	}
	cacheStatus.Stored = res.stored
	if res.stored {
		cacheStatus.TimeToLive = res.ttl
	}
	a.send(w, r, res.content, res.contentType, cacheStatus)
}

// serveStored writes a cache hit. Values that do not decode as cache entries
// are passed through as-is, without a content type.
func (a *AICache) serveStored(w http.ResponseWriter, r *http.Request, raw []byte, cacheStatus CacheStatus, log zerolog.Logger) {
	entry, err := cacheentry.Unmarshal(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Could not decode cache entry, serving raw value")
		cacheStatus.Detail = "raw"
		a.send(w, r, raw, "", cacheStatus)
		return
	}
	a.send(w, r, []byte(entry.Content), entry.ContentType, cacheStatus)
}

func (a *AICache) resolveMiss(ctx context.Context, key string, log zerolog.Logger) (missResult, bool, error) {
	if !a.coalesce {
		res, err := a.miss(ctx, key, log)
		return res, false, err
	}
	leader := false
	v, err, shared := a.group.Do(key, func() (any, error) {
		leader = true
		// a flight for this key may have finished since our lookup
		if res, ok := a.lookup(ctx, key); ok {
			return res, nil
		}
		return a.miss(ctx, key, log)
	})
	if err != nil {
		return missResult{}, shared && !leader, err
	}
	res := v.(missResult)
	return res, (shared && !leader) || res.fromStore, nil
}

// lookup returns the decoded entry stored under key, if any.
func (a *AICache) lookup(ctx context.Context, key string) (missResult, bool) {
	raw, ok := a.store.Get(ctx, key)
	if !ok {
		return missResult{}, false
	}
	entry, err := cacheentry.Unmarshal(raw)
	if err != nil {
		return missResult{}, false
	}
	return missResult{
		content:     []byte(entry.Content),
		contentType: entry.ContentType,
		fromStore:   true,
	}, true
}

// miss fetches the resource, asks the classifier for a TTL and stores the entry.
// Fetch and classifier failures abort the pipeline before anything is stored.
func (a *AICache) miss(ctx context.Context, key string, log zerolog.Logger) (missResult, error) {
	log.Trace().Msgf("Fetching %s", a.fetcher.URL(key))
	originRes, err := a.fetcher.Fetch(ctx, key)
	if err != nil {
		return missResult{}, err
	}

	// entries hold text; bodies are decoded once so a miss and later hits
	// serve the same bytes
	content := []byte(strings.ToValidUTF8(string(originRes.Content), "\uFFFD"))

	verdict, err := a.classifier.Classify(ctx, content, originRes.ContentType)
	if err != nil {
		return missResult{}, err
	}
	log.Trace().Str("verdict", verdict).Msg("Classifier verdict")

	ttl, fromVerdict := ttlextractor.ExtractWithSource(verdict)
	log.Debug().Int("ttl", ttl).Bool("fallback", !fromVerdict).
		Msgf("Cache duration generated for %s: %d seconds", key, ttl)

	res := missResult{
		content:     content,
		contentType: originRes.ContentType,
		ttl:         ttl,
	}
	entry := cacheentry.New(content, originRes.ContentType, time.Now())
	value, err := cacheentry.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Msg("Could not encode cache entry")
		return res, nil
	}
	put := a.store.Put(ctx, key, value, ttl)
	if !put.OK() {
		a.stats.storeFailures.Add(1)
		a.writeLog.Warn().Err(put.Err).Msg("Could not write to cache, serving fresh response anyway")
	}
	res.stored = put.OK()
	return res, nil
}

func (a *AICache) send(w http.ResponseWriter, r *http.Request, body []byte, contentType string, cacheStatus CacheStatus) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	} else {
		// a nil value keeps net/http from sniffing one
		w.Header()["Content-Type"] = nil
	}
	w.Header().Set("Cache-Status", cacheStatus.String())
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(body)
	if err != nil {
		a.log.Error().Err(err).Msg("Could not write response body to client")
	}
	a.stats.observe(cacheStatus, n)
	a.logRequest(r, http.StatusOK, n, cacheStatus)
}

func (a *AICache) sendError(w http.ResponseWriter, r *http.Request, err error, cacheStatus CacheStatus, log zerolog.Logger) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, originfetcher.ErrOriginStatus):
		cacheStatus.Detail = "origin-error"
	case errors.Is(err, originfetcher.ErrOriginUnreachable):
		cacheStatus.Detail = "origin-unreachable"
	case errors.Is(err, classifier.ErrClassifierUnavailable):
		cacheStatus.Detail = "classifier-unavailable"
	}
	log.Error().Err(err).Int("status", status).Msg("Could not resolve cache miss")
	w.Header().Set("Cache-Status", cacheStatus.String())
	http.Error(w, http.StatusText(status), status)
	a.logRequest(r, status, 0, cacheStatus)
}

func (a *AICache) logRequest(r *http.Request, status int, bytes int, cs CacheStatus) {
	isHit := 0
	if cs.Status == CacheStatusHit {
		isHit = 1
	}
	a.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("status", status).
		Str("fwd", string(cs.FwdReason)).
		Bool("stored", cs.Stored).
		Int("ttl", cs.TimeToLive).
		Int("hit", isHit).
		Int("bytes", bytes).
		Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
