package aicache

import (
	"fmt"
	"strings"
)

// cacheName identifies this cache in the Cache-Status header.
const cacheName = "AI-Cache"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain any responses that matched the
	// request URI.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"
)

// CacheStatus builds a Cache-Status header value (RFC 9211).
type CacheStatus struct {
	Status    CacheStatusStatus
	FwdReason CacheStatusFwdReason
	// Stored is set when the forwarded response was written to the cache.
	Stored bool
	// Collapsed is set when the response was shared with a concurrent request.
	Collapsed bool
	// TimeToLive is the freshness lifetime in seconds, if known.
	TimeToLive int
	Detail     string
}

func (cs *CacheStatus) Hit() {
	cs.Status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.Status = CacheStatusFwd
	cs.FwdReason = reason
}

func (cs CacheStatus) String() string {
	params := []string{cacheName}
	switch {
	case cs.Status == CacheStatusHit:
		params = append(params, "hit")
	case cs.FwdReason != "":
		params = append(params, fmt.Sprintf("fwd=%s", cs.FwdReason))
	}
	if cs.Stored {
		params = append(params, "stored")
	}
	if cs.Collapsed {
		params = append(params, "collapsed")
	}
	if cs.TimeToLive > 0 {
		params = append(params, fmt.Sprintf("ttl=%d", cs.TimeToLive))
	}
	if cs.Detail != "" {
		params = append(params, "detail="+cs.Detail)
	}
	return strings.Join(params, "; ")
}
