package aicache

import "testing"

func TestCacheStatusString(t *testing.T) {
	tests := []struct {
		name string
		cs   func() CacheStatus
		want string
	}{
		{"hit", func() CacheStatus {
			var cs CacheStatus
			cs.Hit()
			return cs
		}, "AI-Cache; hit"},
		{"miss stored", func() CacheStatus {
			var cs CacheStatus
			cs.Forward(CacheStatusFwdUriMiss)
			cs.Stored = true
			cs.TimeToLive = 300
			return cs
		}, "AI-Cache; fwd=uri-miss; stored; ttl=300"},
		{"miss not stored", func() CacheStatus {
			var cs CacheStatus
			cs.Forward(CacheStatusFwdUriMiss)
			return cs
		}, "AI-Cache; fwd=uri-miss"},
		{"collapsed", func() CacheStatus {
			var cs CacheStatus
			cs.Forward(CacheStatusFwdUriMiss)
			cs.Stored = true
			cs.Collapsed = true
			cs.TimeToLive = 60
			return cs
		}, "AI-Cache; fwd=uri-miss; stored; collapsed; ttl=60"},
		{"detail", func() CacheStatus {
			var cs CacheStatus
			cs.Forward(CacheStatusFwdUriMiss)
			cs.Detail = "origin-error"
			return cs
		}, "AI-Cache; fwd=uri-miss; detail=origin-error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cs().String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
