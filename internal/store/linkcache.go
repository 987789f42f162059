// Package store provides in-memory caching of short link resolutions using an expiring LRU.
package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LinkCache remembers what a shortened link resolved to for a limited time.
// An empty track ID records a link that did not lead to a track.
// A nil *LinkCache is valid and caches nothing.
type LinkCache struct {
	lru *expirable.LRU[string, string]
}

// NewLinkCache creates a cache holding up to maxLinks entries for ttl each.
// It returns nil when maxLinks or ttl is not positive.
func NewLinkCache(maxLinks int, ttl time.Duration) *LinkCache {
	if maxLinks <= 0 || ttl <= 0 {
		return nil
	}

	return &LinkCache{
		lru: expirable.NewLRU[string, string](maxLinks, nil, ttl),
	}
}

// Get returns the cached track ID for shortURL.
func (c *LinkCache) Get(shortURL string) (trackID string, ok bool) {
	if c == nil {
		return "", false
	}
	return c.lru.Get(shortURL)
}

// Put records the resolution of shortURL.
func (c *LinkCache) Put(shortURL, trackID string) {
	if c == nil {
		return
	}
	c.lru.Add(shortURL, trackID)
}

// Size returns the number of live entries.
func (c *LinkCache) Size() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
