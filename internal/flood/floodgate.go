// Package flood provides anti-spam flood prevention for chat applications.
package flood

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	// windowDuration is the time window the per-user limit applies to
	windowDuration = time.Minute
	// idleTimeout is how long an idle sender keeps their limiter
	idleTimeout = 10 * time.Minute
	// maxTrackedSenders bounds memory used for limiters
	maxTrackedSenders = 4096
)

// Floodgate limits each sender in each chat to a number of messages per minute.
// A limit of zero or less disables it.
type Floodgate struct {
	limitPerMinute int
	limiters       *expirable.LRU[string, *rate.Limiter] // key: "chatID:userID"
	mutex          sync.Mutex
	now            func() time.Time
}

// New creates a Floodgate. Senders may burst up to limitPerMinute messages,
// after which capacity refills evenly over one minute.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		now:            time.Now,
	}
	if limitPerMinute > 0 {
		fg.limiters = expirable.NewLRU[string, *rate.Limiter](maxTrackedSenders, nil, idleTimeout)
	}
	return fg
}

// Enabled reports whether the gate ever blocks.
func (fg *Floodgate) Enabled() bool {
	return fg != nil && fg.limitPerMinute > 0
}

// Allow reports whether a message from userID in chatID should be processed.
func (fg *Floodgate) Allow(chatID, userID string) bool {
	if !fg.Enabled() {
		return true
	}

	key := chatID + ":" + userID

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	limiter, ok := fg.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(windowDuration/time.Duration(fg.limitPerMinute)), fg.limitPerMinute)
	}
	// re-adding refreshes the idle expiry
	fg.limiters.Add(key, limiter)

	return limiter.AllowN(fg.now(), 1)
}

// GetStats returns statistics about the floodgate for monitoring/debugging
func (fg *Floodgate) GetStats() Stats {
	stats := Stats{WindowSeconds: int(windowDuration.Seconds())}
	if !fg.Enabled() {
		return stats
	}

	stats.LimitPerMinute = fg.limitPerMinute
	stats.ActiveUsers = fg.limiters.Len()
	return stats
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveUsers    int `json:"active_users"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
