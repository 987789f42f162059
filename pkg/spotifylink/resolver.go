// Package spotifylink extracts Spotify track ids from chat text, resolving shortened share links.
package spotifylink

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"freaksplay/pkg/text"
)

const (
	// DefaultResolveTimeout bounds a single short link lookup.
	DefaultResolveTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Outcome describes how a short link lookup ended.
type Outcome string

// Short link lookup outcomes reported to the observer.
const (
	OutcomeResolved    Outcome = "resolved"
	OutcomeNotRedirect Outcome = "not_redirect"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
	OutcomeCached      Outcome = "cached"
)

// cacheable reports whether an outcome is stable enough to remember.
// Transport errors and server side failures are retried on the next message.
func (o Outcome) cacheable() bool {
	switch o {
	case OutcomeResolved, OutcomeNotRedirect, OutcomeNoMatch:
		return true
	default:
		return false
	}
}

// Cache stores resolved short links. An empty track ID marks a link without a track.
type Cache interface {
	Get(shortURL string) (trackID string, ok bool)
	Put(shortURL, trackID string)
}

// Resolver turns a spotify.link URL into a track id by reading the redirect target.
// Redirects are never followed and no cookie jar is attached.
type Resolver struct {
	client   *http.Client
	timeout  time.Duration
	cache    Cache
	logger   *zap.Logger
	observer func(Outcome)
	inflight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the lookup client. Its redirect policy and jar are overridden.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		c := *client
		r.client = &c
	}
}

// WithTimeout sets the per-lookup timeout. It applies to a client passed with WithHTTPClient too.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithCache enables result caching.
func WithCache(cache Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithObserver registers a callback invoked once per lookup with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(r *Resolver) {
		r.observer = fn
	}
}

// NewResolver creates a resolver with a stateless HEAD-only HTTP client.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:  &http.Client{},
		timeout: DefaultResolveTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.client.Timeout = r.timeout
	r.client.Jar = nil
	r.client.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return r
}

// Resolve looks up shortURL and returns the track id its redirect points to.
// Any failure yields ok == false; failures are not errors.
// Concurrent calls for the same link share one request.
func (r *Resolver) Resolve(ctx context.Context, shortURL string) (trackID string, ok bool) {
	if trackID, hit := r.cached(shortURL); hit {
		r.observe(OutcomeCached)
		return trackID, trackID != ""
	}

	v, _, _ := r.inflight.Do(shortURL, func() (any, error) {
		trackID, outcome := r.lookup(ctx, shortURL)
		r.observe(outcome)

		if outcome.cacheable() && r.cache != nil {
			r.cache.Put(shortURL, trackID)
		}
		return trackID, nil
	})

	trackID, _ = v.(string)
	return trackID, trackID != ""
}

func (r *Resolver) lookup(ctx context.Context, shortURL string) (string, Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, shortURL, http.NoBody)
	if err != nil {
		r.logger.Debug("Invalid short link", zap.String("url", shortURL), zap.Error(err))
		return "", OutcomeError
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Short link lookup failed", zap.String("url", shortURL), zap.Error(err))
		return "", OutcomeError
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		r.logger.Debug("Short link service unavailable",
			zap.String("url", shortURL),
			zap.Int("status", resp.StatusCode))
		return "", OutcomeUnavailable
	}

	if resp.StatusCode < http.StatusMultipleChoices || resp.StatusCode >= http.StatusBadRequest {
		r.logger.Debug("Short link did not redirect",
			zap.String("url", shortURL),
			zap.Int("status", resp.StatusCode))
		return "", OutcomeNotRedirect
	}

	location := resp.Header.Get("Location")
	trackID, ok := text.MatchTrackID(location)
	if !ok {
		r.logger.Debug("Short link does not point to a track",
			zap.String("url", shortURL),
			zap.String("location", location))
		return "", OutcomeNoMatch
	}

	r.logger.Debug("Resolved short link",
		zap.String("url", shortURL),
		zap.String("trackID", trackID))
	return trackID, OutcomeResolved
}

func (r *Resolver) cached(shortURL string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	return r.cache.Get(shortURL)
}

func (r *Resolver) observe(outcome Outcome) {
	if r.observer != nil {
		r.observer(outcome)
	}
}
