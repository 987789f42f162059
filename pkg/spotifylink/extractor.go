package spotifylink

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freaksplay/pkg/text"
)

// Extractor finds the Spotify track ids mentioned in a chat message.
type Extractor struct {
	parser   *text.Parser
	resolver *Resolver
}

// NewExtractor creates an extractor that resolves short links with resolver.
func NewExtractor(resolver *Resolver) *Extractor {
	if resolver == nil {
		resolver = NewResolver()
	}

	return &Extractor{
		parser:   text.NewParser(),
		resolver: resolver,
	}
}

// Extract returns the track ids in message: direct links first in text order,
// then resolved short links in the order they appear. Duplicates are kept,
// but a repeated short link is only looked up once.
// Short links are looked up concurrently; those that do not resolve to a track are dropped.
func (e *Extractor) Extract(ctx context.Context, message string) []string {
	parsed := e.parser.ParseMessage(message)
	e.resolver.logger.Debug("Parsed message",
		zap.String("text", parsed.Text),
		zap.Int("track_links", len(parsed.TrackIDs)),
		zap.Int("short_links", len(parsed.ShortLinks)))
	if len(parsed.ShortLinks) == 0 {
		return parsed.TrackIDs
	}

	links := make(map[string]int, len(parsed.ShortLinks))
	for _, link := range parsed.ShortLinks {
		if _, seen := links[link]; !seen {
			links[link] = len(links)
		}
	}

	resolved := make([]string, len(links))

	var g errgroup.Group
	for link, i := range links {
		g.Go(func() error {
			if trackID, ok := e.resolver.Resolve(ctx, link); ok {
				resolved[i] = trackID
			}
			return nil
		})
	}
	_ = g.Wait()

	trackIDs := parsed.TrackIDs
	for _, link := range parsed.ShortLinks {
		if trackID := resolved[links[link]]; trackID != "" {
			trackIDs = append(trackIDs, trackID)
		}
	}

	return trackIDs
}
