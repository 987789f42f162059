package core

import (
	"context"
	"time"
)

// TrackReference is a Spotify track id as found in a message.
type TrackReference = string

// PlaylistTarget is the id of the playlist tracks are appended to.
type PlaylistTarget = string

type Track struct {
	ID     string
	Title  string
	Artist string
}

// SpotifyClient is the subset of the Spotify Web API the bot uses.
type SpotifyClient interface {
	// AddTracksToPlaylist appends all ids in one request and returns the new snapshot id
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) (string, error)
	GetTracks(ctx context.Context, trackIDs []string) ([]Track, error)
}

// LinkExtractor returns the track ids referenced by a message text.
type LinkExtractor interface {
	Extract(ctx context.Context, text string) []string
}

// FloodGate decides whether a sender may post another message.
type FloodGate interface {
	Allow(chatID, senderID string) bool
}

// MetricsRecorder receives per-message counters. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordMessage(outcome string)
	RecordTracksAdded(count int)
	RecordError(kind string)
	RecordProcessingDuration(d time.Duration)
}

// Message outcomes reported to MetricsRecorder.RecordMessage
const (
	OutcomeIgnored  = "ignored"
	OutcomeFlooded  = "flooded"
	OutcomeNoTracks = "no_tracks"
	OutcomeAdded    = "added"
	OutcomeFailed   = "failed"
)

type noopMetrics struct{}

func (noopMetrics) RecordMessage(string)                   {}
func (noopMetrics) RecordTracksAdded(int)                  {}
func (noopMetrics) RecordError(string)                     {}
func (noopMetrics) RecordProcessingDuration(time.Duration) {}
