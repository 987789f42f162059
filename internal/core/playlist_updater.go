package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PlaylistUpdater appends tracks to a playlist through the executor.
type PlaylistUpdater struct {
	spotify  SpotifyClient
	executor *PlaylistExecutor
	logger   *zap.Logger
}

func NewPlaylistUpdater(spotify SpotifyClient, executor *PlaylistExecutor, logger *zap.Logger) *PlaylistUpdater {
	return &PlaylistUpdater{
		spotify:  spotify,
		executor: executor,
		logger:   logger,
	}
}

// SubmitTracks queues one add request for all tracks and returns once it is queued.
// The returned channel yields the outcome.
func (u *PlaylistUpdater) SubmitTracks(ctx context.Context, playlist PlaylistTarget, tracks []TrackReference) <-chan error {
	return u.executor.Submit(ctx, func(ctx context.Context) error {
		snapshotID, err := u.spotify.AddTracksToPlaylist(ctx, playlist, tracks)
		if err != nil {
			u.logger.Error("Failed to add tracks to playlist",
				zap.String("playlist", playlist),
				zap.Strings("tracks", tracks),
				zap.Error(err))
			return fmt.Errorf("add %d tracks to playlist %s: %w", len(tracks), playlist, err)
		}

		u.logger.Info("Added tracks to playlist",
			zap.String("playlist", playlist),
			zap.Strings("tracks", tracks),
			zap.String("snapshot", snapshotID))
		return nil
	})
}

// AddTracks submits tracks and waits for the result.
func (u *PlaylistUpdater) AddTracks(ctx context.Context, playlist PlaylistTarget, tracks []TrackReference) error {
	select {
	case err := <-u.SubmitTracks(ctx, playlist, tracks):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DescribeTracks looks up title and artist for each track.
func (u *PlaylistUpdater) DescribeTracks(ctx context.Context, tracks []TrackReference) ([]Track, error) {
	var described []Track
	err := u.executor.Do(ctx, func(ctx context.Context) error {
		var err error
		described, err = u.spotify.GetTracks(ctx, tracks)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("describe tracks: %w", err)
	}
	return described, nil
}
