package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freaksplay/internal/chat"
	"freaksplay/internal/i18n"
)

// Session connects one chat channel to one playlist.
type Session struct {
	config    *Config
	frontend  chat.Frontend
	extractor LinkExtractor
	updater   *PlaylistUpdater
	executor  *PlaylistExecutor
	flood     FloodGate
	metrics   MetricsRecorder
	localizer *i18n.Localizer
	logger    *zap.Logger

	// handling is held from filtering until the playlist update is queued
	handling sync.Mutex

	selfMu sync.RWMutex
	selfID string

	ready   atomic.Bool
	stopped atomic.Bool
}

type SessionOption func(*Session)

// WithFloodGate limits how often each sender can trigger an update.
func WithFloodGate(gate FloodGate) SessionOption {
	return func(s *Session) {
		s.flood = gate
	}
}

func WithMetrics(metrics MetricsRecorder) SessionOption {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// NewSession wires the session. spotify must already be authenticated.
func NewSession(config *Config, frontend chat.Frontend, spotify SpotifyClient, extractor LinkExtractor,
	logger *zap.Logger, opts ...SessionOption) *Session {
	executor := NewPlaylistExecutor(config.Spotify.QueueSize, config.Spotify.CallTimeout, logger.Named("executor"))

	s := &Session{
		config:    config,
		frontend:  frontend,
		extractor: extractor,
		updater:   NewPlaylistUpdater(spotify, executor, logger.Named("updater")),
		executor:  executor,
		metrics:   noopMetrics{},
		localizer: i18n.NewLocalizer(config.App.Language),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects the frontend and blocks until ctx is done.
func (s *Session) Start(ctx context.Context) error {
	s.logger.Info("Starting chat session",
		zap.String("channel", s.config.Discord.ChannelName),
		zap.String("playlist", s.config.Spotify.PlaylistID),
		zap.String("ack_mode", s.config.App.AckMode))

	s.frontend.OnReady(s.handleReady)
	s.frontend.OnMessage(s.handleMessage)

	if err := s.frontend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat frontend: %w", err)
	}

	<-ctx.Done()
	return nil
}

// Stop disconnects the frontend and then releases the playlist worker.
func (s *Session) Stop(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("Stopping chat session")

	err := s.frontend.Stop(ctx)
	s.executor.Close()
	if err != nil {
		return fmt.Errorf("failed to stop chat frontend: %w", err)
	}
	return nil
}

// Ready reports whether the frontend session has been established.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

func (s *Session) handleReady(ctx context.Context, self chat.Identity) {
	s.selfMu.Lock()
	s.selfID = self.UserID
	s.selfMu.Unlock()
	s.ready.Store(true)

	s.logger.Info("Chat session ready",
		zap.String("user_id", self.UserID),
		zap.String("user_name", self.UserName),
		zap.String("language", s.localizer.Language()))

	if err := s.frontend.SetPresence(ctx, s.presenceText(), s.config.Discord.PresenceEmoji); err != nil {
		s.logger.Warn("Failed to set presence", zap.Error(err))
	}
}

func (s *Session) self() string {
	s.selfMu.RLock()
	defer s.selfMu.RUnlock()
	return s.selfID
}

func (s *Session) handleMessage(ctx context.Context, msg *chat.Message) {
	start := time.Now()
	logger := s.logger.With(
		zap.String("handling_id", uuid.NewString()),
		zap.String("message_id", msg.ID),
		zap.String("channel", msg.ChatName),
		zap.String("sender", msg.SenderName))

	result, tracks, ok := s.dispatch(ctx, msg, logger)
	if !ok {
		return
	}

	err := <-result
	s.metrics.RecordProcessingDuration(time.Since(start))
	if err != nil {
		logger.Error("Failed to update playlist", zap.Error(err))
		s.metrics.RecordMessage(OutcomeFailed)
		s.metrics.RecordError("playlist_add")
		return
	}

	s.metrics.RecordMessage(OutcomeAdded)
	s.metrics.RecordTracksAdded(len(tracks))
	s.acknowledge(ctx, msg, tracks, logger)
}

// dispatch filters and extracts under the handling lock and queues the update.
// ok is false when the message needs no further handling.
func (s *Session) dispatch(ctx context.Context, msg *chat.Message, logger *zap.Logger) (
	result <-chan error, tracks []TrackReference, ok bool) {
	s.handling.Lock()
	defer s.handling.Unlock()

	if msg.SenderID == s.self() {
		s.metrics.RecordMessage(OutcomeIgnored)
		return nil, nil, false
	}
	if msg.ChatName != s.config.Discord.ChannelName {
		logger.Debug("Ignoring message from other channel")
		s.metrics.RecordMessage(OutcomeIgnored)
		return nil, nil, false
	}
	if s.flood != nil && !s.flood.Allow(msg.ChatID, msg.SenderID) {
		logger.Info("Ignoring message from flooding sender", zap.String("sender_id", msg.SenderID))
		s.metrics.RecordMessage(OutcomeFlooded)
		return nil, nil, false
	}

	tracks = s.extractor.Extract(ctx, msg.Text)
	if s.config.App.DedupeBatch {
		tracks = uniqueTracks(tracks)
	}
	if len(tracks) == 0 {
		s.metrics.RecordMessage(OutcomeNoTracks)
		return nil, nil, false
	}

	logger.Info("Found tracks in message", zap.Strings("tracks", tracks))
	return s.updater.SubmitTracks(ctx, s.config.Spotify.PlaylistID, tracks), tracks, true
}

// uniqueTracks drops repeated ids, keeping the first occurrence.
func uniqueTracks(tracks []TrackReference) []TrackReference {
	seen := make(map[TrackReference]struct{}, len(tracks))
	unique := make([]TrackReference, 0, len(tracks))
	for _, id := range tracks {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
