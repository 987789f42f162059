package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"freaksplay/internal/chat"
)

// acknowledge tells the sender that their tracks were added, as configured by the ack mode.
func (s *Session) acknowledge(ctx context.Context, msg *chat.Message, tracks []TrackReference, logger *zap.Logger) {
	mode := s.config.App.AckMode

	if mode == AckModeReaction || mode == AckModeBoth {
		emoji := chat.Reaction(s.config.App.AckEmoji)
		if emoji == "" {
			emoji = chat.ReactionNotes
		}
		if err := s.frontend.React(ctx, msg.ChatID, msg.ID, emoji); err != nil {
			logger.Warn("Failed to react to message", zap.Error(err))
			s.metrics.RecordError("ack_reaction")
		}
	}

	if mode == AckModeReply || mode == AckModeBoth {
		text := s.addedText(ctx, tracks, logger)
		if _, err := s.frontend.SendText(ctx, msg.ChatID, msg.ID, text); err != nil {
			logger.Warn("Failed to reply to message", zap.Error(err))
			s.metrics.RecordError("ack_reply")
		}
	}
}

func (s *Session) addedText(ctx context.Context, tracks []TrackReference, logger *zap.Logger) string {
	var b strings.Builder
	if len(tracks) == 1 {
		b.WriteString(s.localizer.T("ack.tracks_added.one"))
	} else {
		b.WriteString(s.localizer.T("ack.tracks_added.many", len(tracks)))
	}

	if !s.config.App.DescribeTracks {
		return b.String()
	}

	described, err := s.updater.DescribeTracks(ctx, tracks)
	if err != nil {
		logger.Warn("Failed to describe added tracks", zap.Error(err))
		return b.String()
	}
	for _, track := range described {
		b.WriteString("\n")
		b.WriteString(s.localizer.T("ack.track_line", track.Artist, track.Title))
	}
	return b.String()
}

func (s *Session) presenceText() string {
	if s.config.Discord.PresenceText != "" {
		return s.config.Discord.PresenceText
	}
	return s.localizer.T("presence.listening", s.config.Discord.ChannelName)
}
