// Package chat provides a unified interface for chat frontends (Discord, etc.)
package chat

import (
	"context"
)

// Message represents a normalized chat message from any frontend
type Message struct {
	ID         string
	ChatID     string
	ChatName   string
	SenderID   string
	SenderName string
	Text       string
	Raw        any // underlying library message struct
}

// Identity describes the account the bot is logged in as
type Identity struct {
	UserID   string
	UserName string
}

// Reaction represents standard emoji reactions
type Reaction string

// ReactionNotes is the acknowledgement used when no emoji is configured.
const ReactionNotes Reaction = "🎶"

// ReadyHandler is called once the frontend session is established
type ReadyHandler func(ctx context.Context, self Identity)

// MessageHandler is called for every inbound message
type MessageHandler func(ctx context.Context, msg *Message)

// Frontend defines the unified interface for all chat integrations.
// Handlers must be registered before Start.
type Frontend interface {
	// OnReady registers the handler for the session ready event
	OnReady(handler ReadyHandler)

	// OnMessage registers the handler for inbound messages
	OnMessage(handler MessageHandler)

	// Start authenticates and opens the session
	Start(ctx context.Context) error

	// Stop closes the session
	Stop(ctx context.Context) error

	// SendText sends a text message to the specified chat, optionally as a reply
	SendText(ctx context.Context, chatID, replyToID, text string) (string, error)

	// React adds an emoji reaction to a message
	React(ctx context.Context, chatID, msgID string, r Reaction) error

	// SetPresence updates the bot's status line
	SetPresence(ctx context.Context, status, emoji string) error
}
