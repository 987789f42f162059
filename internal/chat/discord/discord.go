// Package discord provides Discord gateway integration using the discordgo library.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"freaksplay/internal/chat"
)

const (
	customStatusName = "Custom Status"

	intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
)

// ErrNotStarted is returned by outbound calls made before Start or after Stop.
var ErrNotStarted = errors.New("discord frontend is not started")

// Config holds Discord-specific configuration
type Config struct {
	BotToken string
}

// Frontend implements the chat.Frontend interface for Discord
type Frontend struct {
	config *Config
	logger *zap.Logger

	mu      sync.RWMutex
	session *discordgo.Session
	ctx     context.Context // passed to handlers; canceled with the Start context

	readyHandler   chat.ReadyHandler
	messageHandler chat.MessageHandler
	removeHandlers []func()

	// channelName resolves a channel ID to its name; replaced in tests
	channelName func(channelID string) (string, error)
}

// NewFrontend creates a new Discord frontend
func NewFrontend(config *Config, logger *zap.Logger) *Frontend {
	f := &Frontend{
		config: config,
		logger: logger,
		ctx:    context.Background(),
	}
	f.channelName = f.lookupChannelName
	return f
}

// OnReady registers the handler for the Ready event
func (f *Frontend) OnReady(handler chat.ReadyHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyHandler = handler
}

// OnMessage registers the handler for MessageCreate events
func (f *Frontend) OnMessage(handler chat.MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageHandler = handler
}

// Start creates the gateway session and connects
func (f *Frontend) Start(ctx context.Context) error {
	if f.config.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}

	s, err := discordgo.New("Bot " + f.config.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = intents

	f.mu.Lock()
	f.ctx = ctx
	f.session = s
	f.removeHandlers = []func(){
		s.AddHandler(f.handleReady),
		s.AddHandler(f.handleMessageCreate),
	}
	f.mu.Unlock()

	f.logger.Info("Connecting to Discord gateway")

	if err := s.Open(); err != nil {
		f.mu.Lock()
		f.session = nil
		f.mu.Unlock()
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	f.logger.Info("Discord frontend started successfully")
	return nil
}

// Stop disconnects from the gateway
func (f *Frontend) Stop(_ context.Context) error {
	f.mu.Lock()
	s := f.session
	f.session = nil
	for _, remove := range f.removeHandlers {
		remove()
	}
	f.removeHandlers = nil
	f.mu.Unlock()

	if s == nil {
		return nil
	}

	f.logger.Info("Closing Discord session")
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// SendText sends a text message to the specified channel, optionally as a reply
func (f *Frontend) SendText(ctx context.Context, chatID, replyToID, text string) (string, error) {
	s, err := f.activeSession(ctx)
	if err != nil {
		return "", err
	}

	var msg *discordgo.Message
	if replyToID != "" {
		msg, err = s.ChannelMessageSendReply(chatID, text, &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: chatID,
		})
	} else {
		msg, err = s.ChannelMessageSend(chatID, text)
	}
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return msg.ID, nil
}

// React adds an emoji reaction to a message
func (f *Frontend) React(ctx context.Context, chatID, msgID string, r chat.Reaction) error {
	s, err := f.activeSession(ctx)
	if err != nil {
		return err
	}

	if err := s.MessageReactionAdd(chatID, msgID, string(r)); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

// SetPresence sets a custom status line
func (f *Frontend) SetPresence(ctx context.Context, status, emoji string) error {
	s, err := f.activeSession(ctx)
	if err != nil {
		return err
	}

	if err := s.UpdateStatusComplex(presence(status, emoji)); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

func (f *Frontend) activeSession(ctx context.Context) (*discordgo.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.session == nil {
		return nil, ErrNotStarted
	}
	return f.session, nil
}

// handleReady processes the gateway Ready event
func (f *Frontend) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		f.logger.Warn("Ready event without user")
		return
	}

	f.logger.Info("Logged in to Discord",
		zap.String("user", r.User.Username),
		zap.String("userID", r.User.ID),
		zap.Int("guilds", len(r.Guilds)))

	f.mu.RLock()
	handler, ctx := f.readyHandler, f.ctx
	f.mu.RUnlock()

	if handler != nil {
		handler(ctx, chat.Identity{UserID: r.User.ID, UserName: r.User.Username})
	}
}

// handleMessageCreate converts inbound messages and passes them on
func (f *Frontend) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}

	f.mu.RLock()
	handler, ctx := f.messageHandler, f.ctx
	f.mu.RUnlock()

	if handler == nil {
		return
	}

	handler(ctx, f.toMessage(m.Message))
}

func (f *Frontend) toMessage(m *discordgo.Message) *chat.Message {
	channelName, err := f.channelName(m.ChannelID)
	if err != nil {
		f.logger.Debug("Failed to resolve channel name",
			zap.String("channelID", m.ChannelID),
			zap.Error(err))
	}

	return &chat.Message{
		ID:         m.ID,
		ChatID:     m.ChannelID,
		ChatName:   channelName,
		SenderID:   m.Author.ID,
		SenderName: displayName(m.Author),
		Text:       m.Content,
		Raw:        m,
	}
}

// lookupChannelName prefers the state cache and falls back to the REST API
func (f *Frontend) lookupChannelName(channelID string) (string, error) {
	f.mu.RLock()
	s := f.session
	f.mu.RUnlock()

	if s == nil {
		return "", ErrNotStarted
	}

	if s.State != nil {
		if ch, err := s.State.Channel(channelID); err == nil {
			return ch.Name, nil
		}
	}

	ch, err := s.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel: %w", err)
	}
	return ch.Name, nil
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func presence(status, emoji string) discordgo.UpdateStatusData {
	state := strings.TrimSpace(strings.TrimSpace(emoji) + " " + status)

	return discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{
			{
				Name:  customStatusName,
				Type:  discordgo.ActivityTypeCustom,
				State: state,
			},
		},
	}
}
