package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultChannelName is the channel watched when none is configured
	DefaultChannelName = "freaksplay"
	// DefaultServerPort is the port of the health and metrics server
	DefaultServerPort = 8080
	// DefaultSpotifyCallTimeout bounds each Spotify API call
	DefaultSpotifyCallTimeout = 30 * time.Second
	// DefaultSpotifyQueueSize is the number of Spotify calls that may wait for the worker
	DefaultSpotifyQueueSize = 16
	// DefaultResolveTimeout bounds each short link lookup
	DefaultResolveTimeout = 10 * time.Second
	// DefaultResolveCacheSize is the number of short link resolutions kept in memory
	DefaultResolveCacheSize = 1024
	// DefaultResolveCacheTTL is how long a short link resolution is reused
	DefaultResolveCacheTTL = time.Hour
	// DefaultAckEmoji is the reaction used to acknowledge added tracks
	DefaultAckEmoji = "🎶"
	// DefaultPresenceEmoji is shown in front of the bot's status line
	DefaultPresenceEmoji = "🎧"
)

// Spotify credential flows
const (
	AuthFlowClientCredentials = "client-credentials"
	AuthFlowAuthorizationCode = "authorization-code"
)

// Acknowledgement modes
const (
	AckModeReaction = "reaction"
	AckModeReply    = "reply"
	AckModeBoth     = "both"
)

type Config struct {
	Discord DiscordConfig
	Spotify SpotifyConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type DiscordConfig struct {
	BotToken      string
	ChannelName   string
	PresenceText  string // empty uses the localized default
	PresenceEmoji string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	AuthFlow     string
	RedirectURL  string
	PlaylistID   string
	TokenPath    string
	CallTimeout  time.Duration
	QueueSize    int
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language            string
	AckMode             string
	AckEmoji            string
	DescribeTracks      bool
	DedupeBatch         bool
	FloodLimitPerMinute int // 0 disables flood prevention
	ResolveTimeout      time.Duration
	ResolveCacheSize    int
	ResolveCacheTTL     time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			ChannelName:   DefaultChannelName,
			PresenceEmoji: DefaultPresenceEmoji,
		},
		Spotify: SpotifyConfig{
			AuthFlow:    AuthFlowAuthorizationCode,
			RedirectURL: "http://127.0.0.1:8080/callback",
			TokenPath:   "./spotify_token.json",
			CallTimeout: DefaultSpotifyCallTimeout,
			QueueSize:   DefaultSpotifyQueueSize,
		},
		Server: ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:         "en",
			AckMode:          AckModeReaction,
			AckEmoji:         DefaultAckEmoji,
			ResolveTimeout:   DefaultResolveTimeout,
			ResolveCacheSize: DefaultResolveCacheSize,
			ResolveCacheTTL:  DefaultResolveCacheTTL,
		},
	}
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.BotToken == "" {
		errs = append(errs, errors.New("discord bot token is required"))
	}
	if c.Discord.ChannelName == "" {
		errs = append(errs, errors.New("discord channel name is required"))
	}
	if c.Spotify.ClientID == "" {
		errs = append(errs, errors.New("spotify client ID is required"))
	}
	if c.Spotify.ClientSecret == "" {
		errs = append(errs, errors.New("spotify client secret is required"))
	}
	if c.Spotify.PlaylistID == "" {
		errs = append(errs, errors.New("spotify playlist ID is required"))
	}

	switch c.Spotify.AuthFlow {
	case AuthFlowClientCredentials:
	case AuthFlowAuthorizationCode:
		if c.Spotify.RedirectURL == "" {
			errs = append(errs, errors.New("spotify redirect URL is required for the authorization-code flow"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown spotify auth flow %q (expected %s or %s)",
			c.Spotify.AuthFlow, AuthFlowClientCredentials, AuthFlowAuthorizationCode))
	}

	switch c.App.AckMode {
	case AckModeReaction, AckModeReply, AckModeBoth:
	default:
		errs = append(errs, fmt.Errorf("unknown ack mode %q (expected %s, %s or %s)",
			c.App.AckMode, AckModeReaction, AckModeReply, AckModeBoth))
	}

	if c.Spotify.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("spotify queue size must be positive, got %d", c.Spotify.QueueSize))
	}

	return errors.Join(errs...)
}
