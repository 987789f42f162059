// Package main provides the freaksplay CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"freaksplay/internal/chat/discord"
	"freaksplay/internal/core"
	"freaksplay/internal/flood"
	httpserver "freaksplay/internal/http"
	"freaksplay/internal/i18n"
	"freaksplay/internal/spotify"
	"freaksplay/internal/store"
	"freaksplay/pkg/spotifylink"
)

const (
	envPrefix         = "FREAKSPLAY"
	defaultServerHost = "0.0.0.0"
	shutdownTimeout   = 10 * time.Second
)

// legacyEnvVars maps configuration keys to the unprefixed variable names older deployments use.
var legacyEnvVars = map[string]string{
	"discord-bot-token":     "DISCORD_TOKEN",
	"discord-channel-name":  "CHANNEL_NAME",
	"spotify-client-id":     "SPOTIFY_CLIENT_ID",
	"spotify-client-secret": "SPOTIFY_CLIENT_SECRET",
	"spotify-playlist-id":   "PLAYLIST_ID",
}

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "freaksplay",
	Short: "freaksplay - Discord channel → Spotify playlist",
	Long: `freaksplay watches one Discord channel for Spotify track links, including
spotify.link short links, and appends every track it finds to a Spotify playlist.`,
	SilenceUsage: true,
	RunE:         runFreaksplay,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")

	flags.String("discord-bot-token", "", "Discord bot token")
	flags.String("discord-channel-name", defaults.Discord.ChannelName, "Name of the channel to watch")
	flags.String("presence-text", "", "Bot status text (default is a localized \"listening\" line)")
	flags.String("presence-emoji", defaults.Discord.PresenceEmoji, "Emoji shown in the bot status")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-playlist-id", "", "Spotify playlist ID")
	flags.String("spotify-auth-flow", defaults.Spotify.AuthFlow,
		fmt.Sprintf("Spotify credential flow (%s, %s)", core.AuthFlowAuthorizationCode, core.AuthFlowClientCredentials))
	flags.String("spotify-redirect-url", "", "OAuth callback URL (default is derived from the server address)")
	flags.String("spotify-token-path", defaults.Spotify.TokenPath, "Where the OAuth token is stored")
	flags.Duration("spotify-call-timeout", defaults.Spotify.CallTimeout, "Timeout for each Spotify API call")
	flags.Int("spotify-queue-size", defaults.Spotify.QueueSize, "Number of playlist updates that may wait for the Spotify worker")

	flags.Bool("server-enabled", defaults.Server.Enabled, "Serve health checks and metrics")
	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")

	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Bot language (%s)", supportedLangs))
	flags.String("ack-mode", defaults.App.AckMode,
		fmt.Sprintf("How added tracks are acknowledged (%s, %s, %s)", core.AckModeReaction, core.AckModeReply, core.AckModeBoth))
	flags.String("ack-emoji", defaults.App.AckEmoji, "Reaction used to acknowledge added tracks")
	flags.Bool("describe-tracks", false, "List artist and title of added tracks in reply acknowledgements")
	flags.Bool("dedupe-batch", false, "Add each track only once per message")
	flags.Int("flood-limit-per-minute", 0, "Maximum messages per user per minute (0 disables)")

	flags.Duration("resolve-timeout", defaults.App.ResolveTimeout, "Timeout for each spotify.link lookup")
	flags.Int("resolve-cache-size", defaults.App.ResolveCacheSize, "Number of spotify.link lookups kept in memory (0 disables)")
	flags.Duration("resolve-cache-ttl", defaults.App.ResolveCacheTTL, "How long a spotify.link lookup is reused")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	bindLegacyEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

// bindLegacyEnv accepts the unprefixed variable names; the prefixed name wins when both are set.
func bindLegacyEnv() {
	for key, legacy := range legacyEnvVars {
		if err := viper.BindEnv(key, flagToEnvVar(key), legacy); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind %s: %v\n", legacy, err)
		}
	}
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureDiscord(cfg)
	configureServer(cfg)
	configureSpotify(cfg)
	configureApp(cfg)

	return cfg
}

func configureDiscord(cfg *core.Config) {
	cfg.Discord.BotToken = viper.GetString("discord-bot-token")
	cfg.Discord.ChannelName = strings.TrimPrefix(viper.GetString("discord-channel-name"), "#")
	cfg.Discord.PresenceText = viper.GetString("presence-text")
	cfg.Discord.PresenceEmoji = viper.GetString("presence-emoji")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Enabled = viper.GetBool("server-enabled")
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.PlaylistID = viper.GetString("spotify-playlist-id")
	cfg.Spotify.AuthFlow = viper.GetString("spotify-auth-flow")
	cfg.Spotify.TokenPath = viper.GetString("spotify-token-path")
	cfg.Spotify.CallTimeout = viper.GetDuration("spotify-call-timeout")
	cfg.Spotify.QueueSize = viper.GetInt("spotify-queue-size")

	// Build default redirect URL based on server configuration if not explicitly set
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	if cfg.Spotify.RedirectURL == "" {
		serverHost := cfg.Server.Host
		if serverHost == defaultServerHost {
			serverHost = "127.0.0.1" // Use localhost for OAuth callback
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/callback", serverHost, cfg.Server.Port)
	}
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	cfg.App.AckMode = viper.GetString("ack-mode")
	cfg.App.AckEmoji = viper.GetString("ack-emoji")
	cfg.App.DescribeTracks = viper.GetBool("describe-tracks")
	cfg.App.DedupeBatch = viper.GetBool("dedupe-batch")
	cfg.App.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")

	cfg.App.ResolveTimeout = viper.GetDuration("resolve-timeout")
	cfg.App.ResolveCacheSize = viper.GetInt("resolve-cache-size")
	cfg.App.ResolveCacheTTL = viper.GetDuration("resolve-cache-ttl")
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "text") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runFreaksplay(cmd *cobra.Command, _ []string) error {
	// Handle generate-env-example flag
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting freaksplay",
		zap.String("channel", config.Discord.ChannelName),
		zap.String("spotify_playlist", config.Spotify.PlaylistID),
		zap.String("spotify_auth_flow", config.Spotify.AuthFlow),
		zap.String("ack_mode", config.App.AckMode))

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, services)
}

type services struct {
	spotify    *spotify.Client
	httpServer *httpserver.Server
	session    *core.Session
}

func initializeServices(ctx context.Context) (*services, error) {
	localizer := i18n.NewLocalizer(config.App.Language)

	// The OAuth callback listener may use the server port, so authenticate before serving.
	spotifyClient := spotify.NewClient(&config.Spotify, logger.Named("spotify"), localizer)
	if authErr := spotifyClient.Authenticate(ctx); authErr != nil {
		return nil, fmt.Errorf("failed to authenticate with Spotify: %w", authErr)
	}

	svcs := &services{spotify: spotifyClient}

	var metrics core.MetricsRecorder
	var onLookup func(spotifylink.Outcome)
	if config.Server.Enabled {
		svcs.httpServer = httpserver.NewServer(&config.Server, logger.Named("http"), func() bool {
			return svcs.session != nil && svcs.session.Ready()
		})
		metrics = svcs.httpServer
		onLookup = func(outcome spotifylink.Outcome) {
			svcs.httpServer.RecordShortLinkLookup(string(outcome))
		}
	}

	cache := store.NewLinkCache(config.App.ResolveCacheSize, config.App.ResolveCacheTTL)
	extractor := spotifylink.NewExtractor(newResolver(cache, onLookup))

	frontend := discord.NewFrontend(&discord.Config{BotToken: config.Discord.BotToken}, logger.Named("discord"))

	floodgate := flood.New(config.App.FloodLimitPerMinute)
	stats := floodgate.GetStats()
	logger.Info("Flood protection configured",
		zap.Bool("enabled", floodgate.Enabled()),
		zap.Int("limit_per_minute", stats.LimitPerMinute),
		zap.Int("window_seconds", stats.WindowSeconds))

	if svcs.httpServer != nil {
		if err := registerGauges(svcs.httpServer, cache, floodgate); err != nil {
			return nil, err
		}
	}

	opts := []core.SessionOption{core.WithFloodGate(floodgate)}
	if metrics != nil {
		opts = append(opts, core.WithMetrics(metrics))
	}
	svcs.session = core.NewSession(config, frontend, spotifyClient, extractor, logger.Named("session"), opts...)

	return svcs, nil
}

func newResolver(cache *store.LinkCache, onLookup func(spotifylink.Outcome)) *spotifylink.Resolver {
	opts := []spotifylink.Option{
		spotifylink.WithTimeout(config.App.ResolveTimeout),
		spotifylink.WithLogger(logger.Named("resolver")),
	}
	if cache != nil {
		opts = append(opts, spotifylink.WithCache(cache))
	}
	if onLookup != nil {
		opts = append(opts, spotifylink.WithObserver(onLookup))
	}
	return spotifylink.NewResolver(opts...)
}

func registerGauges(server *httpserver.Server, cache *store.LinkCache, floodgate *flood.Floodgate) error {
	if err := server.RegisterGauge("freaksplay_shortlink_cache_entries",
		"Number of short link resolutions currently cached", func() float64 {
			return float64(cache.Size())
		}); err != nil {
		return err
	}
	return server.RegisterGauge("freaksplay_flood_tracked_senders",
		"Number of senders currently tracked by flood protection", func() float64 {
			return float64(floodgate.GetStats().ActiveUsers)
		})
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	if svcs.httpServer != nil {
		g.Go(func() error {
			return svcs.httpServer.Start(gCtx)
		})
	}

	g.Go(func() error {
		return svcs.session.Start(gCtx)
	})

	logger.Info("freaksplay started successfully",
		zap.Bool("http_enabled", svcs.httpServer != nil),
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	waitErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svcs.session.Stop(stopCtx); err != nil {
		logger.Debug("Failed to stop session gracefully", zap.Error(err))
	}

	if waitErr != nil {
		logger.Error("freaksplay stopped with error", zap.Error(waitErr))
		return waitErr
	}

	logger.Info("freaksplay stopped gracefully")
	return nil
}
