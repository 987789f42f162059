package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"freaksplay/internal/core"
	"freaksplay/internal/flood"
	httpserver "freaksplay/internal/http"
	"freaksplay/internal/store"
)

func TestFlagToEnvVar(t *testing.T) {
	tests := []struct {
		flag     string
		expected string
	}{
		{"discord-bot-token", "FREAKSPLAY_DISCORD_BOT_TOKEN"},
		{"log-level", "FREAKSPLAY_LOG_LEVEL"},
		{"language", "FREAKSPLAY_LANGUAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			if got := flagToEnvVar(tt.flag); got != tt.expected {
				t.Errorf("flagToEnvVar(%q) = %q, want %q", tt.flag, got, tt.expected)
			}
		})
	}
}

func TestGenerateEnvExampleContent(t *testing.T) {
	content := generateEnvExampleContent(rootCmd)

	expected := []string{
		"FREAKSPLAY_DISCORD_BOT_TOKEN=your_discord_bot_token_here",
		"FREAKSPLAY_DISCORD_CHANNEL_NAME=" + core.DefaultChannelName,
		"FREAKSPLAY_SPOTIFY_AUTH_FLOW=" + core.AuthFlowAuthorizationCode,
		"FREAKSPLAY_ACK_MODE=" + core.AckModeReaction,
		"FREAKSPLAY_FLOOD_LIMIT_PER_MINUTE=0",
		"FREAKSPLAY_RESOLVE_TIMEOUT=10s",
		"FREAKSPLAY_SERVER_PORT=8080",
		"FREAKSPLAY_LOG_FORMAT=json",
	}
	for _, line := range expected {
		if !strings.Contains(content, line) {
			t.Errorf("Expected .env.example to contain %q", line)
		}
	}

	if strings.Contains(content, "FREAKSPLAY_GENERATE_ENV_EXAMPLE") {
		t.Error(".env.example should not include the generate flag itself")
	}
}

func TestEnvSectionsReferenceFlags(t *testing.T) {
	for _, section := range envSections {
		for _, key := range section.keys {
			if rootCmd.PersistentFlags().Lookup(key) == nil {
				t.Errorf("Section %q references unknown flag %q", section.title, key)
			}
		}
	}
	for key := range legacyEnvVars {
		if rootCmd.PersistentFlags().Lookup(key) == nil {
			t.Errorf("Legacy variable bound to unknown flag %q", key)
		}
	}
}

func TestBuildConfig_LegacyEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "legacy-token")
	t.Setenv("PLAYLIST_ID", "legacy-playlist")
	t.Setenv("FREAKSPLAY_SPOTIFY_PLAYLIST_ID", "prefixed-playlist")
	t.Setenv("FREAKSPLAY_RESOLVE_CACHE_TTL", "5m")
	t.Setenv("FREAKSPLAY_DISCORD_CHANNEL_NAME", "#music")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	bindLegacyEnv()

	cfg := buildConfig()

	if cfg.Discord.BotToken != "legacy-token" {
		t.Errorf("BotToken = %q, want legacy value", cfg.Discord.BotToken)
	}
	if cfg.Spotify.PlaylistID != "prefixed-playlist" {
		t.Errorf("PlaylistID = %q, want prefixed value to win", cfg.Spotify.PlaylistID)
	}
	if cfg.App.ResolveCacheTTL != 5*time.Minute {
		t.Errorf("ResolveCacheTTL = %v, want 5m", cfg.App.ResolveCacheTTL)
	}
	if cfg.Discord.ChannelName != "music" {
		t.Errorf("ChannelName = %q, want leading # stripped", cfg.Discord.ChannelName)
	}
	if cfg.Spotify.RedirectURL != "http://127.0.0.1:8080/callback" {
		t.Errorf("RedirectURL = %q, want default derived from server address", cfg.Spotify.RedirectURL)
	}
}

func TestBuildLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		if logger := buildLogger("debug", format); logger == nil {
			t.Errorf("buildLogger(%q) returned nil", format)
		}
	}
}

func TestRegisterGauges(t *testing.T) {
	server := httpserver.NewServer(&core.ServerConfig{Host: "127.0.0.1"}, zap.NewNop(), nil)

	cache := store.NewLinkCache(10, time.Hour)
	cache.Put("https://spotify.link/a", "abc123")
	cache.Put("https://spotify.link/b", "")

	floodgate := flood.New(5)
	floodgate.Allow("chat", "alice")

	if err := registerGauges(server, cache, floodgate); err != nil {
		t.Fatalf("registerGauges() error = %v", err)
	}

	families, err := server.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	expected := map[string]float64{
		"freaksplay_shortlink_cache_entries": 2,
		"freaksplay_flood_tracked_senders":   1,
	}
	for _, family := range families {
		want, ok := expected[family.GetName()]
		if !ok {
			continue
		}
		delete(expected, family.GetName())
		if got := family.GetMetric()[0].GetGauge().GetValue(); got != want {
			t.Errorf("%s = %v, want %v", family.GetName(), got, want)
		}
	}
	for name := range expected {
		t.Errorf("Gauge %s not registered", name)
	}
}

func TestRegisterGauges_DisabledCacheAndFloodgate(t *testing.T) {
	server := httpserver.NewServer(&core.ServerConfig{Host: "127.0.0.1"}, zap.NewNop(), nil)

	if err := registerGauges(server, nil, flood.New(0)); err != nil {
		t.Fatalf("registerGauges() error = %v", err)
	}
	if _, err := server.Gatherer().Gather(); err != nil {
		t.Errorf("Gather() error = %v", err)
	}
}
