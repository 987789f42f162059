package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// envSection groups flags for the generated .env.example.
type envSection struct {
	title string
	notes []string
	keys  []string
}

// envPlaceholders replaces empty defaults for settings the user must provide.
var envPlaceholders = map[string]string{
	"discord-bot-token":     "your_discord_bot_token_here",
	"spotify-client-id":     "your_spotify_client_id_here",
	"spotify-client-secret": "your_spotify_client_secret_here",
	"spotify-playlist-id":   "your_target_playlist_id_here",
}

var envSections = []envSection{
	{
		title: "DISCORD CONFIGURATION - Required",
		notes: []string{
			"Create a bot at https://discord.com/developers/applications and enable the",
			"Message Content intent. Legacy names DISCORD_TOKEN and CHANNEL_NAME are also read.",
		},
		keys: []string{"discord-bot-token", "discord-channel-name", "presence-text", "presence-emoji"},
	},
	{
		title: "SPOTIFY CONFIGURATION - Required",
		notes: []string{
			"Get these from https://developer.spotify.com/dashboard",
			"Legacy names SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and PLAYLIST_ID are also read.",
		},
		keys: []string{
			"spotify-client-id", "spotify-client-secret", "spotify-playlist-id", "spotify-auth-flow",
			"spotify-redirect-url", "spotify-token-path", "spotify-call-timeout", "spotify-queue-size",
		},
	},
	{
		title: "APPLICATION SETTINGS",
		keys: []string{
			"language", "ack-mode", "ack-emoji", "describe-tracks", "dedupe-batch", "flood-limit-per-minute",
			"resolve-timeout", "resolve-cache-size", "resolve-cache-ttl",
		},
	},
	{
		title: "HTTP SERVER - Health checks and Prometheus metrics",
		keys:  []string{"server-enabled", "server-host", "server-port"},
	},
	{
		title: "LOGGING",
		keys:  []string{"log-level", "log-format"},
	},
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# freaksplay Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}

	return content.String()
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# =============================================================================\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# =============================================================================\n")
	for _, note := range section.notes {
		fmt.Fprintf(content, "# %s\n", note)
	}

	for _, key := range section.keys {
		flag := cmd.PersistentFlags().Lookup(key)
		if flag == nil {
			continue
		}

		value := getDefaultValueString(cmd, key)
		if placeholder, ok := envPlaceholders[key]; ok {
			value = placeholder
		}
		fmt.Fprintf(content, "# %s\n", flag.Usage)
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(key), value)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}
