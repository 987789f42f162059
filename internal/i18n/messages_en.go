package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Acknowledgements
	"ack.tracks_added.one":  "🎶 Added one track to the playlist.",
	"ack.tracks_added.many": "🎶 Added %d tracks to the playlist.",
	"ack.track_line":        "• %s - %s",

	// Bot status
	"presence.listening": "Listening for Spotify links in #%s",

	// Spotify login callback page
	"auth.callback_success": "Spotify login complete. You can close this window.",
	"auth.callback_failed":  "Spotify login failed: %s",
	"auth.open_url":         "Open this URL to authorize freaksplay with Spotify:\n%s",
}
