package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Acknowledgements
	"ack.tracks_added.one":  "🎶 Ha äs Lied zur Playliste hinzuegfüegt.",
	"ack.tracks_added.many": "🎶 Ha %d Lieder zur Playliste hinzuegfüegt.",
	"ack.track_line":        "• %s - %s",

	// Bot status
	"presence.listening": "Losst uf Spotify-Links i #%s",

	// Spotify login callback page
	"auth.callback_success": "Spotify-Login isch fertig. Du chasch das Fänschter zuetue.",
	"auth.callback_failed":  "Spotify-Login het nid funktioniert: %s",
	"auth.open_url":         "Mach dä Link uf, für freaksplay bi Spotify z'erloube:\n%s",
}
