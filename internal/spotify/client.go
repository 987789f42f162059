// Package spotify provides Spotify Web API integration for playlist updates.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"freaksplay/internal/core"
	"freaksplay/internal/i18n"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// DefaultCallbackPath is used when the redirect URL has no path
	DefaultCallbackPath = "/callback"
	// UnknownArtist is the default value when artist name is not available
	UnknownArtist = "Unknown"

	callbackShutdownTimeout = 5 * time.Second
	callbackHeaderTimeout   = 10 * time.Second
)

// ErrNotAuthenticated is returned by API calls made before Authenticate succeeded.
var ErrNotAuthenticated = errors.New("spotify client not authenticated")

type Client struct {
	config    *core.SpotifyConfig
	logger    *zap.Logger
	localizer *i18n.Localizer
	auth      *spotifyauth.Authenticator
	client    *spotify.Client

	// exchange trades the callback request for a token
	exchange func(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger, localizer *i18n.Localizer) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config:    config,
		logger:    logger,
		localizer: localizer,
		auth:      auth,
		exchange: func(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
			return auth.Token(ctx, state, r)
		},
	}
}

// Authenticate obtains credentials with the configured flow and verifies them.
func (c *Client) Authenticate(ctx context.Context) error {
	switch c.config.AuthFlow {
	case core.AuthFlowClientCredentials:
		return c.authenticateClientCredentials(ctx)
	case core.AuthFlowAuthorizationCode, "":
		return c.authenticateAuthorizationCode(ctx)
	default:
		return fmt.Errorf("unknown spotify auth flow %q", c.config.AuthFlow)
	}
}

func (c *Client) authenticateClientCredentials(ctx context.Context) error {
	cfg := &clientcredentials.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	if _, err := cfg.Token(ctx); err != nil {
		return fmt.Errorf("failed to get client credentials token: %w", err)
	}

	// the credentials client fetches a new token whenever the current one expires
	client := spotify.New(cfg.Client(ctx))
	playlist, err := client.GetPlaylist(ctx, spotify.ID(c.config.PlaylistID))
	if err != nil {
		return fmt.Errorf("failed to fetch playlist %s: %w", c.config.PlaylistID, err)
	}
	c.client = client

	c.logger.Warn("Authenticated with client credentials; Spotify rejects playlist changes without a user token",
		zap.String("playlist", playlist.Name))
	return nil
}

func (c *Client) authenticateAuthorizationCode(ctx context.Context) error {
	token, err := c.loadToken()
	switch {
	case err != nil:
		c.logger.Info("No saved token found, starting OAuth flow", zap.String("path", c.config.TokenPath))
	default:
		useErr := c.useToken(ctx, token)
		if useErr == nil {
			return nil
		}
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(useErr))
	}

	token, err = c.startOAuthFlow(ctx)
	if err != nil {
		return err
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	if err := c.useToken(ctx, token); err != nil {
		return fmt.Errorf("failed to verify new token: %w", err)
	}
	c.logger.Info("OAuth flow completed successfully")
	return nil
}

func (c *Client) useToken(ctx context.Context, token *oauth2.Token) error {
	client := spotify.New(c.auth.Client(ctx, token))

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.client = client
	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// startOAuthFlow serves the redirect URL until Spotify calls back with an authorization code.
func (c *Client) startOAuthFlow(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(c.config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL %q: %w", c.config.RedirectURL, err)
	}
	path := redirect.Path
	if path == "" {
		path = DefaultCallbackPath
	}

	state := uuid.NewString()
	tokens := make(chan *oauth2.Token, 1)
	failures := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle(path, c.callbackHandler(state, tokens, failures))

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback on %s: %w", redirect.Host, err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: callbackHeaderTimeout}
	go func() {
		if serveErr := server.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			c.logger.Error("OAuth callback server failed", zap.Error(serveErr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			c.logger.Debug("Failed to stop OAuth callback server", zap.Error(shutdownErr))
		}
	}()

	authURL := c.auth.AuthURL(state)
	c.logger.Info("Waiting for Spotify authorization", zap.String("callback", c.config.RedirectURL))
	fmt.Println(c.localizer.T("auth.open_url", authURL))

	select {
	case token := <-tokens:
		return token, nil
	case err := <-failures:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for Spotify authorization: %w", ctx.Err())
	}
}

// callbackHandler completes the authorization code exchange. Requests with a foreign
// state are rejected without ending the flow.
func (c *Client) callbackHandler(state string, tokens chan<- *oauth2.Token, failures chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("state"); got != state {
			c.logger.Warn("Rejected OAuth callback with unexpected state")
			http.Error(w, c.localizer.T("auth.callback_failed", "state mismatch"), http.StatusBadRequest)
			return
		}

		token, err := c.exchange(r.Context(), state, r)
		if err != nil {
			http.Error(w, c.localizer.T("auth.callback_failed", err.Error()), http.StatusForbidden)
			select {
			case failures <- fmt.Errorf("failed to exchange code for token: %w", err):
			default:
			}
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(c.localizer.T("auth.callback_success"))); err != nil {
			c.logger.Debug("Failed to write OAuth callback response", zap.Error(err))
		}
		select {
		case tokens <- token:
		default:
		}
	}
}

// AddTracksToPlaylist appends all tracks in a single request.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) (string, error) {
	if c.client == nil {
		return "", ErrNotAuthenticated
	}

	ids := make([]spotify.ID, 0, len(trackIDs))
	for _, id := range trackIDs {
		ids = append(ids, spotify.ID(id))
	}

	snapshotID, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return "", fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	c.logger.Debug("Tracks added to playlist",
		zap.Strings("trackIDs", trackIDs),
		zap.String("playlistID", playlistID),
		zap.String("snapshotID", snapshotID))
	return snapshotID, nil
}

// GetTracks looks up track metadata. Unknown ids are skipped.
func (c *Client) GetTracks(ctx context.Context, trackIDs []string) ([]core.Track, error) {
	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	ids := make([]spotify.ID, 0, len(trackIDs))
	for _, id := range trackIDs {
		ids = append(ids, spotify.ID(id))
	}

	found, err := c.client.GetTracks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracks: %w", err)
	}

	tracks := make([]core.Track, 0, len(found))
	for _, track := range found {
		if track == nil {
			continue
		}
		tracks = append(tracks, convertSpotifyTrack(track))
	}
	return tracks, nil
}

func convertSpotifyTrack(track *spotify.FullTrack) core.Track {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	artist := strings.Join(artists, ", ")
	if artist == "" {
		artist = UnknownArtist
	}

	return core.Track{
		ID:     string(track.ID),
		Title:  track.Name,
		Artist: artist,
	}
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.config.TokenPath)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tokenData.Token == nil {
		return nil, fmt.Errorf("token file %s has no token", c.config.TokenPath)
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
